package ethereum

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"
)

type (
	EthereumHexString   string
	EthereumQuantity    uint64
	EthereumBigQuantity big.Int
)

type (
	EthereumBlock struct {
		Hash         EthereumHexString      `json:"hash"`
		ParentHash   EthereumHexString      `json:"parentHash"`
		Number       EthereumQuantity       `json:"number"`
		Timestamp    EthereumQuantity       `json:"timestamp"`
		Transactions []*EthereumTransaction `json:"transactions"`
		GasUsed      EthereumQuantity       `json:"gasUsed"`
	}

	EthereumTransaction struct {
		BlockHash   EthereumHexString   `json:"blockHash"`
		BlockNumber EthereumQuantity    `json:"blockNumber"`
		From        EthereumHexString   `json:"from"`
		GasPrice    EthereumBigQuantity `json:"gasPrice"`
		Hash        EthereumHexString   `json:"hash"`
		Input       EthereumHexString   `json:"input"`
		To          EthereumHexString   `json:"to"`
		Index       EthereumQuantity    `json:"transactionIndex"`
		Value       EthereumBigQuantity `json:"value"`
		Type        EthereumQuantity    `json:"type"`
	}

	EthereumTransactionReceipt struct {
		TransactionHash   EthereumHexString   `json:"transactionHash"`
		TransactionIndex  EthereumQuantity    `json:"transactionIndex"`
		BlockHash         EthereumHexString   `json:"blockHash"`
		BlockNumber       EthereumQuantity    `json:"blockNumber"`
		From              EthereumHexString   `json:"from"`
		To                EthereumHexString   `json:"to"`
		GasUsed           EthereumQuantity    `json:"gasUsed"`
		ContractAddress   EthereumHexString   `json:"contractAddress"`
		Logs              []*EthereumEventLog `json:"logs"`
		Status            *EthereumQuantity   `json:"status"`
		EffectiveGasPrice *EthereumQuantity   `json:"effectiveGasPrice"`
	}

	EthereumEventLog struct {
		Removed          bool                `json:"removed"`
		LogIndex         EthereumQuantity    `json:"logIndex"`
		TransactionHash  EthereumHexString   `json:"transactionHash"`
		TransactionIndex EthereumQuantity    `json:"transactionIndex"`
		BlockHash        EthereumHexString   `json:"blockHash"`
		BlockNumber      EthereumQuantity    `json:"blockNumber"`
		Address          EthereumHexString   `json:"address"`
		Data             EthereumHexString   `json:"data"`
		Topics           []EthereumHexString `json:"topics"`
	}
)

// Succeeded reports the post-byzantium status flag. Receipts without a status are treated as failed.
func (r *EthereumTransactionReceipt) Succeeded() bool {
	return r.Status != nil && r.Status.Value() == 1
}

// unquote returns the JSON string in input, or ok=false when input is a bare literal.
func unquote(input []byte, typeName string) (s string, ok bool, err error) {
	if len(input) == 0 || input[0] != '"' {
		return "", false, nil
	}
	if err := json.Unmarshal(input, &s); err != nil {
		return "", true, xerrors.Errorf("failed to unmarshal %s: %w", typeName, err)
	}
	return s, true, nil
}

func (v EthereumHexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// UnmarshalJSON lowercases hex so addresses and hashes compare by value.
func (v *EthereumHexString) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		*v = ""
		return nil
	}
	s, ok, err := unquote(input, "EthereumHexString")
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.Errorf("EthereumHexString must be a string, got %s", input)
	}
	*v = EthereumHexString(strings.ToLower(s))
	return nil
}

func (v EthereumHexString) Value() string {
	return string(v)
}

func (v EthereumQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeUint64(uint64(v)))
}

// UnmarshalJSON accepts hex strings as sent by nodes and plain numbers as used in fixtures.
func (v *EthereumQuantity) UnmarshalJSON(input []byte) error {
	s, ok, err := unquote(input, "EthereumQuantity")
	if err != nil {
		return err
	}
	if !ok {
		var i uint64
		if err := json.Unmarshal(input, &i); err != nil {
			return xerrors.Errorf("failed to unmarshal EthereumQuantity %s: %w", input, err)
		}
		*v = EthereumQuantity(i)
		return nil
	}
	if s == "" {
		*v = 0
		return nil
	}
	i, err := hexutil.DecodeUint64(s)
	if err != nil {
		return xerrors.Errorf("failed to decode EthereumQuantity %v: %w", s, err)
	}
	*v = EthereumQuantity(i)
	return nil
}

func (v EthereumQuantity) Value() uint64 {
	return uint64(v)
}

func (v EthereumBigQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeBig(v.BigInt()))
}

func (v *EthereumBigQuantity) UnmarshalJSON(input []byte) error {
	s, ok, err := unquote(input, "EthereumBigQuantity")
	if err != nil {
		return err
	}
	if !ok && string(input) != "null" {
		return xerrors.Errorf("EthereumBigQuantity must be a hex string, got %s", input)
	}
	if s == "" {
		*v = EthereumBigQuantity{}
		return nil
	}
	i, err := hexutil.DecodeBig(s)
	if err != nil {
		return xerrors.Errorf("failed to decode EthereumBigQuantity %v: %w", s, err)
	}
	*v = EthereumBigQuantity(*i)
	return nil
}

// Value renders the quantity in base 10.
func (v EthereumBigQuantity) Value() string {
	return v.BigInt().String()
}

func (v EthereumBigQuantity) BigInt() *big.Int {
	i := big.Int(v)
	return new(big.Int).Set(&i)
}
