package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	method_GetBlockByNumber      = "eth_getBlockByNumber"
	method_GetTransactionReceipt = "eth_getTransactionReceipt"

	singleCallTimeout = 5 * time.Second
	batchCallTimeout  = 20 * time.Second
)

func isNullResult(res json.RawMessage) bool {
	trimmed := bytes.TrimSpace(res)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseResult decodes a JSON-RPC result. A null result yields ErrNullResult.
func parseResult[T any](res json.RawMessage) (*T, error) {
	if isNullResult(res) {
		return nil, ErrNullResult
	}
	dest := new(T)
	if err := json.Unmarshal(res, dest); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", dest, err)
	}
	return dest, nil
}

func ParseBlock(res json.RawMessage) (*EthereumBlock, error) {
	return parseResult[EthereumBlock](res)
}

func ParseTransactionReceipt(res json.RawMessage) (*EthereumTransactionReceipt, error) {
	return parseResult[EthereumTransactionReceipt](res)
}

func newRequest(method string, id uint, params ...interface{}) *RPCRequest {
	return &RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// GetBlockByNumberRequest asks for the block with full transaction objects.
func GetBlockByNumberRequest(blockNumber uint64, id uint) *RPCRequest {
	return newRequest(method_GetBlockByNumber, id, hexutil.EncodeUint64(blockNumber), true)
}

func GetTransactionReceiptRequest(txHash string, id uint) *RPCRequest {
	return newRequest(method_GetTransactionReceipt, id, txHash)
}
