package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/fetcher"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"go.uber.org/zap"
)

// SourceIntegrityError reports a block whose transactions and receipts do
// not pair up one to one. The block source is expected to heal, so callers
// treat it as retryable.
type SourceIntegrityError struct {
	BlockNumber     uint64
	MissingReceipts []string
	OrphanReceipts  []string
	Duplicates      []string
}

func (e *SourceIntegrityError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.MissingReceipts) > 0 {
		parts = append(parts, fmt.Sprintf("missing receipts for [%s]", strings.Join(e.MissingReceipts, ", ")))
	}
	if len(e.OrphanReceipts) > 0 {
		parts = append(parts, fmt.Sprintf("receipts without transactions [%s]", strings.Join(e.OrphanReceipts, ", ")))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate hashes [%s]", strings.Join(e.Duplicates, ", ")))
	}
	return fmt.Sprintf("block %d failed integrity check: %s", e.BlockNumber, strings.Join(parts, "; "))
}

type TransactionPair struct {
	Transaction *ethereum.EthereumTransaction
	Receipt     *ethereum.EthereumTransactionReceipt
}

// ReconcileTransactions pairs every transaction of the block with its
// receipt by hash, preserving block order.
func ReconcileTransactions(raw *fetcher.FetchedBlock) ([]*TransactionPair, error) {
	if raw == nil || raw.Block == nil {
		return nil, errors.New("fetched block is empty")
	}
	blockNumber := raw.Block.Number.Value()
	integrityErr := &SourceIntegrityError{
		BlockNumber:     blockNumber,
		MissingReceipts: make([]string, 0),
		OrphanReceipts:  make([]string, 0),
		Duplicates:      make([]string, 0),
	}

	receipts := make(map[string]*ethereum.EthereumTransactionReceipt, len(raw.Receipts))
	for _, r := range raw.Receipts {
		hash := strings.ToLower(r.TransactionHash.Value())
		if _, ok := receipts[hash]; ok {
			integrityErr.Duplicates = append(integrityErr.Duplicates, hash)
			continue
		}
		receipts[hash] = r
	}

	pairs := make([]*TransactionPair, 0, len(raw.Block.Transactions))
	seen := make(map[string]bool, len(raw.Block.Transactions))
	for _, tx := range raw.Block.Transactions {
		hash := strings.ToLower(tx.Hash.Value())
		if seen[hash] {
			integrityErr.Duplicates = append(integrityErr.Duplicates, hash)
			continue
		}
		seen[hash] = true

		r, ok := receipts[hash]
		if !ok {
			integrityErr.MissingReceipts = append(integrityErr.MissingReceipts, hash)
			continue
		}
		pairs = append(pairs, &TransactionPair{Transaction: tx, Receipt: r})
	}
	for _, r := range raw.Receipts {
		hash := strings.ToLower(r.TransactionHash.Value())
		if !seen[hash] {
			integrityErr.OrphanReceipts = append(integrityErr.OrphanReceipts, hash)
			// only report a duplicated orphan once
			seen[hash] = true
		}
	}

	if len(integrityErr.MissingReceipts) > 0 || len(integrityErr.OrphanReceipts) > 0 || len(integrityErr.Duplicates) > 0 {
		return nil, integrityErr
	}
	return pairs, nil
}

type BlockDecoder struct {
	transactionDecoder *TransactionDecoder
	logger             *zap.Logger
}

func NewBlockDecoder(transactionDecoder *TransactionDecoder, l *zap.Logger) *BlockDecoder {
	return &BlockDecoder{
		transactionDecoder: transactionDecoder,
		logger:             l,
	}
}

func (b *BlockDecoder) DecodeBlock(raw *fetcher.FetchedBlock) (*parser.Block, error) {
	return b.DecodeTransactions(raw, nil)
}

// DecodeTransactions decodes only the listed transactions. The whole block
// must still pass the integrity check. An empty list decodes everything.
func (b *BlockDecoder) DecodeTransactions(raw *fetcher.FetchedBlock, txHashes []string) (*parser.Block, error) {
	pairs, err := ReconcileTransactions(raw)
	if err != nil {
		return nil, err
	}

	var wanted map[string]bool
	if len(txHashes) > 0 {
		wanted = make(map[string]bool, len(txHashes))
		for _, h := range txHashes {
			wanted[strings.ToLower(h)] = true
		}
	}

	block := &parser.Block{
		Number:       raw.Block.Number.Value(),
		Hash:         strings.ToLower(raw.Block.Hash.Value()),
		ParentHash:   strings.ToLower(raw.Block.ParentHash.Value()),
		Timestamp:    raw.Block.Timestamp.Value(),
		Transactions: make([]*parser.Transaction, 0, len(pairs)),
	}
	for _, pair := range pairs {
		if wanted != nil && !wanted[strings.ToLower(pair.Transaction.Hash.Value())] {
			continue
		}
		tx := b.transactionDecoder.Process(pair.Transaction, pair.Receipt)
		tx.BlockNumber = block.Number
		tx.BlockHash = block.Hash
		tx.Timestamp = block.Timestamp
		block.Transactions = append(block.Transactions, tx)
	}

	b.logger.Sugar().Debugw("Decoded block",
		zap.Uint64("blockNumber", block.Number),
		zap.Int("transactions", len(block.Transactions)),
	)
	return block, nil
}
