package fetcher

import (
	"context"
	"time"

	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrBlockNotFound is returned when the node does not (yet) know the requested block.
var ErrBlockNotFound = errors.New("block not found")

// BlockSource provides blocks together with their transaction receipts.
type BlockSource interface {
	FetchBlock(ctx context.Context, blockNumber uint64) (*FetchedBlock, error)
}

type EthereumClient interface {
	GetBlockByNumber(ctx context.Context, blockNumber uint64) (*ethereum.EthereumBlock, error)
	BatchCall(ctx context.Context, requests []*ethereum.RPCRequest) ([]*ethereum.RPCResponse, error)
}

type FetcherConfig struct {
	// Number of additional attempts FetchBlockWithRetries makes.
	MaxRetries int
	// Base delay, doubled after every failed attempt.
	RetryDelay time.Duration
}

type Fetcher struct {
	EthClient EthereumClient
	Logger    *zap.Logger
	Config    *FetcherConfig
}

func NewFetcher(ethClient EthereumClient, cfg *FetcherConfig, l *zap.Logger) *Fetcher {
	if cfg == nil {
		cfg = &FetcherConfig{}
	}
	return &Fetcher{
		EthClient: ethClient,
		Logger:    l,
		Config:    cfg,
	}
}

type FetchedBlock struct {
	Block *ethereum.EthereumBlock
	// Receipts in the order the node returned them. Pairing with
	// transactions happens when the block is decoded.
	Receipts []*ethereum.EthereumTransactionReceipt
}

func (f *Fetcher) FetchBlock(ctx context.Context, blockNumber uint64) (*FetchedBlock, error) {
	block, err := f.EthClient.GetBlockByNumber(ctx, blockNumber)
	if err != nil {
		if errors.Is(err, ethereum.ErrNullResult) {
			return nil, errors.Wrapf(ErrBlockNotFound, "block %d", blockNumber)
		}
		f.Logger.Sugar().Errorw("failed to get block by number", zap.Error(err), zap.Uint64("blockNumber", blockNumber))
		return nil, errors.Wrapf(err, "failed to get block %d", blockNumber)
	}

	receipts, err := f.FetchReceiptsForBlock(ctx, block)
	if err != nil {
		f.Logger.Sugar().Errorw("failed to fetch receipts for block", zap.Error(err), zap.Uint64("blockNumber", blockNumber))
		return nil, errors.Wrapf(err, "failed to fetch receipts for block %d", blockNumber)
	}

	return &FetchedBlock{
		Block:    block,
		Receipts: receipts,
	}, nil
}

func (f *Fetcher) FetchReceiptsForBlock(ctx context.Context, block *ethereum.EthereumBlock) ([]*ethereum.EthereumTransactionReceipt, error) {
	blockNumber := block.Number.Value()

	txReceiptRequests := make([]*ethereum.RPCRequest, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		txReceiptRequests = append(txReceiptRequests, ethereum.GetTransactionReceiptRequest(tx.Hash.Value(), uint(i)))
	}

	f.Logger.Sugar().Debugw("Fetching transaction receipts",
		zap.Int("count", len(txReceiptRequests)),
		zap.Uint64("blockNumber", blockNumber),
	)
	receipts := make([]*ethereum.EthereumTransactionReceipt, 0, len(txReceiptRequests))
	if len(txReceiptRequests) == 0 {
		return receipts, nil
	}

	receiptResponses, err := f.EthClient.BatchCall(ctx, txReceiptRequests)
	if err != nil {
		return nil, err
	}

	for _, response := range receiptResponses {
		if response.Error != nil {
			return nil, response.Error
		}
		r, err := ethereum.ParseTransactionReceipt(response.Result)
		if err != nil {
			if errors.Is(err, ethereum.ErrNullResult) {
				// left for block decoding to report as a missing receipt
				f.Logger.Sugar().Warnw("node returned a null receipt",
					zap.Uint64("blockNumber", blockNumber),
				)
				continue
			}
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

// FetchBlockWithRetries retries transient failures with exponential backoff.
// ErrBlockNotFound is returned immediately.
func (f *Fetcher) FetchBlockWithRetries(ctx context.Context, blockNumber uint64) (*FetchedBlock, error) {
	delay := f.Config.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= f.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		fb, err := f.FetchBlock(ctx, blockNumber)
		if err == nil {
			if attempt > 0 {
				f.Logger.Sugar().Infow("fetched block after retries",
					zap.Uint64("blockNumber", blockNumber),
					zap.Int("retries", attempt),
				)
			}
			return fb, nil
		}
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		lastErr = err
		f.Logger.Sugar().Warnw("failed to fetch block",
			zap.Uint64("blockNumber", blockNumber),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return nil, errors.Wrapf(lastErr, "exhausted retries fetching block %d", blockNumber)
}

// RetryingBlockSource adapts FetchBlockWithRetries to BlockSource.
type RetryingBlockSource struct {
	Fetcher *Fetcher
}

func (r *RetryingBlockSource) FetchBlock(ctx context.Context, blockNumber uint64) (*FetchedBlock, error) {
	return r.Fetcher.FetchBlockWithRetries(ctx, blockNumber)
}
