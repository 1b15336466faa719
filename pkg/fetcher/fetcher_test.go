package fetcher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/logger"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeEthereumClient struct {
	block          *ethereum.EthereumBlock
	blockErr       error
	receipts       map[string]string
	blockCalls     int
	failFirstCalls int
}

func (f *fakeEthereumClient) GetBlockByNumber(ctx context.Context, blockNumber uint64) (*ethereum.EthereumBlock, error) {
	f.blockCalls++
	if f.blockCalls <= f.failFirstCalls {
		return nil, errors.New("connection reset")
	}
	return f.block, f.blockErr
}

func (f *fakeEthereumClient) BatchCall(ctx context.Context, requests []*ethereum.RPCRequest) ([]*ethereum.RPCResponse, error) {
	responses := make([]*ethereum.RPCResponse, 0, len(requests))
	for _, req := range requests {
		id := req.ID
		hash := req.Params.([]interface{})[0].(string)
		result, ok := f.receipts[hash]
		if !ok {
			result = "null"
		}
		responses = append(responses, &ethereum.RPCResponse{ID: &id, Result: json.RawMessage(result)})
	}
	return responses, nil
}

func Test_Fetcher(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	block := &ethereum.EthereumBlock{
		Number: 10,
		Transactions: []*ethereum.EthereumTransaction{
			{Hash: "0xaa"},
			{Hash: "0xbb"},
		},
	}

	t.Run("Should fetch a block with receipts", func(t *testing.T) {
		client := &fakeEthereumClient{
			block: block,
			receipts: map[string]string{
				"0xaa": `{"transactionHash":"0xaa","status":"0x1"}`,
				"0xbb": `{"transactionHash":"0xbb","status":"0x0"}`,
			},
		}
		f := NewFetcher(client, nil, l)

		fb, err := f.FetchBlock(context.Background(), 10)
		assert.Nil(t, err)
		assert.Len(t, fb.Receipts, 2)
		assert.Equal(t, "0xaa", fb.Receipts[0].TransactionHash.Value())
		assert.False(t, fb.Receipts[1].Succeeded())
	})
	t.Run("Should drop null receipts instead of failing", func(t *testing.T) {
		client := &fakeEthereumClient{
			block: block,
			receipts: map[string]string{
				"0xaa": `{"transactionHash":"0xaa","status":"0x1"}`,
			},
		}
		f := NewFetcher(client, nil, l)

		fb, err := f.FetchBlock(context.Background(), 10)
		assert.Nil(t, err)
		assert.Len(t, fb.Receipts, 1)
	})
	t.Run("Should map a null block to ErrBlockNotFound without retrying", func(t *testing.T) {
		client := &fakeEthereumClient{blockErr: ethereum.ErrNullResult}
		f := NewFetcher(client, &FetcherConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, l)

		_, err := f.FetchBlockWithRetries(context.Background(), 10)
		assert.True(t, errors.Is(err, ErrBlockNotFound))
		assert.Equal(t, 1, client.blockCalls)
	})
	t.Run("Should retry transient failures", func(t *testing.T) {
		client := &fakeEthereumClient{block: block, failFirstCalls: 2, receipts: map[string]string{}}
		f := NewFetcher(client, &FetcherConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, l)

		fb, err := f.FetchBlockWithRetries(context.Background(), 10)
		assert.Nil(t, err)
		assert.NotNil(t, fb)
		assert.Equal(t, 3, client.blockCalls)
	})
}
