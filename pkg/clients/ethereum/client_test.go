package ethereum

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/logger"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

const testRpcUrl = "http://ethereum.test:8545"

func setup() (*Client, *httpmock.MockTransport) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	mock := httpmock.NewMockTransport()
	client := NewClient(&EthereumClientConfig{
		BaseUrl:             testRpcUrl,
		NativeBatchCallSize: 2,
	}, l)
	client.SetHttpClient(&http.Client{Transport: mock})
	return client, mock
}

func Test_Client(t *testing.T) {
	t.Run("Should fetch and parse a block by number", func(t *testing.T) {
		client, mock := setup()
		mock.RegisterResponder(http.MethodPost, testRpcUrl, httpmock.NewStringResponder(200, `{
			"jsonrpc": "2.0",
			"id": 1,
			"result": {
				"hash": "0xABCDEF",
				"number": "0x10",
				"timestamp": "0x64",
				"transactions": [
					{"hash": "0xAA", "from": "0x01", "to": "0x02", "input": "0x", "value": "0x0", "gasPrice": "0x1", "transactionIndex": "0x0", "blockNumber": "0x10"}
				]
			}
		}`))

		block, err := client.GetBlockByNumber(context.Background(), 16)
		assert.Nil(t, err)
		assert.Equal(t, uint64(16), block.Number.Value())
		assert.Equal(t, uint64(100), block.Timestamp.Value())
		assert.Equal(t, "0xabcdef", block.Hash.Value())
		assert.Len(t, block.Transactions, 1)
		assert.Equal(t, "0xaa", block.Transactions[0].Hash.Value())
	})
	t.Run("Should surface a null block as ErrNullResult", func(t *testing.T) {
		client, mock := setup()
		mock.RegisterResponder(http.MethodPost, testRpcUrl, httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":null}`))

		block, err := client.GetBlockByNumber(context.Background(), 99999999)
		assert.Nil(t, block)
		assert.ErrorIs(t, err, ErrNullResult)
	})
	t.Run("Should return rpc errors without retrying when no backoffs are configured", func(t *testing.T) {
		client, mock := setup()
		mock.RegisterResponder(http.MethodPost, testRpcUrl, httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))

		_, err := client.GetBlockByNumber(context.Background(), 1)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "header not found")
		assert.Equal(t, 1, mock.GetTotalCallCount())
	})
	t.Run("Should split batch calls and return responses ordered by id", func(t *testing.T) {
		client, mock := setup()
		mock.RegisterResponder(http.MethodPost, testRpcUrl, func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			requests := []*RPCRequest{}
			if err := json.Unmarshal(body, &requests); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			responses := make([]*RPCResponse, 0)
			// answer in reverse order to exercise sorting
			for i := len(requests) - 1; i >= 0; i-- {
				id := requests[i].ID
				responses = append(responses, &RPCResponse{
					JSONRPC: "2.0",
					ID:      &id,
					Result:  json.RawMessage(`{"transactionHash":"0x0` + string(rune('a'+id)) + `","status":"0x1"}`),
				})
			}
			return httpmock.NewJsonResponse(200, responses)
		})

		requests := []*RPCRequest{
			GetTransactionReceiptRequest("0x0a", 0),
			GetTransactionReceiptRequest("0x0b", 1),
			GetTransactionReceiptRequest("0x0c", 2),
		}
		responses, err := client.BatchCall(context.Background(), requests)
		assert.Nil(t, err)
		assert.Len(t, responses, 3)
		assert.Equal(t, 2, mock.GetTotalCallCount())

		for i, res := range responses {
			assert.Equal(t, uint(i), *res.ID)
			receipt, err := ParseTransactionReceipt(res.Result)
			assert.Nil(t, err)
			assert.True(t, receipt.Succeeded())
		}
	})
	t.Run("Should fail the batch when the node returns an error object", func(t *testing.T) {
		client, mock := setup()
		mock.RegisterResponder(http.MethodPost, testRpcUrl, httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","error":{"code":-32600,"message":"too many requests"}}`))

		_, err := client.BatchCall(context.Background(), []*RPCRequest{GetTransactionReceiptRequest("0x0a", 0)})
		assert.NotNil(t, err)
	})
}
