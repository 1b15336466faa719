package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNullResult is returned when the node answers a lookup with a JSON null,
// e.g. a block that has not been produced yet.
var ErrNullResult = errors.New("rpc returned a null result")

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint   `json:"id"`
}

type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

var jsonRPCVersion = "2.0"

type Client struct {
	Logger       *zap.Logger
	httpClient   *http.Client
	clientConfig *EthereumClientConfig
	limiter      ratelimit.Limiter
}

type EthereumClientConfig struct {
	BaseUrl string
	// Zero disables rate limiting.
	RequestsPerSecond   int
	NativeBatchCallSize int
	// Sleep between attempts in Call. An empty list means a single attempt.
	Backoffs []time.Duration
}

func ConvertGlobalConfigToEthereumConfig(cfg *config.EthereumRpcConfig) *EthereumClientConfig {
	c := DefaultEthereumClientConfig()
	c.BaseUrl = cfg.BaseUrl
	c.RequestsPerSecond = cfg.RequestsPerSecond
	if cfg.BatchSize > 0 {
		c.NativeBatchCallSize = cfg.BatchSize
	}
	return c
}

func DefaultEthereumClientConfig() *EthereumClientConfig {
	return &EthereumClientConfig{
		NativeBatchCallSize: 100,
		Backoffs: []time.Duration{
			time.Second,
			3 * time.Second,
			5 * time.Second,
			10 * time.Second,
			20 * time.Second,
		},
	}
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	client := &http.Client{
		Timeout: time.Second * 30,
	}

	var limiter ratelimit.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.New(cfg.RequestsPerSecond)
	} else {
		limiter = ratelimit.NewUnlimited()
	}
	if cfg.NativeBatchCallSize <= 0 {
		cfg.NativeBatchCallSize = 100
	}

	l.Sugar().Infow("Creating new Ethereum client",
		zap.String("baseUrl", cfg.BaseUrl),
		zap.Int("requestsPerSecond", cfg.RequestsPerSecond),
	)

	return &Client{
		httpClient:   client,
		Logger:       l,
		clientConfig: cfg,
		limiter:      limiter,
	}
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) GetBlockByNumber(ctx context.Context, blockNumber uint64) (*EthereumBlock, error) {
	rpcRequest := GetBlockByNumberRequest(blockNumber, 1)

	res, err := c.Call(ctx, rpcRequest)
	if err != nil {
		return nil, err
	}
	ethBlock, err := ParseBlock(res.Result)
	if err != nil {
		if !errors.Is(err, ErrNullResult) {
			c.Logger.Sugar().Errorw("failed to parse block",
				zap.Error(err),
				zap.Uint64("blockNumber", blockNumber),
			)
		}
		return nil, err
	}
	return ethBlock, nil
}

func (c *Client) batchCall(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error) {
	if len(requests) == 0 {
		return make([]*RPCResponse, 0), nil
	}
	requestBody, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requests: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, batchCallTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clientConfig.BaseUrl, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	c.limiter.Take()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received http error code %+v", response.StatusCode)
	}

	destination := []*RPCResponse{}

	if strings.HasPrefix(strings.TrimSpace(string(responseBody)), "{") {
		errorResponse := RPCResponse{}
		if err := json.Unmarshal(responseBody, &errorResponse); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error response: %w", err)
		}
		c.Logger.Sugar().Debugw("Error payload returned from batch call",
			zap.String("error", string(responseBody)),
		)
		return nil, fmt.Errorf("error payload returned from batch call: %s", string(responseBody))
	}
	if err := json.Unmarshal(responseBody, &destination); err != nil {
		c.Logger.Sugar().Errorw("failed to unmarshal batch call response",
			zap.Error(err),
			zap.String("response", string(responseBody)),
		)
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return destination, nil
}

// BatchCall splits requests into chunks of NativeBatchCallSize, sends the
// chunks concurrently and returns the responses ordered by request ID.
func (c *Client) BatchCall(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error) {
	if len(requests) == 0 {
		return make([]*RPCResponse, 0), nil
	}
	batches := [][]*RPCRequest{}
	for start := 0; start < len(requests); start += c.clientConfig.NativeBatchCallSize {
		end := min(start+c.clientConfig.NativeBatchCallSize, len(requests))
		batches = append(batches, requests[start:end])
	}
	c.Logger.Sugar().Debugw("Batching requests",
		zap.Int("requests", len(requests)),
		zap.Int("batches", len(batches)),
	)

	results := make([][]*RPCResponse, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			res, err := c.batchCall(gctx, batch)
			if err != nil {
				c.Logger.Sugar().Errorw("failed to batch call", zap.Error(err), zap.Int("batch", i))
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flattened := make([]*RPCResponse, 0, len(requests))
	for _, res := range results {
		flattened = append(flattened, res...)
	}
	slices.SortFunc(flattened, func(i, j *RPCResponse) int {
		return int(responseId(i)) - int(responseId(j))
	})
	return flattened, nil
}

func responseId(r *RPCResponse) uint {
	if r == nil || r.ID == nil {
		return 0
	}
	return *r.ID
}

func (c *Client) call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	requestBody, err := json.Marshal(rpcRequest)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, singleCallTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clientConfig.BaseUrl, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	c.limiter.Take()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received http error code %+v", response.StatusCode)
	}

	destination := &RPCResponse{}
	if err := json.Unmarshal(responseBody, destination); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if destination.Error != nil {
		return nil, destination.Error
	}

	return destination, nil
}

func (c *Client) Call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	res, err := c.call(ctx, rpcRequest)
	if err == nil {
		return res, nil
	}

	for _, backoff := range c.clientConfig.Backoffs {
		c.Logger.Sugar().Warnw("Failed to call, backing off",
			zap.Error(err),
			zap.Duration("backoff", backoff),
			zap.String("method", rpcRequest.Method),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		res, err = c.call(ctx, rpcRequest)
		if err == nil {
			c.Logger.Sugar().Infow("Successfully called after backoff",
				zap.Duration("backoff", backoff),
				zap.String("method", rpcRequest.Method),
			)
			return res, nil
		}
	}
	c.Logger.Sugar().Errorw("Exceeded retries for Call", zap.Error(err), zap.String("method", rpcRequest.Method))
	return nil, fmt.Errorf("exceeded retries for %s: %w", rpcRequest.Method, err)
}
