package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"binance-signal-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.binance.com"
	testnetBaseURL = "https://testnet.binance.vision"
	apiKeyHeader   = "X-MBX-APIKEY"

	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket             = "MARKET"
	OrderTypeLimit              = "LIMIT"
	OrderTypeStopLossLimit      = "STOP_LOSS_LIMIT"
	OrderTypeLimitMaker         = "LIMIT_MAKER"
	OrderTypeTrailingStopMarket = "TRAILING_STOP_MARKET"

	TimeInForceGTC = "GTC"
)

// ExchangeClient is the part of the Binance API the trading engine uses.
type ExchangeClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetExchangeInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	FetchFreeBalance(ctx context.Context, creds Credentials, asset string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, creds Credentials, order OrderRequest) (*OrderResponse, error)
}

// RestClient is a client for the Binance REST API.
// Signed calls take the caller's credentials, so one client serves every user.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	recvWindow int64
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// ensure RestClient implements the interface
var _ ExchangeClient = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	endpoint := cfg.BaseURL
	switch {
	case endpoint != "":
		logger.Info("Using custom Binance endpoint", zap.String("url", endpoint))
	case cfg.Testnet:
		endpoint = testnetBaseURL
		logger.Warn("Using Binance Testnet")
	default:
		endpoint = baseURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(endpoint)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger.Named("binance"),
		limiter:    limiter,
		recvWindow: cfg.RecvWindow,
		maxRetries: maxRetries,
		backoff:    time.Second,
		now:        time.Now,
	}
}

// sign creates a HMAC-SHA256 signature of data as lowercase hex.
func sign(secretKey, data string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signedQuery adds timestamp and recvWindow to params, encodes them in key
// order and appends the signature of that exact string.
func (c *RestClient) signedQuery(secretKey string, params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
	}
	query := params.Encode()
	return query + "&signature=" + sign(secretKey, query)
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, "get server time", http.MethodGet, "/api/v3/time", req, true)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	return resp.Result().(*ServerTimeResponse).ServerTime, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Only idempotent calls may pass retry; orders are sent once.
func (c *RestClient) doRequest(ctx context.Context, op, method, path string, req *resty.Request, retry bool) (*resty.Response, error) {
	return c.execute(ctx, op, method, func() string { return path }, req, retry)
}

// doSigned sends a signed request. The timestamp and signature are computed
// again for every attempt, so a retry after a long backoff still falls inside
// recvWindow.
func (c *RestClient) doSigned(ctx context.Context, op, method, path string, creds Credentials, params url.Values, req *resty.Request, retry bool) (*resty.Response, error) {
	req.SetHeader(apiKeyHeader, creds.APIKey)
	return c.execute(ctx, op, method, func() string {
		return path + "?" + c.signedQuery(creds.SecretKey, params)
	}, req, retry)
}

func (c *RestClient) execute(ctx context.Context, op, method string, target func() string, req *resty.Request, retry bool) (*resty.Response, error) {
	attempts := 1
	if retry {
		attempts = c.maxRetries
	}
	req.SetContext(ctx).ForceContentType("application/json")

	var lastErr *ExchangeError
	for i := 0; i < attempts; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ExchangeError{Op: op, Err: fmt.Errorf("rate limiter wait failed: %w", err)}
		}

		path := target()
		c.logger.Debug("Executing request", zap.String("op", op), zap.String("method", method), zap.String("path", path))
		resp, err := req.Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			// Network, timeout or cancellation
			lastErr = &ExchangeError{Op: op, Err: err}
			shouldRetry = ctx.Err() == nil
		} else {
			statusCode := resp.StatusCode()
			lastErr = newStatusError(op, statusCode, resp.Body())
			if statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		}

		if !shouldRetry || i == attempts-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1x, 2x, 4x
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(lastErr),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, &ExchangeError{Op: op, Err: ctx.Err()}
		}
	}

	return nil, lastErr
}

// GetKlines fetches the most recent limit candles of symbol, oldest first.
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	var candles []Candle

	req := c.client.R().
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&candles)

	resp, err := c.doRequest(ctx, "get klines", http.MethodGet, "/api/v3/klines", req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	return *resp.Result().(*[]Candle), nil
}

// GetExchangeInfo fetches the trading rules of a single symbol.
func (c *RestClient) GetExchangeInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	var exchangeInfo ExchangeInfoResponse

	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&exchangeInfo)

	resp, err := c.doRequest(ctx, "get exchange info", http.MethodGet, "/api/v3/exchangeInfo", req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, s := range resp.Result().(*ExchangeInfoResponse).Symbols {
		if s.Symbol == symbol {
			info := s
			return &info, nil
		}
	}
	return nil, fmt.Errorf("symbol %s not listed in exchange info", symbol)
}

// FetchFreeBalance returns the free (not locked in orders) amount of asset,
// or zero if the account holds none.
func (c *RestClient) FetchFreeBalance(ctx context.Context, creds Credentials, asset string) (decimal.Decimal, error) {
	req := c.client.R().SetResult(&AccountResponse{})

	resp, err := c.doSigned(ctx, "get account", http.MethodGet, "/api/v3/account", creds, url.Values{}, req, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch %s balance: %w", asset, err)
	}

	for _, b := range resp.Result().(*AccountResponse).Balances {
		if strings.EqualFold(b.Asset, asset) {
			return b.Free, nil
		}
	}
	return decimal.Zero, nil
}

// PlaceOrder sends a new order. The signed parameters travel in the query
// string; the request is never retried.
func (c *RestClient) PlaceOrder(ctx context.Context, creds Credentials, order OrderRequest) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", order.Type)
	params.Set("quantity", order.Quantity.String())
	params.Set("newOrderRespType", "FULL")
	if order.Price.Valid {
		params.Set("price", order.Price.Decimal.String())
	}
	if order.StopPrice.Valid {
		params.Set("stopPrice", order.StopPrice.Decimal.String())
	}
	if order.TrailingDelta.Valid {
		params.Set("trailingDelta", order.TrailingDelta.Decimal.String())
	}
	if order.TimeInForce != "" {
		params.Set("timeInForce", order.TimeInForce)
	}
	req := c.client.R().SetResult(&OrderResponse{})

	l := c.logger.With(
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.String("type", order.Type),
		zap.String("quantity", order.Quantity.String()),
	)

	resp, err := c.doSigned(ctx, "place order", http.MethodPost, "/api/v3/order", creds, params, req, false)
	if err != nil {
		l.Error("Failed to create order", zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*OrderResponse)
	l.Info("Successfully created order", zap.Int64("order_id", result.OrderID), zap.String("status", result.Status))
	return result, nil
}
