package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
)

// ClientConfig holds upstream connection settings.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches price data from the upstream API through a TTL cache and a
// shared rate limiter. A fresh cache hit returns immediately without touching
// the limiter; on a rate-limit rejection the client falls back to a stale
// cache entry when one exists.
//
// Multiple clients may share one Limiter (one upstream, one quota) while
// holding caches with different TTLs.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *Cache
	limiter *Limiter
	log     zerolog.Logger
}

// NewClient creates an upstream client using the injected cache and limiter.
func NewClient(cfg ClientConfig, cache *Cache, limiter *Limiter, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		limiter: limiter,
		log:     log.With().Str("component", "marketdata").Logger(),
	}
}

// cacheKey composes the endpoint with normalized query parameters.
// url.Values.Encode sorts keys, so equivalent queries share one entry.
func cacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

// Fetch performs a GET against the upstream endpoint and returns the raw
// response body. Results are cached; N calls with the same query inside the
// TTL window cost exactly one upstream invocation.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := cacheKey(endpoint, params)

	if v, fresh, ok := c.cache.Get(key); ok && fresh {
		return v.([]byte), nil
	}

	if err := c.limiter.Throttle(ctx); err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}

	body, err := c.doRequest(ctx, endpoint, params)
	if err == nil {
		c.cache.Set(key, body)
		return body, nil
	}

	// A rate-limit rejection must never sink a sweep when any prior data
	// exists, however old. Other upstream failures propagate as-is so the
	// caller can tell "no data" from "old data".
	if errors.Is(err, ErrRateLimited) {
		if v, _, ok := c.cache.Get(key); ok {
			c.log.Warn().Str("key", key).Msg("rate limited, serving stale cache entry")
			return v.([]byte), nil
		}
	}
	return nil, err
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode, Err: ErrRateLimited}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	return body, nil
}

// quoteResponse mirrors the upstream price payload. The price travels as a
// string to survive the trip without float rounding.
type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Source string `json:"source,omitempty"`
}

// Quote returns the normalized current-price observation for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	params := url.Values{"symbol": {symbol}}
	body, err := c.Fetch(ctx, "/price", params)
	if err != nil {
		return nil, err
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, &UpstreamError{Endpoint: "/price", Err: fmt.Errorf("decoding quote: %w", err)}
	}
	price, err := decimal.NewFromString(qr.Price)
	if err != nil {
		return nil, &UpstreamError{Endpoint: "/price", Err: fmt.Errorf("parsing price %q: %w", qr.Price, err)}
	}

	return &model.Quote{
		Symbol:     symbol,
		Price:      price,
		Source:     qr.Source,
		ReceivedAt: time.Now(),
	}, nil
}

// Price returns just the current price for a symbol. This is the PriceSource
// implementation the evaluation engine consumes.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := c.Quote(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return q.Price, nil
}
