// Package feed implements the client for the external cryptocurrency price
// feed (CoinGecko-compatible API). All requests go through an outbound
// throttle alongside a circuit breaker; rate-limit responses are surfaced as
// RateLimitError so the pricing layer can queue and replay.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/defi-dashboard/internal/circuitbreaker"
	"github.com/defi-dashboard/internal/config"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/retry"
)

// RateLimitError signals that the upstream request budget is exhausted.
type RateLimitError struct {
	RetryAfter time.Duration // zero when the upstream sent no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("price feed rate limited, retry after %s", e.RetryAfter)
	}
	return "price feed rate limited"
}

// IsRateLimited reports whether err is an upstream rate-limit signal.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// Client is the price feed HTTP client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
}

// NewClient creates a feed client from configuration.
func NewClient(cfg *config.FeedConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("price-feed")),
		retry:   retry.DefaultConfig(),
	}
}

// marketEntry is one row of the /coins/markets response.
type marketEntry struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	CurrentPrice      float64  `json:"current_price"`
	PriceChange24h    float64  `json:"price_change_percentage_24h"`
	TotalVolume       *float64 `json:"total_volume"`
	MarketCap         *float64 `json:"market_cap"`
	MarketCapRank     *int     `json:"market_cap_rank"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	ATH               *float64 `json:"ath"`
}

// FetchQuote fetches the current market quote for one coin id.
func (c *Client) FetchQuote(ctx context.Context, externalID string) (*models.PriceQuote, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", externalID)

	body, err := c.get(ctx, "/coins/markets", query)
	if err != nil {
		return nil, err
	}

	var entries []marketEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("feed returned no data for %s", externalID)
	}

	return quoteFromEntry(&entries[0]), nil
}

func quoteFromEntry(e *marketEntry) *models.PriceQuote {
	quote := &models.PriceQuote{
		TokenID:   e.ID,
		Symbol:    e.Symbol,
		Price:     decimal.NewFromFloat(e.CurrentPrice).String(),
		Change24h: decimal.NewFromFloat(e.PriceChange24h).String(),
		UpdatedAt: time.Now().UTC(),
	}
	if e.TotalVolume != nil {
		v := decimal.NewFromFloat(*e.TotalVolume).String()
		quote.Volume24h = &v
	}
	if e.MarketCap != nil {
		v := decimal.NewFromFloat(*e.MarketCap).String()
		quote.MarketCap = &v
	}
	if e.MarketCapRank != nil {
		rank := *e.MarketCapRank
		quote.Rank = &rank
	}
	if e.CirculatingSupply != nil {
		v := decimal.NewFromFloat(*e.CirculatingSupply).String()
		quote.CirculatingSupply = &v
	}
	if e.ATH != nil {
		v := decimal.NewFromFloat(*e.ATH).String()
		quote.ATH = &v
	}
	return quote
}

// Trending proxies the trending coins endpoint.
func (c *Client) Trending(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/search/trending", nil)
}

// GlobalMarket proxies the global market stats endpoint.
func (c *Client) GlobalMarket(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/global", nil)
}

// CoinDetail proxies the per-coin detail endpoint.
func (c *Client) CoinDetail(ctx context.Context, coinID string) (json.RawMessage, error) {
	return c.get(ctx, "/coins/"+url.PathEscape(coinID), nil)
}

// MarketChart proxies the per-coin historical chart endpoint.
func (c *Client) MarketChart(ctx context.Context, coinID string, days int) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", strconv.Itoa(days))
	return c.get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", query)
}

// get performs a throttled, breaker-guarded GET with transient-error retries.
// Rate-limit responses abort immediately; replay is the pricing layer's job.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retry, func(ctx context.Context, _ int) (bool, error) {
		data, err := c.getOnce(ctx, path, query)
		if err != nil {
			return !IsRateLimited(err), err
		}
		body = data
		return false, nil
	})
	return body, err
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	var rateLimited *RateLimitError

	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			// Backpressure, not an outage: keep it out of the breaker's
			// failure count and report it to the caller separately.
			rateLimited = &RateLimitError{RetryAfter: parseRetryAfter(resp)}
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rateLimited != nil {
		return nil, rateLimited
	}
	return body, nil
}

// parseRetryAfter reads the Retry-After header, in seconds.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
