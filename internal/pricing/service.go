// Package pricing implements the price cache around the external feed.
//
// Lookup order: fresh cache hit, then upstream fetch, then stale cache. When
// the upstream signals rate limiting the service opens its limiter state,
// queues the missed symbols and replays them in small batches once the
// window elapses. Non-rate-limit upstream errors propagate so callers can
// fall back to the ledger's stored quote.
package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/feed"
	"github.com/defi-dashboard/internal/logging"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// Feed is the upstream quote source.
type Feed interface {
	FetchQuote(ctx context.Context, externalID string) (*models.PriceQuote, error)
}

// Options configures the pricing service.
type Options struct {
	FreshnessWindow time.Duration // cached quotes younger than this skip the network
	DefaultBackoff  time.Duration // rate-limit window when the upstream sends no hint
	DrainBatchSize  int           // queued refetches replayed per batch
	DrainSpacing    time.Duration // delay between replayed requests
}

// Service caches quotes and smooths out upstream rate limiting.
type Service struct {
	feed   Feed
	cache  storage.QuoteCache
	prices storage.PriceRepository
	opts   Options
	logger *logging.Logger

	// limiter state: closed (limited=false) or open with a reset deadline
	// and a FIFO of symbols awaiting replay.
	mu      sync.Mutex
	limited bool
	resetAt time.Time
	queue   []string
	queued  map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a pricing service.
func NewService(f Feed, cache storage.QuoteCache, prices storage.PriceRepository, opts Options) *Service {
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = 5 * time.Minute
	}
	if opts.DefaultBackoff <= 0 {
		opts.DefaultBackoff = 60 * time.Second
	}
	if opts.DrainBatchSize <= 0 {
		opts.DrainBatchSize = 3
	}
	if opts.DrainSpacing <= 0 {
		opts.DrainSpacing = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		feed:   f,
		cache:  cache,
		prices: prices,
		opts:   opts,
		logger: logging.GetGlobalLogger().WithField("component", "pricing"),
		queued: make(map[string]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close stops any pending queue drain and waits for it to finish.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// GetQuote returns the current quote for a token symbol.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	cached, haveCached, err := s.cache.Get(ctx, symbol)
	if err != nil {
		// A broken cache tier must not take down price lookups
		s.logger.WithError(err).Warn("Quote cache read failed")
		haveCached = false
	}
	if haveCached && cached.Fresh(s.opts.FreshnessWindow, time.Now()) {
		return cached, nil
	}

	if s.rateLimited() {
		if haveCached {
			// Stale beats nothing while the upstream cools off
			return cached, nil
		}
		s.enqueue(symbol)
		return nil, apperrors.NewUpstreamRateLimitedError(nil)
	}

	quote, err := s.fetchAndStore(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	if feed.IsRateLimited(err) {
		s.openLimiter(err)
		s.enqueue(symbol)
		if haveCached {
			return cached, nil
		}
		return nil, apperrors.NewUpstreamRateLimitedError(err)
	}

	return nil, apperrors.NewUpstreamError(err)
}

// fetchAndStore fetches a quote from the feed and updates both cache tiers.
func (s *Service) fetchAndStore(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	quote, err := s.feed.FetchQuote(ctx, feed.ExternalID(symbol))
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, quote); err != nil {
		s.logger.WithError(err).Warn("Quote cache write failed")
	}
	if err := s.prices.Upsert(ctx, quote); err != nil {
		s.logger.WithError(err).Warn("Stored quote upsert failed")
	}
	return quote, nil
}

// rateLimited reports whether the limiter is open, closing it when the
// reset deadline has passed.
func (s *Service) rateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limited && time.Now().After(s.resetAt) {
		s.limited = false
	}
	return s.limited
}

// openLimiter records the reset deadline and schedules the queue drain.
func (s *Service) openLimiter(cause error) {
	backoff := s.opts.DefaultBackoff
	var rle *feed.RateLimitError
	if errors.As(cause, &rle) && rle.RetryAfter > 0 {
		backoff = rle.RetryAfter
	}

	s.mu.Lock()
	alreadyOpen := s.limited
	s.limited = true
	s.resetAt = time.Now().Add(backoff)
	resetAt := s.resetAt
	s.mu.Unlock()

	if alreadyOpen {
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"backoff": backoff.String(),
		"resetAt": resetAt.Format(time.RFC3339),
	}).Warn("Price feed rate limited, queueing lookups")

	s.wg.Add(1)
	go s.drainAfter(time.Until(resetAt))
}

// enqueue adds a symbol to the replay queue, deduplicated.
func (s *Service) enqueue(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.queued[symbol]; exists {
		return
	}
	s.queued[symbol] = struct{}{}
	s.queue = append(s.queue, symbol)
}

// drainAfter waits out the rate-limit window, then replays queued symbols in
// small batches with a spacing delay to avoid immediately re-tripping the
// limit.
func (s *Service) drainAfter(wait time.Duration) {
	defer s.wg.Done()

	select {
	case <-time.After(wait):
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	s.limited = false
	pending := s.queue
	s.queue = nil
	s.queued = make(map[string]struct{})
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	s.logger.WithField("pending", len(pending)).Info("Replaying queued price lookups")

	for i, symbol := range pending {
		if i > 0 {
			if i%s.opts.DrainBatchSize == 0 {
				// Longer pause between batches
				if !s.sleep(s.opts.DrainSpacing * 2) {
					return
				}
			} else if !s.sleep(s.opts.DrainSpacing) {
				return
			}
		}

		_, err := s.fetchAndStore(s.ctx, symbol)
		if err == nil {
			continue
		}
		if feed.IsRateLimited(err) {
			// Re-tripped: requeue what is left and reopen the window
			for _, rest := range pending[i:] {
				s.enqueue(rest)
			}
			s.openLimiter(err)
			return
		}
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Queued price replay failed")
	}
}

func (s *Service) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

// RateLimited reports the limiter state. Exposed for tests and health output.
func (s *Service) RateLimited() bool {
	return s.rateLimited()
}

// QueueLen reports the number of symbols awaiting replay.
func (s *Service) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
