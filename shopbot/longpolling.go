package shopbot

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// UpdateFetcher is the part of the Bot API the poller needs.
type UpdateFetcher interface {
	GetUpdates(ctx context.Context, offset, limit, timeout int, allowedUpdates []string) ([]Update, error)
	DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error
}

// LongPoller pulls updates with getUpdates and dispatches them one at a
// time, for running the bot without a public URL.
type LongPoller struct {
	fetcher    UpdateFetcher
	dispatcher UpdateDispatcher
	logger     *slog.Logger

	timeout              int
	limit                int
	maxErrors            int      // 0 = unlimited
	allowedUpdates       []string
	deleteWebhookOnStart bool

	retryInitialDelay  time.Duration
	retryMaxDelay      time.Duration
	retryBackoffFactor float64

	running           atomic.Bool
	offset            atomic.Int64
	consecutiveErrors atomic.Int32
	stopCh            chan struct{}
	closeOnce         sync.Once
	wg                sync.WaitGroup
	err               error
}

const defaultMaxConsecutiveErrors = 10

const (
	defaultRetryInitialDelay  = 1 * time.Second
	defaultRetryMaxDelay      = 60 * time.Second
	defaultRetryBackoffFactor = 2.0
)

// LongPollingOption configures the LongPoller.
type LongPollingOption func(*LongPoller)

// WithMaxErrors sets the maximum consecutive fetch errors before stopping.
// Set to 0 for unlimited retries.
func WithMaxErrors(max int) LongPollingOption {
	return func(p *LongPoller) {
		p.maxErrors = max
	}
}

// WithAllowedUpdates sets the update types to receive.
func WithAllowedUpdates(types []string) LongPollingOption {
	return func(p *LongPoller) {
		p.allowedUpdates = types
	}
}

// WithDeleteWebhook deletes any registered webhook before polling starts.
func WithDeleteWebhook(delete bool) LongPollingOption {
	return func(p *LongPoller) {
		p.deleteWebhookOnStart = delete
	}
}

// WithRetryConfig sets exponential backoff parameters for failed fetches.
// Non-positive values (and factors <= 1) keep the defaults.
func WithRetryConfig(initialDelay, maxDelay time.Duration, backoffFactor float64) LongPollingOption {
	return func(p *LongPoller) {
		if initialDelay > 0 {
			p.retryInitialDelay = initialDelay
		}
		if maxDelay > 0 {
			p.retryMaxDelay = maxDelay
		}
		if backoffFactor > 1.0 {
			p.retryBackoffFactor = backoffFactor
		}
	}
}

// NewLongPoller creates a poller. timeout is the getUpdates long-poll
// timeout in seconds, limit the batch size.
func NewLongPoller(fetcher UpdateFetcher, dispatcher UpdateDispatcher, logger *slog.Logger, timeout, limit int, opts ...LongPollingOption) *LongPoller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &LongPoller{
		fetcher:            fetcher,
		dispatcher:         dispatcher,
		logger:             logger,
		timeout:            timeout,
		limit:              limit,
		maxErrors:          defaultMaxConsecutiveErrors,
		retryInitialDelay:  defaultRetryInitialDelay,
		retryMaxDelay:      defaultRetryMaxDelay,
		retryBackoffFactor: defaultRetryBackoffFactor,
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pollingHTTPClient outlives the getUpdates timeout by a margin for network
// overhead.
func pollingHTTPClient(timeoutSeconds int) *http.Client {
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds+10) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: time.Duration(timeoutSeconds+5) * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// calculateBackoff computes the next retry delay:
// min(maxDelay, initialDelay * backoffFactor^(attempt-1)) + 0-25% crypto jitter.
func (p *LongPoller) calculateBackoff(attempt int32) time.Duration {
	baseDelay := float64(p.retryInitialDelay) * math.Pow(p.retryBackoffFactor, float64(attempt-1))
	if baseDelay > float64(p.retryMaxDelay) {
		baseDelay = float64(p.retryMaxDelay)
	}

	jitterRange := int64(baseDelay * 0.25)
	if jitterRange > 0 {
		jitterBig, err := rand.Int(rand.Reader, big.NewInt(jitterRange))
		if err == nil {
			baseDelay += float64(jitterBig.Int64())
		}
	}
	return time.Duration(baseDelay)
}

// Start deletes the webhook if configured and launches the polling loop.
// Returns ErrPollingAlreadyRunning if the poller is already running.
func (p *LongPoller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPollingAlreadyRunning
	}

	if p.deleteWebhookOnStart {
		p.logger.Info("deleting existing webhook before starting long polling")
		if err := p.fetcher.DeleteWebhook(ctx, false); err != nil {
			p.running.Store(false)
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
	}

	p.wg.Add(1)
	go p.pollLoop(ctx)

	p.logger.Info("long polling started",
		"timeout", p.timeout,
		"limit", p.limit,
		"max_errors", p.maxErrors,
	)
	return nil
}

// Stop stops the loop and waits for it. Safe to call multiple times.
func (p *LongPoller) Stop() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	p.logger.Info("long polling stopped")
}

// Wait blocks until the loop exits and returns ErrMaxRetriesExceeded when
// it gave up, nil otherwise.
func (p *LongPoller) Wait() error {
	p.wg.Wait()
	return p.err
}

func (p *LongPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()
	defer p.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped due to context cancellation")
			return
		case <-p.stopCh:
			p.logger.Info("polling stopped due to stop signal")
			return
		default:
		}

		updates, err := p.fetcher.GetUpdates(ctx, int(p.offset.Load()), p.limit, p.timeout, p.allowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errCount := p.consecutiveErrors.Add(1)
			backoff := p.calculateBackoff(errCount)
			p.logger.Error("failed to fetch updates",
				"error", err,
				"consecutive_errors", errCount,
				"retry_delay", backoff,
			)

			if p.maxErrors > 0 && int(errCount) >= p.maxErrors {
				p.logger.Error("max consecutive errors exceeded, stopping polling",
					"max_errors", p.maxErrors,
				)
				p.err = ErrMaxRetriesExceeded
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-time.After(backoff):
				continue
			}
		}

		p.consecutiveErrors.Store(0)

		for i := range updates {
			upd := &updates[i]
			// Acknowledge first: a failing handler must not wedge the queue.
			if next := int64(upd.UpdateID) + 1; next > p.offset.Load() {
				p.offset.Store(next)
			}
			if err := p.dispatcher.Dispatch(ctx, upd); err != nil {
				p.logger.Error("failed to process update", "update_id", upd.UpdateID, "error", err)
			}
		}
	}
}

// Running returns true if the polling loop is active.
func (p *LongPoller) Running() bool {
	return p.running.Load()
}

// IsHealthy returns false if not running or too many consecutive errors.
func (p *LongPoller) IsHealthy() bool {
	if p.maxErrors == 0 {
		return p.running.Load()
	}
	return p.running.Load() && int(p.consecutiveErrors.Load()) < p.maxErrors
}

// ConsecutiveErrors returns the current consecutive error count.
func (p *LongPoller) ConsecutiveErrors() int32 {
	return p.consecutiveErrors.Load()
}

// Offset returns the next update id to request.
func (p *LongPoller) Offset() int {
	return int(p.offset.Load())
}
