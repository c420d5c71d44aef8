package shopbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxResponseSize caps how much of a Bot API response is read.
const maxResponseSize = 8 << 20

// Bot is a minimal Telegram Bot API client. It is safe for concurrent use.
type Bot struct {
	token   SecretToken
	baseURL string
	client  HTTPClient
	logger  *slog.Logger

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBot creates a Bot API client from cfg. Calls are paced by a token
// bucket and wrapped in a circuit breaker; nothing is retried.
func NewBot(cfg *Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient(cfg.RequestTimeout)
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}

	return &Bot{
		token:   cfg.BotToken,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst),
		breaker: newBreaker("telegram-bot-api", cfg.BreakerMaxRequests, cfg.BreakerInterval, cfg.BreakerTimeout, logger),
	}
}

func newBreaker(name string, maxRequests uint32, interval, timeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// defaultHTTPClient returns a configured HTTP client for Bot API calls.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// SendMessage sends a text message.
func (b *Bot) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	result, err := b.call(ctx, "sendMessage", params)
	if err != nil {
		return nil, err
	}

	// The message is delivered once ok=true; failing here would make
	// Telegram redeliver the update and send it twice.
	var msg Message
	if err := json.Unmarshal(result, &msg); err != nil {
		b.logger.Warn("sendMessage result not decoded", "error", err)
		return &Message{}, nil
	}
	return &msg, nil
}

// GetMe returns the bot's own user, useful as a token check.
func (b *Bot) GetMe(ctx context.Context) (*User, error) {
	result, err := b.call(ctx, "getMe", struct{}{})
	if err != nil {
		return nil, err
	}

	var me User
	if err := json.Unmarshal(result, &me); err != nil {
		return nil, &TelegramAPIError{Method: "getMe", Description: "failed to parse user", Err: err}
	}
	return &me, nil
}

type getUpdatesParams struct {
	Offset         int      `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates fetches pending updates (long polling).
func (b *Bot) GetUpdates(ctx context.Context, offset, limit, timeout int, allowedUpdates []string) ([]Update, error) {
	result, err := b.call(ctx, "getUpdates", getUpdatesParams{
		Offset:         offset,
		Limit:          limit,
		Timeout:        timeout,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, &TelegramAPIError{Method: "getUpdates", Description: "failed to parse updates", Err: err}
	}
	return updates, nil
}

// call POSTs payload as JSON to method and returns the envelope's result.
func (b *Bot) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TelegramAPIError{Method: method, Description: "failed to marshal request", Err: err}
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &TelegramAPIError{Method: method, Description: "rate limiter", Err: err}
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token.Value(), method)

	// Transport errors and 5xx count against the breaker; API-level
	// rejections (4xx with ok=false) do not.
	respBody, err := b.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, redactURLError(err)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return data, nil
	})
	if err != nil {
		return nil, &TelegramAPIError{Method: method, Description: "request failed", Err: err}
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &TelegramAPIError{Method: method, Description: "failed to parse response", Err: err}
	}
	if !envelope.OK {
		return nil, &TelegramAPIError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
	}

	b.logger.Debug("bot API call succeeded", "method", method)
	return envelope.Result, nil
}

// redactURLError strips the request URL, which embeds the bot token, from
// transport errors.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: "[REDACTED]", Err: urlErr.Err}
	}
	return err
}
