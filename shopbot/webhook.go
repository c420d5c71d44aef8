package shopbot

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const (
	// SecretHeader carries the shared secret on webhook POSTs.
	SecretHeader = "X-Webhook-Secret"
	// TelegramSecretHeader is where Telegram puts the secret_token given to
	// setWebhook.
	TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// WebhookHandler receives Telegram webhook POSTs and dispatches each update
// before responding.
type WebhookHandler struct {
	logger      *slog.Logger
	secret      SecretToken
	dispatcher  UpdateDispatcher
	maxBodySize int64
}

// NewWebhookHandler creates a webhook handler. An empty secret disables the
// header check.
func NewWebhookHandler(logger *slog.Logger, secret SecretToken, dispatcher UpdateDispatcher, maxBodySize int64) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &WebhookHandler{
		logger:      logger,
		secret:      secret,
		dispatcher:  dispatcher,
		maxBodySize: maxBodySize,
	}
}

func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := wh.logger.With("request_id", uuid.NewString())
	logger.Info("webhook POST received", "remote_addr", r.RemoteAddr)

	logger, err := wh.handle(w, r, logger)
	if err != nil {
		var whErr *WebhookError
		if !errors.As(err, &whErr) {
			whErr = ErrDispatchFailed.wrap(err)
		}
		wh.fail(w, logger, whErr)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handle returns the logger enriched with update_id once the body is decoded.
func (wh *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*slog.Logger, error) {
	if r.Method != http.MethodPost {
		return logger, ErrMethodNotAllowed
	}
	if !wh.authorized(r) {
		return logger, ErrForbidden
	}

	r.Body = http.MaxBytesReader(w, r.Body, wh.maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return logger, ErrBodyReadFailed.wrap(err)
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		return logger, ErrInvalidJSON.wrap(err)
	}
	logger = logger.With("update_id", upd.UpdateID)

	if err := wh.dispatcher.Dispatch(r.Context(), &upd); err != nil {
		return logger, ErrDispatchFailed.wrap(err)
	}
	logger.Info("update processed")
	return logger, nil
}

// authorized checks the shared secret in constant time. Telegram's own
// secret header is accepted too since RegisterWebhook hands it the same
// secret.
func (wh *WebhookHandler) authorized(r *http.Request) bool {
	if wh.secret == "" {
		return true
	}
	want := []byte(wh.secret.Value())
	for _, header := range []string{SecretHeader, TelegramSecretHeader} {
		if got := r.Header.Get(header); got != "" && subtle.ConstantTimeCompare([]byte(got), want) == 1 {
			return true
		}
	}
	return false
}

func (wh *WebhookHandler) fail(w http.ResponseWriter, logger *slog.Logger, err *WebhookError) {
	switch {
	case err.Code == http.StatusForbidden:
		logger.Warn("invalid webhook secret")
	case err.Code >= http.StatusInternalServerError:
		logger.Error("failed to process update", "error", err)
	default:
		logger.Warn("webhook request rejected", "error", err)
	}
	http.Error(w, err.Message, err.Code)
}
