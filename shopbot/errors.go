package shopbot

import (
	"errors"
	"fmt"
	"net/http"
)

// WebhookError represents an error with an associated HTTP status code.
type WebhookError struct {
	Code    int
	Message string
	Err     error
}

func (e *WebhookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *WebhookError) Unwrap() error {
	return e.Err
}

// Is matches any *WebhookError with the same code and message, so wrapped
// copies of the sentinels below still satisfy errors.Is.
func (e *WebhookError) Is(target error) bool {
	t, ok := target.(*WebhookError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// wrap returns a copy of a sentinel carrying err as its cause.
func (e *WebhookError) wrap(err error) *WebhookError {
	return &WebhookError{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors for the webhook handler.
var (
	ErrForbidden        = &WebhookError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrMethodNotAllowed = &WebhookError{Code: http.StatusMethodNotAllowed, Message: "method not allowed"}
	ErrBodyReadFailed   = &WebhookError{Code: http.StatusInternalServerError, Message: "failed to read request body"}
	ErrInvalidJSON      = &WebhookError{Code: http.StatusInternalServerError, Message: "invalid JSON payload"}
	ErrDispatchFailed   = &WebhookError{Code: http.StatusInternalServerError, Message: "failed to process update"}
)

// Sentinel errors for configuration.
var (
	ErrBotTokenRequired = errors.New("BOT_TOKEN is required")
	ErrInvalidBotToken  = errors.New("BOT_TOKEN has an invalid format")
)

// Sentinel errors for dispatch and handlers.
var (
	ErrHandlerPanic       = errors.New("handler panicked")
	ErrAdminNotConfigured = errors.New("ADMIN_ID is not configured")
)

// Sentinel errors for long polling runtime.
var (
	ErrPollingAlreadyRunning = errors.New("long polling is already running")
	ErrMaxRetriesExceeded    = errors.New("max consecutive retries exceeded")
)

// TelegramAPIError represents an error response from the Telegram Bot API.
type TelegramAPIError struct {
	Method      string
	Code        int
	Description string
	Err         error
}

func (e *TelegramAPIError) Error() string {
	prefix := "telegram API error"
	if e.Method != "" {
		prefix = fmt.Sprintf("telegram API error (%s)", e.Method)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s [%d]: %s: %v", prefix, e.Code, e.Description, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s [%d]: %s", prefix, e.Code, e.Description)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Description)
}

func (e *TelegramAPIError) Unwrap() error {
	return e.Err
}
