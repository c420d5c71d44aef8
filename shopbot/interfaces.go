package shopbot

import (
	"context"
	"net/http"
)

// HTTPClient is an interface for HTTP client operations.
// This allows for mocking HTTP calls in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MessageSender delivers outbound messages. *Bot implements it.
type MessageSender interface {
	SendMessage(ctx context.Context, params SendMessageParams) (*Message, error)
}

// WebhookRegistrar registers the callback URL with the Bot API.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, params SetWebhookParams) error
}

// UpdateDispatcher routes one update to its handler.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update *Update) error
}

var (
	_ MessageSender    = (*Bot)(nil)
	_ WebhookRegistrar = (*Bot)(nil)
	_ UpdateDispatcher = (*Dispatcher)(nil)
	_ http.Handler     = (*WebhookHandler)(nil)
)
