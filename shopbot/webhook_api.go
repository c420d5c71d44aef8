package shopbot

import (
	"context"
	"encoding/json"
	"log/slog"
)

// telegramMaxConnections is Telegram's default for setWebhook.
const telegramMaxConnections = 40

type deleteWebhookParams struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

// SetWebhook registers a webhook URL with Telegram.
func (b *Bot) SetWebhook(ctx context.Context, params SetWebhookParams) error {
	if params.MaxConnections == 0 {
		params.MaxConnections = telegramMaxConnections
	}
	_, err := b.call(ctx, "setWebhook", params)
	return err
}

// DeleteWebhook removes the current webhook. Long polling only works
// without one.
func (b *Bot) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	_, err := b.call(ctx, "deleteWebhook", deleteWebhookParams{DropPendingUpdates: dropPendingUpdates})
	return err
}

// GetWebhookInfo retrieves the current webhook registration, for diagnostics.
func (b *Bot) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	result, err := b.call(ctx, "getWebhookInfo", struct{}{})
	if err != nil {
		return nil, err
	}

	var info WebhookInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, &TelegramAPIError{Method: "getWebhookInfo", Description: "failed to parse webhook info", Err: err}
	}
	return &info, nil
}

// RegisterWebhook registers WebhookEndpoint(cfg.WebhookURL) with Telegram.
// An empty WebhookURL only logs a warning: the process keeps serving, but
// Telegram will not deliver updates.
func RegisterWebhook(ctx context.Context, registrar WebhookRegistrar, cfg *Config, logger *slog.Logger) error {
	if cfg.WebhookURL == "" {
		logger.Warn("WEBHOOK_URL not configured, skipping webhook registration")
		return nil
	}

	params := SetWebhookParams{URL: WebhookEndpoint(cfg.WebhookURL)}
	if cfg.WebhookSecret != "" {
		if telegramCompatibleSecret(cfg.WebhookSecret) {
			params.SecretToken = cfg.WebhookSecret.Value()
		} else {
			logger.Warn("WEBHOOK_SECRET contains characters Telegram rejects, registering without secret_token")
		}
	}

	logger.Info("setting webhook", "url", params.URL)
	return registrar.SetWebhook(ctx, params)
}
