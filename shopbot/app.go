package shopbot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// App is the service context: configuration plus the long-lived bot
// client, dispatcher and HTTP handler. It is built once at startup.
type App struct {
	config     Config
	logger     *slog.Logger
	bot        *Bot
	dispatcher *Dispatcher
	handler    http.Handler
}

// New loads configuration (file, env, opts) and builds an App.
//
// Example:
//
//	app, err := shopbot.New("config.yaml", shopbot.WithLogger(logger))
//	if err != nil { ... }
//	err = app.Run(ctx)
func New(configPath string, opts ...Option) (*App, error) {
	cfg, err := LoadConfig(configPath, opts...)
	if err != nil {
		return nil, err
	}
	return NewApp(*cfg)
}

// NewApp builds an App from an already validated Config.
func NewApp(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		level, err := ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger, err = NewLogger(level, cfg.LogFilePath)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		cfg.Logger = logger
	}

	bot := NewBot(&cfg, logger)
	dispatcher := NewDispatcher(logger)
	NewShop(bot, &cfg, logger).Register(dispatcher)

	webhook := NewWebhookHandler(logger, cfg.WebhookSecret, dispatcher, cfg.MaxBodySize)

	return &App{
		config:     cfg,
		logger:     logger,
		bot:        bot,
		dispatcher: dispatcher,
		handler:    NewRouter(webhook),
	}, nil
}

// Config returns a copy of the configuration.
func (a *App) Config() Config {
	return a.config
}

// Bot returns the Bot API client.
func (a *App) Bot() *Bot {
	return a.bot
}

// Dispatcher returns the update dispatcher.
func (a *App) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Handler returns the HTTP handler serving / and /webhook.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run registers the webhook (if WEBHOOK_URL is set), then serves HTTP on
// the configured port until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.config.Addr(), err)
	}
	return a.RunListener(ctx, ln)
}

// RunListener is Run on an existing listener.
func (a *App) RunListener(ctx context.Context, ln net.Listener) error {
	if err := RegisterWebhook(ctx, a.bot, &a.config, a.logger); err != nil {
		ln.Close()
		return fmt.Errorf("registering webhook: %w", err)
	}
	return Serve(ctx, &a.config, ln, a.handler, a.logger)
}

// Poll runs long polling until ctx is done or fetching keeps failing.
// It uses its own client so getUpdates can outlive the regular request
// timeout.
func (a *App) Poll(ctx context.Context) error {
	cfg := a.config
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = pollingHTTPClient(cfg.PollingTimeout)
	}
	fetcher := NewBot(&cfg, a.logger)

	poller := NewLongPoller(fetcher, a.dispatcher, a.logger,
		cfg.PollingTimeout,
		cfg.PollingLimit,
		WithMaxErrors(cfg.PollingMaxErrors),
		WithDeleteWebhook(cfg.PollingDeleteWebhook),
		WithAllowedUpdates([]string{"message"}),
		WithRetryConfig(cfg.RetryInitialDelay, cfg.RetryMaxDelay, cfg.RetryBackoffFactor),
	)
	if err := poller.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Wait()
	}()

	select {
	case <-ctx.Done():
		poller.Stop()
		return nil
	case <-done:
		return poller.Wait()
	}
}
