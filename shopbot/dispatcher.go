package shopbot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

// HandlerFunc handles one message. A returned error fails the whole update.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Dispatcher routes message updates by shape:
//  1. web app data (payload submitted from the mini app)
//  2. registered bot commands
//  3. the default handler
//
// The first match handles the update; nothing falls through.
type Dispatcher struct {
	logger     *slog.Logger
	commands   map[string]HandlerFunc
	webAppData HandlerFunc
	fallback   HandlerFunc
}

// NewDispatcher creates a Dispatcher with no handlers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		commands: make(map[string]HandlerFunc),
	}
}

// HandleCommand registers h for /name. Names are case-insensitive.
func (d *Dispatcher) HandleCommand(name string, h HandlerFunc) {
	d.commands[strings.ToLower(strings.TrimPrefix(name, "/"))] = h
}

// HandleWebAppData registers the handler for messages carrying web_app_data.
func (d *Dispatcher) HandleWebAppData(h HandlerFunc) {
	d.webAppData = h
}

// HandleDefault registers the handler for everything else.
func (d *Dispatcher) HandleDefault(h HandlerFunc) {
	d.fallback = h
}

// Dispatch runs the matching handler to completion. Handler errors and
// panics are returned to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, update *Update) (err error) {
	if update == nil || update.Message == nil {
		d.logger.Debug("update without message ignored")
		return nil
	}
	msg := update.Message

	name, h := d.route(msg)
	if h == nil {
		d.logger.Debug("no handler for update", "update_id", update.UpdateID, "route", name)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				"update_id", update.UpdateID,
				"route", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, name, r)
		}
	}()

	if err := h(ctx, msg); err != nil {
		return fmt.Errorf("%s handler: %w", name, err)
	}
	return nil
}

func (d *Dispatcher) route(msg *Message) (string, HandlerFunc) {
	if msg.WebAppData != nil {
		return "web_app_data", d.webAppData
	}
	if cmd, ok := ParseCommand(msg); ok {
		if h, found := d.commands[cmd]; found {
			return "/" + cmd, h
		}
	}
	return "default", d.fallback
}

// ParseCommand extracts the lower-cased command name from "/start",
// "/start@ShopBot" or "/start payload".
func ParseCommand(msg *Message) (string, bool) {
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return "", false
	}
	// When entities are present Telegram marks commands explicitly.
	if len(msg.Entities) > 0 {
		e := msg.Entities[0]
		if e.Type != "bot_command" || e.Offset != 0 {
			return "", false
		}
	}

	word := strings.Fields(msg.Text)[0]
	word = strings.TrimPrefix(word, "/")
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	if word == "" {
		return "", false
	}
	return strings.ToLower(word), true
}
