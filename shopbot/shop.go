package shopbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	welcomeText       = "Добро пожаловать в Chapman Shop! Нажмите кнопку чтобы открыть магазин:"
	openShopButton    = "Открыть магазин"
	orderHeader       = "🛒 Новый заказ из магазина"
	orderTimeLayout   = "2006-01-02 15:04:05 MST"
	noTextPlaceholder = "(no text)"
)

// Shop holds the bot's handlers: the /start welcome, the order relay to the
// administrator and the logging fallback.
type Shop struct {
	sender     MessageSender
	adminID    string
	storefront string
	now        func() time.Time
	logger     *slog.Logger
}

// NewShop wires the handlers to an outbound sender.
func NewShop(sender MessageSender, cfg *Config, logger *slog.Logger) *Shop {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Shop{
		sender:     sender,
		adminID:    cfg.AdminID,
		storefront: cfg.StorefrontURL(),
		now:        now,
		logger:     logger,
	}
}

// Register installs the handlers on d.
func (s *Shop) Register(d *Dispatcher) {
	d.HandleCommand("start", s.Start)
	d.HandleWebAppData(s.RelayOrder)
	d.HandleDefault(s.LogMessage)
}

// Start replies with the welcome text and a button opening the storefront.
func (s *Shop) Start(ctx context.Context, msg *Message) error {
	if msg.Chat == nil {
		return fmt.Errorf("start: message %d has no chat", msg.MessageID)
	}
	if s.storefront == "" {
		s.logger.Warn("storefront URL is empty, set GITHUB_USERNAME or SHOP_URL")
	}

	_, err := s.sender.SendMessage(ctx, SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   welcomeText,
		ReplyMarkup: &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{{
				{Text: openShopButton, WebApp: &WebAppInfo{URL: s.storefront}},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	s.logger.Info("welcome sent", "chat_id", msg.Chat.ID)
	return nil
}

// RelayOrder forwards the mini app payload to the administrator chat.
// Payloads that are not JSON are relayed as {"raw": "..."}.
func (s *Shop) RelayOrder(ctx context.Context, msg *Message) error {
	if s.adminID == "" {
		return ErrAdminNotConfigured
	}

	data := ""
	if msg.WebAppData != nil {
		data = msg.WebAppData.Data
	}
	payload := decodePayload(data)

	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("format order: %w", err)
	}

	text := formatOrder(msg.From, s.now(), pretty)
	if _, err := s.sender.SendMessage(ctx, SendMessageParams{
		ChatID: s.adminID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("relay order: %w", err)
	}

	s.logger.Info("order relayed to admin", "user_id", userID(msg.From), "bytes", len(data))
	return nil
}

// LogMessage only records who wrote what.
func (s *Shop) LogMessage(_ context.Context, msg *Message) error {
	text := msg.Text
	if text == "" {
		text = noTextPlaceholder
	}
	s.logger.Info("message received", "user_id", userID(msg.From), "text", text)
	return nil
}

func decodePayload(data string) any {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return map[string]string{"raw": data}
	}
	return v
}

func formatOrder(from *User, at time.Time, pretty []byte) string {
	var b strings.Builder
	b.WriteString(orderHeader)
	b.WriteString("\n\n")
	if from != nil {
		name := strings.TrimSpace(from.FirstName + " " + from.LastName)
		fmt.Fprintf(&b, "От: %s", name)
		if from.Username != "" {
			fmt.Fprintf(&b, " (@%s)", from.Username)
		}
		fmt.Fprintf(&b, " [id %d]\n", from.ID)
	}
	fmt.Fprintf(&b, "Время: %s\n\n", at.Format(orderTimeLayout))
	b.Write(pretty)
	return b.String()
}

func userID(u *User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
