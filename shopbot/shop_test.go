package shopbot

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestShop(sender MessageSender, modify func(*Config)) *Shop {
	cfg := DefaultConfig()
	cfg.AdminID = "777"
	cfg.GithubUsername = "chapman"
	cfg.Now = fixedClock
	if modify != nil {
		modify(&cfg)
	}
	return NewShop(sender, &cfg, discardLogger())
}

func TestShop_Start(t *testing.T) {
	sender := &recordingSender{}
	shop := newTestShop(sender, nil)

	msg := &Message{MessageID: 3, Chat: &Chat{ID: 1001, Type: "private"}, Text: "/start"}
	if err := shop.Start(context.Background(), msg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	got := sent[0]
	if got.ChatID != int64(1001) {
		t.Errorf("ChatID = %v, want 1001", got.ChatID)
	}
	if got.Text != welcomeText {
		t.Errorf("Text = %q", got.Text)
	}
	if got.ReplyMarkup == nil || len(got.ReplyMarkup.InlineKeyboard) != 1 || len(got.ReplyMarkup.InlineKeyboard[0]) != 1 {
		t.Fatalf("want exactly one button, got %+v", got.ReplyMarkup)
	}
	button := got.ReplyMarkup.InlineKeyboard[0][0]
	if button.Text != openShopButton {
		t.Errorf("button text = %q", button.Text)
	}
	if button.WebApp == nil || button.WebApp.URL != "https://chapman.github.io/chapman-shop/" {
		t.Errorf("button web app = %+v", button.WebApp)
	}
}

func TestShop_StartUsesShopURL(t *testing.T) {
	sender := &recordingSender{}
	shop := newTestShop(sender, func(c *Config) { c.ShopURL = "https://shop.example.com/" })

	if err := shop.Start(context.Background(), &Message{Chat: &Chat{ID: 1}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if url := sender.Sent()[0].ReplyMarkup.InlineKeyboard[0][0].WebApp.URL; url != "https://shop.example.com/" {
		t.Errorf("storefront = %q", url)
	}
}

func TestShop_StartErrors(t *testing.T) {
	want := errors.New("network down")
	shop := newTestShop(&recordingSender{err: want}, nil)

	if err := shop.Start(context.Background(), &Message{Chat: &Chat{ID: 1}}); !errors.Is(err, want) {
		t.Errorf("Start() error = %v, want %v", err, want)
	}
	if err := shop.Start(context.Background(), &Message{}); err == nil {
		t.Error("Start() without chat should fail")
	}
}

func TestShop_RelayOrder(t *testing.T) {
	tests := []struct {
		name     string
		from     *User
		data     string
		contains []string
	}{
		{
			name: "json order",
			from: &User{ID: 42, FirstName: "Ivan", LastName: "Petrov", Username: "ivanp"},
			data: `{"items":[{"id":"tee","qty":2}],"total":3000}`,
			contains: []string{
				orderHeader,
				"От: Ivan Petrov (@ivanp) [id 42]",
				"Время: 2026-03-14 15:09:26 UTC",
				`"total": 3000`,
				`"qty": 2`,
			},
		},
		{
			name:     "not json",
			from:     &User{ID: 7, FirstName: "Anna"},
			data:     "two mugs please",
			contains: []string{"От: Anna [id 7]", `"raw": "two mugs please"`},
		},
		{
			name:     "anonymous",
			data:     `[1,2]`,
			contains: []string{orderHeader, "Время:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			shop := newTestShop(sender, nil)

			msg := &Message{
				Chat:       &Chat{ID: 42},
				From:       tt.from,
				WebAppData: &WebAppData{Data: tt.data, ButtonText: openShopButton},
			}
			if err := shop.RelayOrder(context.Background(), msg); err != nil {
				t.Fatalf("RelayOrder() error = %v", err)
			}

			sent := sender.Sent()
			if len(sent) != 1 {
				t.Fatalf("sent %d messages, want 1", len(sent))
			}
			if sent[0].ChatID != "777" {
				t.Errorf("ChatID = %v, want admin 777", sent[0].ChatID)
			}
			for _, s := range tt.contains {
				if !strings.Contains(sent[0].Text, s) {
					t.Errorf("text %q does not contain %q", sent[0].Text, s)
				}
			}
		})
	}
}

func TestShop_RelayOrderWithoutAdmin(t *testing.T) {
	sender := &recordingSender{}
	shop := newTestShop(sender, func(c *Config) { c.AdminID = "" })

	err := shop.RelayOrder(context.Background(), &Message{WebAppData: &WebAppData{Data: "{}"}})
	if !errors.Is(err, ErrAdminNotConfigured) {
		t.Errorf("RelayOrder() error = %v, want ErrAdminNotConfigured", err)
	}
	if len(sender.Sent()) != 0 {
		t.Error("message sent without admin")
	}
}

func TestShop_LogMessageSendsNothing(t *testing.T) {
	sender := &recordingSender{}
	shop := newTestShop(sender, nil)

	for _, text := range []string{"hello", ""} {
		if err := shop.LogMessage(context.Background(), &Message{From: &User{ID: 1}, Text: text}); err != nil {
			t.Errorf("LogMessage() error = %v", err)
		}
	}
	if len(sender.Sent()) != 0 {
		t.Errorf("LogMessage sent %d messages", len(sender.Sent()))
	}
}
