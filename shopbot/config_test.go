package shopbot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable LoadConfig looks at and restores them
// after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if envKey(name) == "" {
			continue
		}
		old := os.Getenv(name)
		os.Unsetenv(name)
		t.Cleanup(func() { os.Setenv(name, old) })
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 5000},
		{"APIBaseURL", cfg.APIBaseURL, "https://api.telegram.org"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"MaxBodySize", cfg.MaxBodySize, int64(1048576)},
		{"ReadTimeout", cfg.ReadTimeout, 10 * time.Second},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 15 * time.Second},
		{"RateLimitRequests", cfg.RateLimitRequests, 30.0},
		{"RateLimitBurst", cfg.RateLimitBurst, 30},
		{"BreakerMaxRequests", cfg.BreakerMaxRequests, uint32(5)},
		{"BreakerTimeout", cfg.BreakerTimeout, 60 * time.Second},
		{"PollingTimeout", cfg.PollingTimeout, 30},
		{"PollingLimit", cfg.PollingLimit, 100},
		{"WebhookURL", cfg.WebhookURL, ""},
		{"AdminID", cfg.AdminID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_ID", "123456")
	t.Setenv("WEBHOOK_URL", "https://shop.example.com")
	t.Setenv("WEBHOOK_SECRET", "hunter2")
	t.Setenv("GITHUB_USERNAME", "chapman")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHOPBOT_READ_TIMEOUT", "5s")
	t.Setenv("SHOPBOT_POLLING_LIMIT", "50")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.AdminID != "123456" {
		t.Errorf("AdminID = %q, want 123456", cfg.AdminID)
	}
	if cfg.WebhookURL != "https://shop.example.com" {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
	if cfg.WebhookSecret.Value() != "hunter2" {
		t.Errorf("WebhookSecret not loaded")
	}
	if cfg.GithubUsername != "chapman" {
		t.Errorf("GithubUsername = %q", cfg.GithubUsername)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.PollingLimit != 50 {
		t.Errorf("PollingLimit = %d, want 50", cfg.PollingLimit)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), "shopbot.yaml")
	yaml := "port: 7000\nadmin_id: \"42\"\nshop_url: https://shop.example.com/\nwrite_timeout: 45s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, env should win over file", cfg.Port)
	}
	if cfg.AdminID != "42" {
		t.Errorf("AdminID = %q, want 42", cfg.AdminID)
	}
	if cfg.ShopURL != "https://shop.example.com/" {
		t.Errorf("ShopURL = %q", cfg.ShopURL)
	}
	if cfg.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout = %v, want 45s", cfg.WriteTimeout)
	}
}

func TestLoadConfig_MissingFileIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
}

func TestLoadConfig_OptionsWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig("", WithPort(6000), WithWebhook("https://bot.example.com", "s3cret"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 6000 {
		t.Errorf("Port = %d, want 6000", cfg.Port)
	}
	if cfg.WebhookURL != "https://bot.example.com" || cfg.WebhookSecret.Value() != "s3cret" {
		t.Errorf("WithWebhook not applied: %q", cfg.WebhookURL)
	}
}

func TestLoadConfig_TokenErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig("")
	if !errors.Is(err, ErrBotTokenRequired) {
		t.Errorf("missing token: error = %v, want ErrBotTokenRequired", err)
	}

	t.Setenv("BOT_TOKEN", "not-a-token")
	_, err = LoadConfig("")
	if !errors.Is(err, ErrInvalidBotToken) {
		t.Errorf("bad token: error = %v, want ErrInvalidBotToken", err)
	}
	if err != nil && strings.Contains(err.Error(), "not-a-token") {
		t.Errorf("error leaks the token: %v", err)
	}
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port"},
		{"webhook url", func(c *Config) { c.WebhookURL = "not a url" }, "webhook_url"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"tls cert without key", func(c *Config) { c.TLSCertPath = "/tmp/cert.pem" }, "tls_key_path"},
		{"polling limit", func(c *Config) { c.PollingLimit = 500 }, "polling_limit"},
		{"rate limit", func(c *Config) { c.RateLimitRequests = 0 }, "rate_limit_requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BotToken = testBotToken
			tt.modify(&cfg)

			err := ValidateConfig(&cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %q", err, tt.field)
			}
		})
	}
}

func TestConfig_StorefrontURL(t *testing.T) {
	tests := []struct {
		name     string
		shopURL  string
		username string
		want     string
	}{
		{"derived from github", "", "chapman", "https://chapman.github.io/chapman-shop/"},
		{"explicit wins", "https://shop.example.com/", "chapman", "https://shop.example.com/"},
		{"nothing configured", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ShopURL: tt.shopURL, GithubUsername: tt.username}
			if got := cfg.StorefrontURL(); got != tt.want {
				t.Errorf("StorefrontURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"BOT_TOKEN", "bot_token"},
		{"TELEGRAM_API_URL", "api_base_url"},
		{"PORT", "port"},
		{"SHOPBOT_BREAKER_TIMEOUT", "breaker_timeout"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		if got := envKey(tt.name); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPresets(t *testing.T) {
	cfg := DefaultConfig()
	ProductionPreset().apply(&cfg)
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("production ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}

	cfg = DefaultConfig()
	DevelopmentPreset().apply(&cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("development LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_TuningOptions(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())

	cfg, err := LoadConfig("",
		WithPolling(10, 25),
		WithRateLimit(5, 2),
		WithBreakerConfig(3, time.Minute, 30*time.Second),
		WithTimeouts(4*time.Second, time.Second, 8*time.Second, 90*time.Second),
		WithMaxBodySize(64<<10),
	)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"PollingTimeout", cfg.PollingTimeout, 10},
		{"PollingLimit", cfg.PollingLimit, 25},
		{"RateLimitRequests", cfg.RateLimitRequests, 5.0},
		{"RateLimitBurst", cfg.RateLimitBurst, 2},
		{"BreakerMaxRequests", cfg.BreakerMaxRequests, uint32(3)},
		{"BreakerInterval", cfg.BreakerInterval, time.Minute},
		{"BreakerTimeout", cfg.BreakerTimeout, 30 * time.Second},
		{"ReadTimeout", cfg.ReadTimeout, 4 * time.Second},
		{"ReadHeaderTimeout", cfg.ReadHeaderTimeout, time.Second},
		{"WriteTimeout", cfg.WriteTimeout, 8 * time.Second},
		{"IdleTimeout", cfg.IdleTimeout, 90 * time.Second},
		{"MaxBodySize", cfg.MaxBodySize, int64(64 << 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_TuningOptionsValidated(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", testBotToken.Value())

	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"polling limit", WithPolling(30, 0), "polling_limit"},
		{"rate limit", WithRateLimit(0, 1), "rate_limit_requests"},
		{"body size", WithMaxBodySize(0), "max_body_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig("", tt.opt)
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("LoadConfig() error = %v, want failure on %s", err, tt.field)
			}
		})
	}
}
