package shopbot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	defaultPort       = 5000
	shopRepository    = "chapman-shop"

	// envPrefix exposes the tunables that have no short variable name,
	// e.g. SHOPBOT_READ_TIMEOUT=5s -> read_timeout.
	envPrefix = "SHOPBOT_"
)

// envKeys maps the well-known unprefixed variables onto config keys.
var envKeys = map[string]string{
	"BOT_TOKEN":        "bot_token",
	"WEBHOOK_URL":      "webhook_url",
	"WEBHOOK_SECRET":   "webhook_secret",
	"ADMIN_ID":         "admin_id",
	"GITHUB_USERNAME":  "github_username",
	"SHOP_URL":         "shop_url",
	"PORT":             "port",
	"TELEGRAM_API_URL": "api_base_url",
	"LOG_LEVEL":        "log_level",
	"LOG_FILE_PATH":    "log_file_path",
}

// Config holds every setting of the bot. It is read once at startup and
// not mutated afterwards.
type Config struct {
	BotToken       SecretToken `koanf:"bot_token" validate:"required,bottoken"`
	WebhookURL     string      `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookSecret  SecretToken `koanf:"webhook_secret"`
	AdminID        string      `koanf:"admin_id"`
	GithubUsername string      `koanf:"github_username"`
	ShopURL        string      `koanf:"shop_url" validate:"omitempty,url"`
	Port           int         `koanf:"port" validate:"min=1,max=65535"`
	APIBaseURL     string      `koanf:"api_base_url" validate:"required,url"`

	LogLevel    string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFilePath string `koanf:"log_file_path"`

	// HTTP server
	MaxBodySize       int64         `koanf:"max_body_size" validate:"gt=0"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	TLSCertPath       string        `koanf:"tls_cert_path" validate:"required_with=TLSKeyPath"`
	TLSKeyPath        string        `koanf:"tls_key_path" validate:"required_with=TLSCertPath"`

	// Bot API client
	RequestTimeout     time.Duration `koanf:"request_timeout" validate:"gt=0"`
	RateLimitRequests  float64       `koanf:"rate_limit_requests" validate:"gt=0"`
	RateLimitBurst     int           `koanf:"rate_limit_burst" validate:"gte=1"`
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`

	// Long polling
	PollingTimeout       int           `koanf:"polling_timeout" validate:"min=0,max=60"`
	PollingLimit         int           `koanf:"polling_limit" validate:"min=1,max=100"`
	PollingMaxErrors     int           `koanf:"polling_max_errors" validate:"min=0"`
	PollingDeleteWebhook bool          `koanf:"polling_delete_webhook"`
	RetryInitialDelay    time.Duration `koanf:"retry_initial_delay"`
	RetryMaxDelay        time.Duration `koanf:"retry_max_delay"`
	RetryBackoffFactor   float64       `koanf:"retry_backoff_factor"`

	// Runtime collaborators, never loaded from files or env.
	Logger     *slog.Logger     `koanf:"-"`
	HTTPClient HTTPClient       `koanf:"-"`
	Now        func() time.Time `koanf:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:               defaultPort,
		APIBaseURL:         defaultAPIBaseURL,
		LogLevel:           "info",
		MaxBodySize:        1 << 20,
		ReadTimeout:        10 * time.Second,
		ReadHeaderTimeout:  2 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RequestTimeout:     15 * time.Second,
		RateLimitRequests:  30,
		RateLimitBurst:     30,
		BreakerMaxRequests: 5,
		BreakerInterval:    2 * time.Minute,
		BreakerTimeout:     60 * time.Second,
		PollingTimeout:     30,
		PollingLimit:       100,
		PollingMaxErrors:   10,
		RetryInitialDelay:  time.Second,
		RetryMaxDelay:      60 * time.Second,
		RetryBackoffFactor: 2.0,
	}
}

// StorefrontURL is the web app opened by the /start button.
// SHOP_URL wins; otherwise the GitHub Pages URL of the shop is derived.
func (c *Config) StorefrontURL() string {
	if c.ShopURL != "" {
		return c.ShopURL
	}
	if c.GithubUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.github.io/%s/", c.GithubUsername, shopRepository)
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// validate is the shared validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Use koanf keys in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("bottoken", validateBotTokenField)
}

func validateBotTokenField(fl validator.FieldLevel) bool {
	token := fl.Field().String()
	if token == "" {
		return true // Let 'required' handle empty
	}
	return ValidateBotToken(SecretToken(token)) == nil
}

// LoadConfig loads configuration from multiple sources.
// Precedence (highest to lowest):
//  1. Programmatic options (opts...)
//  2. Environment variables (BOT_TOKEN, PORT, ..., SHOPBOT_*)
//  3. YAML config file (if path provided and present)
//  4. Default values
func LoadConfig(configPath string, opts ...Option) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps an environment variable name onto a config key. An empty
// result drops the variable.
func envKey(name string) string {
	if key, ok := envKeys[name]; ok {
		return key
	}
	if strings.HasPrefix(name, envPrefix) {
		return strings.ToLower(strings.TrimPrefix(name, envPrefix))
	}
	return ""
}

// ValidateConfig checks cfg and returns user-friendly errors.
func ValidateConfig(cfg *Config) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("bot_token: %w (set via BOT_TOKEN env var)", ErrBotTokenRequired)
	}
	if err := ValidateBotToken(cfg.BotToken); err != nil {
		return fmt.Errorf("bot_token: %w (format: 123456789:ABCdefGHI...)", err)
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.ActualTag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
