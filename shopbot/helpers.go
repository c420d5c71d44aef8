package shopbot

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// WebhookPath is the route Telegram delivers updates to.
const WebhookPath = "/webhook"

var (
	botTokenPattern      = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{20,}$`)
	telegramSecretFormat = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)
)

// ensureLogPath creates all parent directories for the log file.
func ensureLogPath(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// ValidateBotToken checks the "<bot id>:<secret>" shape issued by BotFather.
func ValidateBotToken(token SecretToken) error {
	if token == "" {
		return ErrBotTokenRequired
	}
	if !botTokenPattern.MatchString(token.Value()) {
		return ErrInvalidBotToken
	}
	return nil
}

// WebhookEndpoint joins the public base URL and WebhookPath.
func WebhookEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + WebhookPath
}

// telegramCompatibleSecret reports whether secret may be passed to setWebhook
// as secret_token.
func telegramCompatibleSecret(secret SecretToken) bool {
	return telegramSecretFormat.MatchString(secret.Value())
}
