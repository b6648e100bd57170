package bot

import (
	"context"
	"fmt"
	"strings"
)

// WebhookClient manages the bot webhook registration.
type WebhookClient interface {
	DeleteWebhook(ctx context.Context) error
	SetWebhook(ctx context.Context, url string) error
}

// WebhookURL is the public address Telegram posts updates to.
func WebhookURL(host, token string) string {
	return strings.TrimRight(host, "/") + "/telegram/" + token
}

// SetupWebhook drops any previous webhook and registers the one for host.
func SetupWebhook(ctx context.Context, c WebhookClient, host, token string) error {
	if err := c.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if err := c.SetWebhook(ctx, WebhookURL(host, token)); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
