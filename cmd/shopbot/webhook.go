package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chapmanshop/shopbot/shopbot"
	"github.com/spf13/cobra"
)

func newWebhookCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect or change the registered Telegram webhook",
	}
	cmd.AddCommand(newWebhookInfoCmd(root))
	cmd.AddCommand(newWebhookSetCmd(root))
	cmd.AddCommand(newWebhookDeleteCmd(root))
	return cmd
}

type webhookReport struct {
	Bot     *shopbot.User        `json:"bot"`
	Webhook *shopbot.WebhookInfo `json:"webhook"`
}

func newWebhookInfoCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the bot identity and getWebhookInfo as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.loadApp()
			if err != nil {
				return err
			}
			// getMe fails fast on a revoked token.
			me, err := app.Bot().GetMe(cmd.Context())
			if err != nil {
				return fmt.Errorf("checking bot token: %w", err)
			}
			info, err := app.Bot().GetWebhookInfo(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(webhookReport{Bot: me, Webhook: info})
		},
	}
}

func newWebhookSetCmd(root *rootOptions) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Register WEBHOOK_URL/webhook with Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []shopbot.Option
			if url != "" {
				extra = append(extra, shopbot.WithWebhookURL(url))
			}
			app, err := root.loadApp(extra...)
			if err != nil {
				return err
			}
			cfg := app.Config()
			if cfg.WebhookURL == "" {
				return errors.New("no webhook URL: set WEBHOOK_URL or --url")
			}
			return shopbot.RegisterWebhook(cmd.Context(), app.Bot(), &cfg, cfg.Logger)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Public base URL (overrides WEBHOOK_URL).")
	return cmd
}

func newWebhookDeleteCmd(root *rootOptions) *cobra.Command {
	var dropPending bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook so long polling can be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.loadApp()
			if err != nil {
				return err
			}
			return app.Bot().DeleteWebhook(cmd.Context(), dropPending)
		},
	}
	cmd.Flags().BoolVar(&dropPending, "drop-pending", false, "Drop updates Telegram is still holding.")
	return cmd
}
