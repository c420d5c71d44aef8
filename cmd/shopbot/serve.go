package main

import (
	"github.com/chapmanshop/shopbot/shopbot"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Register the webhook and serve / and /webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.loadApp()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newPollCmd(root *rootOptions) *cobra.Command {
	var (
		deleteWebhook bool
		timeout       int
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Receive updates with getUpdates instead of a webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []shopbot.Option{shopbot.WithPollingDeleteWebhook(deleteWebhook)}
			if cmd.Flags().Changed("timeout") || cmd.Flags().Changed("limit") {
				opts = append(opts, shopbot.WithPolling(timeout, limit))
			}
			app, err := root.loadApp(opts...)
			if err != nil {
				return err
			}
			return app.Poll(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&deleteWebhook, "delete-webhook", true, "Delete the registered webhook before polling.")
	cmd.Flags().IntVar(&timeout, "timeout", 30, "getUpdates long-poll timeout in seconds.")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum updates per getUpdates call.")
	return cmd
}
