package main

import (
	"github.com/chapmanshop/shopbot/shopbot"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "shopbot",
		Short:        "Telegram bot for the Chapman Shop mini app",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (optional, YAML).")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Logging level: debug|info|warn|error (overrides LOG_LEVEL).")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newPollCmd(opts))
	cmd.AddCommand(newWebhookCmd(opts))

	return cmd
}

// loadApp builds the application from file, env and flags.
func (o *rootOptions) loadApp(extra ...shopbot.Option) (*shopbot.App, error) {
	var opts []shopbot.Option
	if o.logLevel != "" {
		opts = append(opts, shopbot.WithLogLevel(o.logLevel))
	}
	return shopbot.New(o.configPath, append(opts, extra...)...)
}
