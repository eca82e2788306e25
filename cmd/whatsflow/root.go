package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "whatsflow",
		Short:         "WhatsFlow API client and webhook receiver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files read before the environment")
	flags.StringVar(&a.overrides.Client.APIKey, "api-key", "", "API key (overrides WHATSFLOW_API_KEY)")
	flags.StringVar(&a.overrides.Client.BaseURL, "base-url", "", "API base URL (overrides WHATSFLOW_BASE_URL)")
	flags.StringVar(&a.overrides.Log.Level, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.overrides.Log.Format, "log-format", "", "log format: json or console")

	root.AddCommand(
		newServeCommand(a),
		newMessagesCommand(a),
		newDevicesCommand(a),
		newContactsCommand(a),
		newWebhooksCommand(a),
		newRateLimitCommand(a),
	)
	return root
}
