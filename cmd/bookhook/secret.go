package main

import (
	"fmt"

	"bookhook/internal/config"
	"bookhook/internal/security"

	"github.com/spf13/cobra"
)

var secretCheck bool

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate or check a webhook signing secret",
	Long: `Generate a random webhook signing secret suitable for webhook.secret.

With --check, validate the configured secret instead (length, placeholder
values, and entropy).`,
	Args: cobra.NoArgs,
	RunE: runSecret,
}

func init() {
	secretCmd.Flags().BoolVar(&secretCheck, "check", false, "Validate the configured secret instead of generating one")
}

func runSecret(cmd *cobra.Command, args []string) error {
	if !secretCheck {
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("no webhook secret configured (set webhook.secret or BOOKHOOK_WEBHOOK_SECRET)")
	}
	if err := security.ValidateSecret(cfg.Webhook.Secret.Value()); err != nil {
		return fmt.Errorf("configured secret is weak: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configured secret looks good")
	return nil
}
