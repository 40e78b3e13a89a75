package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"bookhook/internal/config"
	"bookhook/internal/server"
	"bookhook/internal/webhook"

	"github.com/spf13/cobra"
)

var (
	signTimestamp int64
	signHeader    bool
)

var signCmd = &cobra.Command{
	Use:   "sign FILE",
	Short: "Print a webhook signature for a request body",
	Long: `Sign a request body with the configured webhook secret and print the
signature header value. Use "-" to read the body from stdin.

Example:
  curl -X POST http://127.0.0.1:5000/webhook \
    -H "Content-Type: application/json" \
    -H "X-Webhook-Signature: $(bookhook sign payload.json)" \
    --data-binary @payload.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().Int64Var(&signTimestamp, "timestamp", 0, "Unix timestamp to sign with (default: now)")
	signCmd.Flags().BoolVar(&signHeader, "header", false, "Print the full header line instead of just the value")
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("no webhook secret configured (set webhook.secret or BOOKHOOK_WEBHOOK_SECRET)")
	}

	var body []byte
	if args[0] == "-" {
		body, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), server.MaxPayloadBytes+1))
	} else {
		body, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > server.MaxPayloadBytes {
		return fmt.Errorf("body exceeds %d bytes and would be rejected", server.MaxPayloadBytes)
	}

	ts := signTimestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}

	value := webhook.Sign(body, cfg.Webhook.Secret.Value(), ts)
	if signHeader {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", server.SignatureHeader, value)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}
