package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookhook/internal/booking"
	"bookhook/internal/config"
	"bookhook/internal/notify"
	"bookhook/internal/server"
	"bookhook/internal/webhook"
	"bookhook/pkg/fileutil"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var testMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server to receive signed booking webhooks.

Verified invitee.created and invitee.canceled deliveries are applied to the
booking store. Other event types are acknowledged and ignored.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("BOOKHOOK_TEST_MODE") == "1",
		"Enable test mode (in-memory store, skip config validation)")
}

// bookingStore is what serve needs from either store implementation
type bookingStore interface {
	webhook.Store
	server.DeliveryLog
	server.Pinger
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	logger, logFileHandle, err := setupLogging(cfg.Log.File, level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting bookhook", "version", version, "test_mode", testMode)

	if cfg.Source == "" {
		logger.Info("No configuration file found, using defaults and environment",
			"searched", fileutil.DefaultConfigPaths(config.DefaultFileName))
	} else {
		logger.Info("Loaded configuration", "config", cfg.Source)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		if !testMode {
			logger.Error("Invalid configuration", "errors", errs)
			return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
		}
		logger.Warn("Ignoring invalid configuration in test mode", "errors", errs)
	}

	var store bookingStore
	if testMode {
		logger.Info("Using in-memory booking store")
		store = booking.NewMemoryStore()
	} else {
		if err := fileutil.EnsureParentDir(cfg.Store.Path, 0750); err != nil {
			return err
		}
		logger.Info("Opening booking database", "db", cfg.Store.Path)
		sqliteStore, err := booking.NewStore(cfg.Store.Path)
		if err != nil {
			logger.Error("Failed to open booking database", "error", err)
			return fmt.Errorf("failed to open booking database: %w", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := webhook.NewDispatcher(store, notifier, logger)
	dispatcher.Timeout = cfg.DispatchTimeout()

	srv := server.NewServer(server.Settings{
		Path:    cfg.Webhook.Path,
		Secret:  cfg.Webhook.Secret.Value(),
		MaxSkew: cfg.MaxSkew(),
	}, dispatcher, logger)
	srv.Deliveries = store
	srv.Health = store

	logger.Info("Webhook settings",
		"path", cfg.Webhook.Path,
		"secret", cfg.Webhook.Secret,
		"max_skew", cfg.MaxSkew().String(),
		"dispatch_timeout", dispatcher.Timeout.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Addr()) }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("Pending notifications abandoned", "error", err)
	}

	logger.Info("Server stopped")
	return nil
}

// buildNotifier assembles the configured notifiers behind a rate limit.
// It returns a nil interface when nothing is configured.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (webhook.Notifier, error) {
	var notifiers notify.Multi

	if len(cfg.Notify.Commands) > 0 {
		commands, err := notify.NewCommandNotifier(cfg.Notify.Commands, cfg.CommandTimeout(), logger)
		if err != nil {
			return nil, err
		}
		commands.Secrets = []string{cfg.Webhook.Secret.Value(), cfg.Notify.Mail.Password.Value()}
		logger.Info("Booking hook commands enabled", "count", len(commands.Commands))
		notifiers = append(notifiers, commands)
	}

	if mail := cfg.Notify.Mail; mail.Enabled() {
		logger.Info("Booking emails enabled", "smtp_host", mail.Host, "to", mail.To)
		notifiers = append(notifiers, notify.NewMailNotifier(notify.MailSettings{
			Host:     mail.Host,
			Port:     mail.Port,
			Username: mail.Username,
			Password: mail.Password.Value(),
			From:     mail.From,
			To:       mail.To,
		}))
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	if cfg.Notify.RatePerMinute <= 0 {
		return nil, errors.New("notify.rate_per_minute must be positive")
	}

	return notify.NewThrottled(notifiers, cfg.Notify.RatePerMinute, cfg.Notify.Burst), nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := fileutil.EnsureParentDir(logPath, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), file, nil
}
