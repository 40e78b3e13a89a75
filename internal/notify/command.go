package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookhook/internal/webhook"
	"bookhook/pkg/cmdutil"
)

// CommandNotifier runs each configured hook command for a booking change.
// Booking details are passed in BOOKHOOK_* environment variables, never as
// arguments, so payload text cannot alter the command line. Any of Secrets
// appearing in command output is redacted before it is logged.
type CommandNotifier struct {
	Commands []cmdutil.Command
	Timeout  time.Duration
	Secrets  []string
	Logger   *slog.Logger
}

// NewCommandNotifier parses raw YAML command entries (strings or lists)
func NewCommandNotifier(raw []interface{}, timeout time.Duration, logger *slog.Logger) (*CommandNotifier, error) {
	cmds, err := cmdutil.ParseCommands(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid notify command: %w", err)
	}

	return &CommandNotifier{
		Commands: cmds,
		Timeout:  timeout,
		Logger:   logger,
	}, nil
}

func (n *CommandNotifier) Notify(ctx context.Context, ev webhook.Event) error {
	env := eventEnv(ev)

	var errs []error
	for _, cmd := range n.Commands {
		result, err := cmdutil.Run(ctx, cmd, cmdutil.Options{
			Timeout: n.Timeout,
			Env:     env,
		})
		if err != nil {
			attrs := []any{
				"command", cmd.String(),
				"invitee_id", ev.InviteeID,
				"error", err,
			}
			if result != nil {
				attrs = append(attrs,
					"exit_code", result.ExitCode,
					"timed_out", result.TimedOut,
					"output", string(cmdutil.Redact(result.Output, n.Secrets...)))
			}
			n.Logger.Error("notify_command_failed", attrs...)
			errs = append(errs, fmt.Errorf("%s: %w", cmd, err))
			continue
		}

		n.Logger.Info("notify_command_finished",
			"command", cmd.String(),
			"invitee_id", ev.InviteeID,
			"duration_ms", result.Duration.Milliseconds())
	}

	return errors.Join(errs...)
}
