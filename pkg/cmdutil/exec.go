package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// MaxOutputBytes caps how much combined output is kept from one command
const MaxOutputBytes = 64 * 1024

// Command is a parsed hook command: the program followed by its arguments.
type Command []string

// String formats the command for logging, quoting arguments that need it.
func (c Command) String() string {
	if len(c) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(c))
	for i, part := range c {
		if part == "" || strings.ContainsAny(part, " \t\n\"'$`\\") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}
	return strings.Join(quoted, " ")
}

// Options configures a single command execution.
type Options struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds execution. Zero means only ctx applies.
	Timeout time.Duration

	// Env is appended to the parent environment, "KEY=value" form.
	Env []string
}

// Result describes a finished command.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
	TimedOut bool

	// Truncated is set when output exceeded MaxOutputBytes
	Truncated bool
}

// Run executes cmd and returns its combined output.
// A non-zero exit, a timeout, or a failure to start is returned as an error
// together with whatever Result could be collected.
func Run(ctx context.Context, cmd Command, opts Options) (*Result, error) {
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = opts.Dir
	c.Env = append(os.Environ(), opts.Env...)

	var out cappedBuffer
	out.limit = MaxOutputBytes
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	err := c.Run()

	result := &Result{
		Output:    out.Bytes(),
		Duration:  time.Since(start),
		ExitCode:  -1,
		Truncated: out.truncated,
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		return result, fmt.Errorf("command timed out: %s", cmd)
	}
	if err != nil {
		return result, fmt.Errorf("command failed: %w", err)
	}

	return result, nil
}

// ParseCommandString splits a shell-quoted command line.
//
//	"notify-send 'New booking'" -> ["notify-send", "New booking"]
func ParseCommandString(line string) (Command, error) {
	parts, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("empty command string")
	}
	return Command(parts), nil
}

// ParseCommand accepts the two YAML forms of a command:
// a shell-quoted string, or a list of arguments.
func ParseCommand(raw interface{}) (Command, error) {
	switch v := raw.(type) {
	case string:
		return ParseCommandString(v)
	case []interface{}:
		parts := make(Command, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command list item %d is not a string: %T", i, item)
			}
			parts[i] = s
		}
		if len(parts) == 0 {
			return nil, errors.New("empty command list")
		}
		return parts, nil
	case []string:
		if len(v) == 0 {
			return nil, errors.New("empty command list")
		}
		return Command(v), nil
	default:
		return nil, fmt.Errorf("invalid command type: %T (must be string or list)", raw)
	}
}

// ParseCommands parses every entry of a YAML command list.
func ParseCommands(raw []interface{}) ([]Command, error) {
	cmds := make([]Command, 0, len(raw))
	for i, entry := range raw {
		cmd, err := ParseCommand(entry)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Redact replaces every occurrence of each non-empty secret in output.
func Redact(output []byte, secrets ...string) []byte {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		output = bytes.ReplaceAll(output, []byte(secret), []byte("***REDACTED***"))
	}
	return output
}

// cappedBuffer keeps the first limit bytes written and discards the rest
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.Buffer.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
