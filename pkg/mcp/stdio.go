package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsupportedServerCommand indicates that the configured tool provider
// entry point is not an invocable command (for example a bare source file).
// The bridge refuses to start rather than spawning something that cannot
// speak the channel protocol.
var ErrUnsupportedServerCommand = errors.New("mcp: provider command is not an invocable executable")

// StdioConfig describes how to spawn a tool provider process bound to the
// stdio transport.
type StdioConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Stderr, when provided, receives the standard error stream of the
	// spawned provider process. Defaults to os.Stderr if nil.
	Stderr io.Writer

	Options Options
}

// sourceExtensions are entry points that need a toolchain or interpreter
// wrapper; passing one directly is a configuration mistake.
var sourceExtensions = map[string]bool{
	".go": true,
	".py": true,
	".ts": true,
}

// ValidateCommand checks that the configured provider entry point follows the
// invocable-command convention. It returns ErrUnsupportedServerCommand for an
// empty command or a bare source file.
func ValidateCommand(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fmt.Errorf("%w: command is empty", ErrUnsupportedServerCommand)
	}
	if ext := strings.ToLower(filepath.Ext(trimmed)); sourceExtensions[ext] {
		return fmt.Errorf("%w: %q is a source file, provide a built binary or interpreter invocation", ErrUnsupportedServerCommand, trimmed)
	}
	return nil
}

// NewStdioClient validates the configured command, starts it, and binds its
// stdin/stdout pipes to the channel transport. The caller owns the returned
// client and must Close it when the session ends. Any failure during
// initialisation stops the process and returns an error.
func NewStdioClient(ctx context.Context, cfg StdioConfig) (*Client, error) {
	if err := ValidateCommand(cfg.Command); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start command: %w", err)
	}

	transport := newStreamTransport(stdin, stdout)
	client, err := NewClient(ctx, transport, cfg.Options)
	if err != nil {
		transport.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	// Close the transport when the process exits to unblock pending reads.
	var once sync.Once
	go func() {
		_ = cmd.Wait()
		once.Do(func() {
			_ = transport.Close()
		})
	}()

	return client, nil
}
