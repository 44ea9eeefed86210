// Package cmd implements the celestial-bridge CLI using cobra.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Raezil/celestial-bridge/pkg/config"
	"github.com/Raezil/celestial-bridge/pkg/mcp"
)

const version = "0.1.0"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "celestial-bridge",
	Short: "Natural-language access to celestial almanac data",
	Long: "celestial-bridge answers free-text questions about celestial phenomena by\n" +
		"negotiating tool calls between a language model and the celestial-data API.",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(engineCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the process logger. Logs go to stderr so the engine's
// stdout stays free for the channel protocol.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// connect spawns the configured tool provider and performs the channel
// handshake. The returned client is the single shared session for the
// lifetime of the process.
func connect(ctx context.Context, cfg config.Config) (*mcp.Client, error) {
	return mcp.NewStdioClient(ctx, mcp.StdioConfig{
		Command: cfg.ServerCommand,
		Args:    cfg.ServerArgs,
		Options: mcp.Options{
			ClientInfo: mcp.ClientInfo{Name: "celestial-bridge", Version: version},
		},
	})
}
