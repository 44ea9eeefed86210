package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Raezil/celestial-bridge/pkg/celestial"
	"github.com/Raezil/celestial-bridge/pkg/config"
)

var engineVerbose bool

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Serve the celestial tool provider on stdin/stdout",
	Long: "Runs the tool provider side of the channel: the fixed celestial tool\n" +
		"catalog served over framed JSON-RPC on stdin/stdout. The bridge spawns\n" +
		"this command itself; running it by hand is mostly useful for debugging.",
	RunE: runEngine,
}

func init() {
	engineCmd.Flags().BoolVarP(&engineVerbose, "verbose", "v", false, "Verbose logging")
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := newLogger(engineVerbose)

	client := celestial.NewClient(cfg.CelestialBaseURL, cfg.SubscriptionKey, logger)
	server, err := celestial.NewServer(client, version, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("base_url", cfg.CelestialBaseURL).Msg("celestial engine listening on stdio")
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
