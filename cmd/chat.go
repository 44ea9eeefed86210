package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Raezil/celestial-bridge/pkg/bridge"
	"github.com/Raezil/celestial-bridge/pkg/config"
	"github.com/Raezil/celestial-bridge/pkg/models"
)

var chatVerbose bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive query loop on stdin",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Verbose logging")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	logger := newLogger(chatVerbose)

	oracle, err := models.NewOracle(ctx, cfg.Provider, cfg.Model)
	if err != nil {
		return err
	}

	channel, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to tool provider: %w", err)
	}
	defer channel.Close()

	catalog, err := channel.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	names := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		names = append(names, tool.Name)
	}
	fmt.Printf("\nConnected to server with tools: %s\n", strings.Join(names, ", "))

	engine, err := bridge.New(channel, oracle, logger)
	if err != nil {
		return err
	}

	fmt.Println("\nCelestial bridge started! Type your query or 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nQuery: ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "quit") {
			break
		}

		// Per-query failures are printed; the loop itself keeps going.
		response, err := engine.ProcessQuery(ctx, query)
		if err != nil {
			fmt.Printf("\nError processing query: %v\n", err)
			continue
		}
		fmt.Printf("\nResponse:\n%s\n", response)
	}

	return scanner.Err()
}
