package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Raezil/celestial-bridge/pkg/bridge"
	"github.com/Raezil/celestial-bridge/pkg/config"
	"github.com/Raezil/celestial-bridge/pkg/models"
)

var (
	serveAddr    string
	serveVerbose bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query endpoint over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides BRIDGE_ADDR)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Verbose logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := newLogger(serveVerbose)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracle, err := models.NewOracle(ctx, cfg.Provider, cfg.Model)
	if err != nil {
		return err
	}

	channel, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to tool provider: %w", err)
	}
	defer channel.Close()

	engine, err := bridge.New(channel, oracle, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/query", queryHandler(engine, logger))

	server := &http.Server{Addr: addr, Handler: mux}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", addr).Msg("serving queries")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// queryHandler accepts GET /query?q=... or POST /query with {"q": "..."} and
// returns {"result": "..."}. Cycle-level failures map to 502.
func queryHandler(engine *bridge.Bridge, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var query string

		switch r.Method {
		case http.MethodGet:
			query = r.URL.Query().Get("q")
		case http.MethodPost:
			var body struct {
				Q string `json:"q"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
				return
			}
			query = body.Q
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use GET or POST"})
			return
		}

		answer, err := engine.ProcessQuery(r.Context(), query)
		if err != nil {
			logger.Error().Err(err).Msg("query cycle failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		formatted, err := engine.Prettify(r.Context(), answer)
		if err != nil {
			logger.Error().Err(err).Msg("presentation pass failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"result": formatted})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
