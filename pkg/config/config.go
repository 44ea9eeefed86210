// Package config loads the bridge's startup configuration. Everything is read
// once from the environment (with an optional .env file); there is no
// hot-reload.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Raezil/celestial-bridge/pkg/celestial"
	"github.com/Raezil/celestial-bridge/pkg/models"
)

// Config captures the configuration surface of the bridge.
type Config struct {
	// CelestialBaseURL overrides the celestial-data service base URL.
	CelestialBaseURL string
	// SubscriptionKey is the optional gateway subscription key.
	SubscriptionKey string

	// Provider and Model select the completion oracle.
	Provider string
	Model    string

	// ServerCommand and ServerArgs launch the tool provider process. When
	// empty the bridge re-executes its own binary with the engine
	// subcommand.
	ServerCommand string
	ServerArgs    []string

	// Addr is the HTTP listen address for the serve command.
	Addr string
}

// Load reads .env (if present) and the environment. Model-credential
// variables (OPENAI_API_KEY and friends) stay in the environment; the oracle
// constructors read them directly.
func Load() Config {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := Config{
		CelestialBaseURL: getenv("CELESTIAL_BASE_URL", celestial.DefaultBaseURL),
		SubscriptionKey:  os.Getenv("CELESTIAL_SUBSCRIPTION_KEY"),
		Provider:         getenv("BRIDGE_PROVIDER", "openai"),
		Model:            getenv("BRIDGE_MODEL", models.DefaultOpenAIModel),
		ServerCommand:    os.Getenv("BRIDGE_SERVER_CMD"),
		Addr:             getenv("BRIDGE_ADDR", ":8000"),
	}

	if cfg.ServerCommand == "" {
		if self, err := os.Executable(); err == nil {
			cfg.ServerCommand = self
			cfg.ServerArgs = []string{"engine"}
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
