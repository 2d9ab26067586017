// Package config holds the process-wide configuration. Values are loaded
// once at startup from environment variables (optionally seeded from a
// .env file by main) and treated as immutable afterwards; concurrent runs
// share the Config by value.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// DB2Config holds credentials for the warehouse (DB2) query tool.
type DB2Config struct {
	Host     string `envconfig:"DB2_HOST"`
	Port     int    `envconfig:"DB2_PORT" default:"50000"`
	Database string `envconfig:"DB2_DATABASE"`
	Username string `envconfig:"DB2_USERNAME"`
	Password string `envconfig:"DB2_PASSWORD"`
}

// Configured reports whether every required DB2 credential is present.
func (c DB2Config) Configured() bool {
	return c.Host != "" && c.Database != "" && c.Username != "" && c.Password != ""
}

// PSQLConfig holds credentials for the PostgreSQL query tool.
type PSQLConfig struct {
	Host     string `envconfig:"PSQL_HOST"`
	Port     int    `envconfig:"PSQL_PORT" default:"5432"`
	Username string `envconfig:"PSQL_USERNAME"`
	Password string `envconfig:"PSQL_PASSWORD"`
}

// Configured reports whether every required PostgreSQL credential is present.
func (c PSQLConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// Config structure
type Config struct {
	Host string `envconfig:"HOST" default:"127.0.0.1"`
	Port int    `envconfig:"PORT" default:"8000"`

	LLMModelName string `envconfig:"LLM_CHAT_MODEL_NAME" default:"ibm/granite-4-h-small"`
	LLMAPIKey    string `envconfig:"LLM_API_KEY"`
	LLMBaseURL   string `envconfig:"LLM_BASE_URL"`
	MaxTokens    int    `envconfig:"LLM_MAX_TOKENS" default:"1024"`

	// CodeInterpreterURL is the sandboxed execution backend. Generated
	// files land in InterpreterWorkDir keyed by content hash.
	CodeInterpreterURL string `envconfig:"CODE_INTERPRETER_URL" default:"http://127.0.0.1:50082"`
	InterpreterWorkDir string `envconfig:"INTERPRETER_WORKING_DIR" default:"tmp/code_interpreter"`
	LocalWorkDir       string `envconfig:"LOCAL_WORKING_DIR" default:"tmp/code_interpreter_source"`

	// PlatformURL is where files are uploaded; PublicPlatformURL is the
	// base the end user can actually reach and is what rewritten links
	// point at. Falls back to PlatformURL when unset.
	PlatformURL       string `envconfig:"PLATFORM_URL" default:"http://127.0.0.1:8334"`
	PublicPlatformURL string `envconfig:"PUBLIC_PLATFORM_URL"`

	// FileURNNamespace is the <ns> of urn:<ns>:file:<hash> references
	// emitted by the Python tool and resolved in final answers.
	FileURNNamespace string `envconfig:"FILE_URN_NAMESPACE" default:"bee"`

	DataDir     string `envconfig:"DATA_DIR" default:"data"`
	LogDir      string `envconfig:"LOG_DIR" default:"logs"`
	DetailedLog bool   `envconfig:"DETAILED_LOG"`

	MaxIterations     int `envconfig:"MAX_ITERATIONS" default:"25"`
	MaxRetriesPerStep int `envconfig:"MAX_RETRIES_PER_STEP" default:"3"`
	TotalMaxRetries   int `envconfig:"TOTAL_MAX_RETRIES" default:"10"`

	DB2  DB2Config
	PSQL PSQLConfig
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %v", err)
	}
	if cfg.PublicPlatformURL == "" {
		cfg.PublicPlatformURL = cfg.PlatformURL
	}
	return cfg, nil
}

// HistoryDBPath returns the path of the conversation history database.
func (c Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
