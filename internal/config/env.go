// Package config provides centralized configuration management.
// Eliminates scattered os.Getenv calls across the codebase.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// CrewdEnv holds all crewd environment variables.
type CrewdEnv struct {
	// SessionID is the current session identifier (CREWD_SESSION_ID)
	SessionID string

	// MaxAttempts bounds replanning per request (CREWD_MAX_ATTEMPTS)
	MaxAttempts int

	// MaxTotalTime is the wall-clock budget per request (CREWD_MAX_TOTAL_TIME_SECONDS)
	MaxTotalTime time.Duration

	// MaxAgents is the global agent pool size (CREWD_MAX_AGENTS)
	MaxAgents int

	// AgentIdleTimeout is how long a lent-out agent may stay active before
	// being reclaimed into the idle pool (CREWD_AGENT_IDLE_TIMEOUT_SECONDS)
	AgentIdleTimeout time.Duration

	// Neo4jURI is the optional graph archive URI (CREWD_NEO4J_URI)
	Neo4jURI string

	// Neo4jUser is the graph database user (CREWD_NEO4J_USER)
	Neo4jUser string

	// Neo4jPassword is the graph database password (CREWD_NEO4J_PASSWORD)
	Neo4jPassword string

	// NoColor disables colored terminal output (NO_COLOR)
	NoColor bool
}

var (
	env     *CrewdEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *CrewdEnv {
	envOnce.Do(func() {
		env = &CrewdEnv{
			SessionID:        os.Getenv("CREWD_SESSION_ID"),
			MaxAttempts:      getEnvInt("CREWD_MAX_ATTEMPTS", 3),
			MaxTotalTime:     getEnvSeconds("CREWD_MAX_TOTAL_TIME_SECONDS", 120*time.Second),
			MaxAgents:        getEnvInt("CREWD_MAX_AGENTS", 10),
			AgentIdleTimeout: getEnvSeconds("CREWD_AGENT_IDLE_TIMEOUT_SECONDS", 5*time.Minute),
			Neo4jURI:         os.Getenv("CREWD_NEO4J_URI"),
			Neo4jUser:        os.Getenv("CREWD_NEO4J_USER"),
			Neo4jPassword:    os.Getenv("CREWD_NEO4J_PASSWORD"),
			NoColor:          os.Getenv("NO_COLOR") != "",
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

// Paths holds standard crewd directory paths.
type Paths struct {
	// Home is the crewd home directory (~/.crewd)
	Home string

	// Data is the data directory (~/.crewd/data)
	Data string

	// Vectors is the retrieval index directory (~/.crewd/vectors)
	Vectors string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		crewdHome := filepath.Join(home, ".crewd")

		paths = &Paths{
			Home:    crewdHome,
			Data:    filepath.Join(crewdHome, "data"),
			Vectors: filepath.Join(crewdHome, "vectors"),
		}
	})
	return paths
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
