// Package graph archives completed plans and their step results into a
// graph database and reads them back for history summaries. Archiving
// is optional: with no driver configured the engine runs entirely in
// memory.
package graph

import (
	"context"

	"github.com/Pricepro2006/crewd/internal/config"
)

// Record represents a single result row from a query.
type Record map[string]any

// GraphReader provides read-only graph database operations.
type GraphReader interface {
	// Execute runs a Cypher query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// GraphWriter provides write graph database operations.
type GraphWriter interface {
	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error
}

// Driver defines the full interface for graph database operations.
// Any bolt-speaking graph DB (Neo4j, Memgraph) can implement it.
type Driver interface {
	GraphReader
	GraphWriter

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// ConfigFromEnv builds the connection configuration from the crewd
// environment. An empty URI means archiving is disabled.
func ConfigFromEnv() Config {
	e := config.Env()
	return Config{
		URI:      e.Neo4jURI,
		Username: e.Neo4jUser,
		Password: e.Neo4jPassword,
	}
}
