package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Pricepro2006/crewd/internal/logging"
)

// Bolt implements Driver over the neo4j bolt protocol.
type Bolt struct {
	driver neo4j.DriverWithContext
	config Config
}

// NewBolt creates a bolt-backed driver.
func NewBolt(cfg Config) (*Bolt, error) {
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}

	return &Bolt{
		driver: driver,
		config: cfg,
	}, nil
}

// Execute runs a read query and returns results.
func (b *Bolt) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record)
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			record[key] = val
		}
		records = append(records, record)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	return records, nil
}

// ExecuteWrite runs a write query.
func (b *Bolt) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}

	return nil
}

// Close releases the database driver.
func (b *Bolt) Close() error {
	return b.driver.Close(context.Background())
}

// Ping checks database connectivity.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}

// ConnectWithRetry tries to connect with exponential backoff.
// Returns nil if the URI is unset or all retries fail; callers treat a
// nil driver as archiving disabled.
func ConnectWithRetry(cfg Config, maxRetries int) *Bolt {
	if cfg.URI == "" {
		return nil
	}

	log := logging.New("graph")
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		b, err := NewBolt(cfg)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			pingErr := b.Ping(ctx)
			cancel()
			if pingErr == nil {
				return b
			}
			b.Close()
			lastErr = pingErr
		} else {
			lastErr = err
		}
		// Backoff: 100ms, 200ms, 400ms...
		time.Sleep(time.Duration(100<<i) * time.Millisecond)
	}

	log.Warn("graph_unavailable", map[string]interface{}{"uri": cfg.URI}, lastErr)
	return nil
}
