// Package kg explores a Neo4j knowledge graph of parsed repositories
// through a small command language.
package kg

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// Runner executes Cypher statements against the graph.
type Runner interface {
	// Run executes a query with parameters and returns one map per record.
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Ping verifies the graph is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}

// Neo4jRunner runs Cypher through the official Bolt driver.
type Neo4jRunner struct {
	driver neo4j.DriverWithContext
}

var _ Runner = (*Neo4jRunner)(nil)

// NewNeo4jRunner connects to Neo4j at uri and verifies connectivity.
func NewNeo4jRunner(ctx context.Context, uri, user, password string) (*Neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, errors.ExternalService(errors.ErrCodeGraphUnavailable, FormatError(err), err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.ExternalService(errors.ErrCodeGraphUnavailable, FormatError(err), err)
	}
	return &Neo4jRunner{driver: driver}, nil
}

func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, errors.New(errors.ErrCodeGraphQuery, FormatError(err), err)
	}

	var records []map[string]any
	for result.Next(ctx) {
		records = append(records, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeGraphQuery, FormatError(err), err)
	}
	return records, nil
}

func (r *Neo4jRunner) Ping(ctx context.Context) error {
	if err := r.driver.VerifyConnectivity(ctx); err != nil {
		return errors.ExternalService(errors.ErrCodeGraphUnavailable, FormatError(err), err)
	}
	return nil
}

func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
