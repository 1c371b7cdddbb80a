package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureSchema creates the indexes backing the store's two hot access
// patterns: lookup by (profile, entity type, canonical name) and recency
// scans by last_mentioned
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT entity_logical_key IF NOT EXISTS
		 FOR (e:Entity) REQUIRE (e.profile_id, e.entity_type, e.canonical_name) IS UNIQUE`,
		`CREATE INDEX entity_by_type IF NOT EXISTS
		 FOR (e:Entity) ON (e.profile_id, e.entity_type)`,
		`CREATE INDEX entity_by_recency IF NOT EXISTS
		 FOR (e:Entity) ON (e.profile_id, e.last_mentioned)`,
		`CREATE INDEX entity_by_id IF NOT EXISTS
		 FOR (e:Entity) ON (e.id)`,
		`CREATE CONSTRAINT profile_id IF NOT EXISTS
		 FOR (p:Profile) REQUIRE p.id IS UNIQUE`,
		`CREATE INDEX conversation_by_id IF NOT EXISTS
		 FOR (c:Conversation) ON (c.id)`,
		`CREATE INDEX journal_by_date IF NOT EXISTS
		 FOR (j:Journal) ON (j.profile_id, j.date)`,
	}

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			r.logger.Warn("Schema statement failed",
				zap.String("statement", stmt),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}
