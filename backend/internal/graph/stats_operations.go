package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"mindfulme/backend/internal/knowledge"
)

// ============================================================================
// Graph Statistics & Export
// ============================================================================

// Stats aggregates the profile's graph counts by entity type
func (r *Repository) Stats(ctx context.Context, profileID string) (*knowledge.NodeStats, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	nodeQuery := `
		MATCH (e:Entity {profile_id: $profileID})
		RETURN e.entity_type as entity_type, count(e) as type_count
	`

	result, err := session.Run(ctx, nodeQuery, map[string]interface{}{
		"profileID": profileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get node stats: %w", err)
	}

	stats := &knowledge.NodeStats{CountByType: make(map[knowledge.EntityType]int64)}
	for result.Next(ctx) {
		record := result.Record()
		entityType := getStringFromRecord(record, "entity_type")
		typeCount := getInt64FromRecord(record, "type_count")
		stats.CountByType[knowledge.EntityType(entityType)] = typeCount
		stats.NodeCount += typeCount
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node stats: %w", err)
	}

	edgeQuery := `
		MATCH (:Entity {profile_id: $profileID})-[r:REL]->(:Entity)
		RETURN count(r) as edge_count
	`
	result, err = session.Run(ctx, edgeQuery, map[string]interface{}{
		"profileID": profileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get edge stats: %w", err)
	}
	if result.Next(ctx) {
		stats.EdgeCount = getInt64FromRecord(result.Record(), "edge_count")
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge stats: %w", err)
	}
	return stats, nil
}

// GraphExport is the full dump of one profile's knowledge graph
type GraphExport struct {
	ProfileID string                    `json:"profile_id"`
	Nodes     []knowledge.KnowledgeNode `json:"nodes"`
	Edges     []knowledge.KnowledgeEdge `json:"edges"`
}

// Export dumps the profile's entire graph for backup or inspection
func (r *Repository) Export(ctx context.Context, profileID string) (*GraphExport, error) {
	nodes, err := r.ListNodes(ctx, profileID, knowledge.NodeFilter{Limit: 10000})
	if err != nil {
		return nil, err
	}
	edges, err := r.ListEdges(ctx, profileID, knowledge.EdgeFilter{Limit: 10000})
	if err != nil {
		return nil, err
	}
	return &GraphExport{
		ProfileID: profileID,
		Nodes:     nodes,
		Edges:     edges,
	}, nil
}
