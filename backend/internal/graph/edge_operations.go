package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"mindfulme/backend/internal/knowledge"
	apperrors "mindfulme/backend/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================================
// Knowledge Edge Operations
// ============================================================================

// Edges are stored as :REL relationships with the vocabulary type as a
// property, so the MERGE key stays parameterized and no query text is ever
// built from extraction output.

const edgeReturn = `
	RETURN r.id as id, s.profile_id as profile_id,
	       s.id as source_node_id, t.id as target_node_id,
	       r.type as relationship_type, r.confidence as confidence,
	       r.last_updated as last_updated
`

// UpsertEdge creates or strengthens an edge in one atomic MERGE, keyed on
// (profile, source, target, relationship type). Both endpoints must already
// exist for the profile; a dangling reference upserts nothing.
func (r *Repository) UpsertEdge(ctx context.Context, up knowledge.EdgeUpsert) (*knowledge.KnowledgeEdge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	observedAt := up.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	query := `
		MATCH (s:Entity {id: $sourceID, profile_id: $profileID})
		MATCH (t:Entity {id: $targetID, profile_id: $profileID})
		MERGE (s)-[r:REL {type: $relType}]->(t)
		ON CREATE SET
			r.id = $edgeID,
			r.confidence = $confidence,
			r.last_updated = datetime($now)
		ON MATCH SET
			r.confidence = CASE
				WHEN 0.7 * r.confidence + 0.3 * $confidence + 0.05 > 1.0 THEN 1.0
				ELSE 0.7 * r.confidence + 0.3 * $confidence + 0.05
			END,
			r.last_updated = datetime($now)
	` + edgeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"sourceID":   up.SourceNodeID,
		"targetID":   up.TargetNodeID,
		"profileID":  up.ProfileID,
		"relType":    up.RelationshipType,
		"edgeID":     uuid.New().String(),
		"confidence": knowledge.Clamp01(up.Confidence),
		"now":        observedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert edge: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read upserted edge: %w", err)
		}
		return nil, apperrors.NewInvalidRelation(up.RelationshipType, "source or target node does not exist")
	}

	edge := edgeFromRecord(result.Record())
	r.logger.Debug("Edge upserted",
		zap.String("profile_id", edge.ProfileID),
		zap.String("type", edge.RelationshipType),
	)
	return edge, nil
}

// ListEdges returns the profile's edges, newest first
func (r *Repository) ListEdges(ctx context.Context, profileID string, filter knowledge.EdgeFilter) ([]knowledge.KnowledgeEdge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	query := `
		MATCH (s:Entity {profile_id: $profileID})-[r:REL]->(t:Entity)
		WHERE size($relTypes) = 0 OR r.type IN $relTypes
	` + edgeReturn + `
		ORDER BY r.last_updated DESC
		LIMIT $limit
	`

	relTypes := filter.RelationshipTypes
	if relTypes == nil {
		relTypes = []string{}
	}

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"relTypes":  relTypes,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	var edges []knowledge.KnowledgeEdge
	for result.Next(ctx) {
		edges = append(edges, *edgeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	return edges, nil
}

// EdgesBetween returns the edges whose endpoints are both in nodeIDs, the
// induced subgraph the retriever hands to the agent
func (r *Repository) EdgesBetween(ctx context.Context, profileID string, nodeIDs []string) ([]knowledge.KnowledgeEdge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if len(nodeIDs) == 0 {
		return nil, nil
	}

	query := `
		MATCH (s:Entity {profile_id: $profileID})-[r:REL]->(t:Entity)
		WHERE s.id IN $nodeIDs AND t.id IN $nodeIDs
	` + edgeReturn + `
		ORDER BY r.last_updated DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"nodeIDs":   nodeIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get edges between nodes: %w", err)
	}

	var edges []knowledge.KnowledgeEdge
	for result.Next(ctx) {
		edges = append(edges, *edgeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	return edges, nil
}

func edgeFromRecord(record *neo4j.Record) *knowledge.KnowledgeEdge {
	return &knowledge.KnowledgeEdge{
		ID:               getStringFromRecord(record, "id"),
		ProfileID:        getStringFromRecord(record, "profile_id"),
		SourceNodeID:     getStringFromRecord(record, "source_node_id"),
		TargetNodeID:     getStringFromRecord(record, "target_node_id"),
		RelationshipType: getStringFromRecord(record, "relationship_type"),
		Confidence:       getFloat64FromRecord(record, "confidence"),
		LastUpdated:      getTimeFromRecord(record, "last_updated"),
	}
}
