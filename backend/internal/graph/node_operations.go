package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"mindfulme/backend/internal/knowledge"
	apperrors "mindfulme/backend/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================================
// Knowledge Node Operations
// ============================================================================

const nodeReturn = `
	RETURN e.id as id, e.profile_id as profile_id, e.entity_type as entity_type,
	       e.name as name, e.canonical_name as canonical_name,
	       e.properties as properties, e.confidence as confidence,
	       e.mention_count as mention_count,
	       e.first_mentioned as first_mentioned, e.last_mentioned as last_mentioned
`

// UpsertNode creates or strengthens a knowledge node in one atomic MERGE.
// The unique constraint on (profile_id, entity_type, canonical_name) makes
// concurrent upserts for the same logical entity serialize inside Neo4j, so
// the same real-world entity never lands twice.
func (r *Repository) UpsertNode(ctx context.Context, up knowledge.NodeUpsert) (*knowledge.KnowledgeNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	propsJSON := "{}"
	if len(up.Properties) > 0 {
		if data, err := json.Marshal(up.Properties); err == nil {
			propsJSON = string(data)
		}
	}
	observedAt := up.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	// The confidence formula mirrors knowledge.MergeConfidence
	query := `
		MERGE (p:Profile {id: $profileID})
		ON CREATE SET p.created_at = datetime($now)
		MERGE (e:Entity {profile_id: $profileID, entity_type: $entityType, canonical_name: $canonicalName})
		ON CREATE SET
			e.id = $nodeID,
			e.name = $name,
			e.properties = $propsJSON,
			e.confidence = $confidence,
			e.mention_count = 1,
			e.first_mentioned = datetime($now),
			e.last_mentioned = datetime($now)
		ON MATCH SET
			e.mention_count = e.mention_count + 1,
			e.last_mentioned = datetime($now),
			e.confidence = CASE
				WHEN 0.7 * e.confidence + 0.3 * $confidence + 0.05 > 1.0 THEN 1.0
				ELSE 0.7 * e.confidence + 0.3 * $confidence + 0.05
			END,
			e.properties = CASE WHEN $propsJSON <> '{}' THEN $propsJSON ELSE e.properties END
		MERGE (p)-[:KNOWS]->(e)
	` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID":     up.ProfileID,
		"entityType":    string(up.EntityType),
		"canonicalName": up.CanonicalName,
		"nodeID":        uuid.New().String(),
		"name":          up.EntityName,
		"propsJSON":     propsJSON,
		"confidence":    knowledge.Clamp01(up.Confidence),
		"now":           observedAt.Format(time.RFC3339),
	})
	if err != nil {
		// Two concurrent MERGEs on the same fresh key can trip the unique
		// constraint; the entity resolver retries once
		if isConstraintViolation(err) {
			return nil, apperrors.NewStorageConflict(up.CanonicalName, err)
		}
		return nil, fmt.Errorf("failed to upsert node: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read upserted node: %w", err)
	}

	node := nodeFromRecord(record)
	r.logger.Debug("Node upserted",
		zap.String("profile_id", node.ProfileID),
		zap.String("canonical_name", node.CanonicalName),
		zap.Int("mention_count", node.MentionCount),
	)
	return node, nil
}

// GetNode fetches a node by id, scoped to the profile
func (r *Repository) GetNode(ctx context.Context, profileID, nodeID string) (*knowledge.KnowledgeNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `MATCH (e:Entity {id: $nodeID, profile_id: $profileID})` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"nodeID":    nodeID,
		"profileID": profileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read node: %w", err)
		}
		return nil, apperrors.NewNotFound("node", nodeID)
	}
	return nodeFromRecord(result.Record()), nil
}

// FindNode looks up a node by its logical key; returns nil, nil on miss
func (r *Repository) FindNode(ctx context.Context, profileID string, entityType knowledge.EntityType, canonicalName string) (*knowledge.KnowledgeNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity {profile_id: $profileID, entity_type: $entityType, canonical_name: $canonicalName})
	` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID":     profileID,
		"entityType":    string(entityType),
		"canonicalName": canonicalName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find node: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read node: %w", err)
		}
		return nil, nil
	}
	return nodeFromRecord(result.Record()), nil
}

// ListNodes returns the profile's nodes ordered by last_mentioned descending
func (r *Repository) ListNodes(ctx context.Context, profileID string, filter knowledge.NodeFilter) ([]knowledge.KnowledgeNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	entityTypes := make([]string, 0, len(filter.EntityTypes))
	for _, t := range filter.EntityTypes {
		entityTypes = append(entityTypes, string(t))
	}
	since := ""
	if !filter.Since.IsZero() {
		since = filter.Since.UTC().Format(time.RFC3339)
	}

	query := `
		MATCH (e:Entity {profile_id: $profileID})
		WHERE (size($entityTypes) = 0 OR e.entity_type IN $entityTypes)
		  AND ($since = '' OR e.last_mentioned >= datetime($since))
	` + nodeReturn + `
		ORDER BY e.last_mentioned DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID":   profileID,
		"entityTypes": entityTypes,
		"since":       since,
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var nodes []knowledge.KnowledgeNode
	for result.Next(ctx) {
		nodes = append(nodes, *nodeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	return nodes, nil
}

func isConstraintViolation(err error) bool {
	var neoErr *db.Neo4jError
	return errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "ConstraintValidationFailed")
}

func nodeFromRecord(record *neo4j.Record) *knowledge.KnowledgeNode {
	node := &knowledge.KnowledgeNode{
		ID:             getStringFromRecord(record, "id"),
		ProfileID:      getStringFromRecord(record, "profile_id"),
		EntityType:     knowledge.EntityType(getStringFromRecord(record, "entity_type")),
		EntityName:     getStringFromRecord(record, "name"),
		CanonicalName:  getStringFromRecord(record, "canonical_name"),
		Confidence:     getFloat64FromRecord(record, "confidence"),
		MentionCount:   getIntFromRecord(record, "mention_count"),
		FirstMentioned: getTimeFromRecord(record, "first_mentioned"),
		LastMentioned:  getTimeFromRecord(record, "last_mentioned"),
	}

	if propsJSON := getStringFromRecord(record, "properties"); propsJSON != "" && propsJSON != "{}" {
		props := make(map[string]string)
		if err := json.Unmarshal([]byte(propsJSON), &props); err == nil {
			node.Properties = props
		}
	}
	return node
}
