package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"mindfulme/backend/internal/knowledge"
)

// ============================================================================
// Extraction Log Operations
// ============================================================================

// AppendExtractionLog records one extraction run. Entries are append-only and
// never mutated after creation.
func (r *Repository) AppendExtractionLog(ctx context.Context, entry knowledge.ExtractionLogEntry) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		MERGE (p:Profile {id: $profileID})
		CREATE (l:ExtractionLog {
			id: $logID,
			profile_id: $profileID,
			conversation_id: $conversationID,
			turn_text: $turnText,
			raw_output: $rawOutput,
			node_ids: $nodeIDs,
			edge_ids: $edgeIDs,
			status: $status,
			error: $error,
			created_at: datetime($now)
		})
		CREATE (p)-[:EXTRACTED]->(l)
	`

	nodeIDs := entry.NodeIDs
	if nodeIDs == nil {
		nodeIDs = []string{}
	}
	edgeIDs := entry.EdgeIDs
	if edgeIDs == nil {
		edgeIDs = []string{}
	}

	_, err := session.Run(ctx, query, map[string]interface{}{
		"logID":          entry.ID,
		"profileID":      entry.ProfileID,
		"conversationID": entry.ConversationID,
		"turnText":       entry.TurnText,
		"rawOutput":      entry.RawOutput,
		"nodeIDs":        nodeIDs,
		"edgeIDs":        edgeIDs,
		"status":         string(entry.Status),
		"error":          entry.Error,
		"now":            entry.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to append extraction log: %w", err)
	}
	return nil
}

// ListExtractionLogs returns the profile's extraction history, newest first
func (r *Repository) ListExtractionLogs(ctx context.Context, profileID string, limit int) ([]knowledge.ExtractionLogEntry, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 50
	}

	query := `
		MATCH (l:ExtractionLog {profile_id: $profileID})
		RETURN l.id as id, l.profile_id as profile_id,
		       l.conversation_id as conversation_id, l.turn_text as turn_text,
		       l.raw_output as raw_output, l.node_ids as node_ids,
		       l.edge_ids as edge_ids, l.status as status, l.error as error,
		       l.created_at as created_at
		ORDER BY l.created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction logs: %w", err)
	}

	var entries []knowledge.ExtractionLogEntry
	for result.Next(ctx) {
		record := result.Record()
		entries = append(entries, knowledge.ExtractionLogEntry{
			ID:             getStringFromRecord(record, "id"),
			ProfileID:      getStringFromRecord(record, "profile_id"),
			ConversationID: getStringFromRecord(record, "conversation_id"),
			TurnText:       getStringFromRecord(record, "turn_text"),
			RawOutput:      getStringFromRecord(record, "raw_output"),
			NodeIDs:        getStringSliceFromRecord(record, "node_ids"),
			EdgeIDs:        getStringSliceFromRecord(record, "edge_ids"),
			Status:         knowledge.ExtractionStatus(getStringFromRecord(record, "status")),
			Error:          getStringFromRecord(record, "error"),
			CreatedAt:      getTimeFromRecord(record, "created_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read extraction logs: %w", err)
	}
	return entries, nil
}
