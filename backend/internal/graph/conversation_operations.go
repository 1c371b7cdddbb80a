package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	apperrors "mindfulme/backend/pkg/errors"
)

// ============================================================================
// Conversation Operations
// ============================================================================

// CreateConversation starts a new chat or journal thread for the profile
func (r *Repository) CreateConversation(ctx context.Context, profileID string, convType ConversationType) (*Conversation, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	convID := uuid.New().String()
	now := time.Now().UTC()

	query := `
		MERGE (p:Profile {id: $profileID})
		CREATE (c:Conversation {
			id: $convID,
			profile_id: $profileID,
			type: $convType,
			created_at: datetime($now),
			updated_at: datetime($now)
		})
		CREATE (p)-[:PARTICIPATED_IN]->(c)
		RETURN c.id as id
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"convID":    convID,
		"convType":  string(convType),
		"now":       now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &Conversation{
		ID:        convID,
		ProfileID: profileID,
		Type:      convType,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation fetches a conversation with its messages in chronological
// order
func (r *Repository) GetConversation(ctx context.Context, profileID, conversationID string) (*Conversation, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (c:Conversation {id: $convID, profile_id: $profileID})
		OPTIONAL MATCH (c)-[:CONTAINS]->(m:Message)
		WITH c, m ORDER BY m.timestamp ASC
		RETURN c.id as id, c.profile_id as profile_id, c.type as type,
		       c.created_at as created_at, c.updated_at as updated_at,
		       collect({
		           id: m.id, role: m.role, content: m.content,
		           has_voice: m.has_voice, timestamp: m.timestamp
		       }) as messages
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"convID":    conversationID,
		"profileID": profileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read conversation: %w", err)
		}
		return nil, apperrors.NewNotFound("conversation", conversationID)
	}
	return conversationFromRecord(result.Record()), nil
}

// ListConversations returns the profile's conversations ordered by most
// recent activity, optionally filtered by type
func (r *Repository) ListConversations(ctx context.Context, profileID string, convType ConversationType, limit int) ([]Conversation, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 100
	}

	query := `
		MATCH (c:Conversation {profile_id: $profileID})
		WHERE $convType = '' OR c.type = $convType
		RETURN c.id as id, c.profile_id as profile_id, c.type as type,
		       c.created_at as created_at, c.updated_at as updated_at,
		       [] as messages
		ORDER BY c.updated_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"convType":  string(convType),
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var conversations []Conversation
	for result.Next(ctx) {
		conversations = append(conversations, *conversationFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return conversations, nil
}

// AppendMessages appends a user/assistant turn pair and bumps the
// conversation's updated_at
func (r *Repository) AppendMessages(ctx context.Context, profileID, conversationID string, messages []Message) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC()

	msgParams := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		msgParams = append(msgParams, map[string]interface{}{
			"id":        id,
			"role":      m.Role,
			"content":   m.Content,
			"has_voice": m.HasVoice,
			"timestamp": ts.Format(time.RFC3339),
		})
	}

	query := `
		MATCH (c:Conversation {id: $convID, profile_id: $profileID})
		SET c.updated_at = datetime($now)
		WITH c
		UNWIND $messages as msg
		CREATE (m:Message {
			id: msg.id,
			role: msg.role,
			content: msg.content,
			has_voice: msg.has_voice,
			timestamp: datetime(msg.timestamp)
		})
		CREATE (c)-[:CONTAINS]->(m)
		RETURN count(m) as appended
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"convID":    conversationID,
		"profileID": profileID,
		"now":       now.Format(time.RFC3339),
		"messages":  msgParams,
	})
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify appended messages: %w", err)
	}
	if getInt64FromRecord(record, "appended") == 0 {
		return apperrors.NewNotFound("conversation", conversationID)
	}
	return nil
}

// GetRecentTurns returns the last limit messages in chronological order, the
// context window used for pronoun resolution during extraction
func (r *Repository) GetRecentTurns(ctx context.Context, profileID, conversationID string, limit int) ([]Message, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 10
	}

	query := `
		MATCH (c:Conversation {id: $convID, profile_id: $profileID})-[:CONTAINS]->(m:Message)
		RETURN m.id as id, m.role as role, m.content as content,
		       m.has_voice as has_voice, m.timestamp as timestamp
		ORDER BY m.timestamp DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"convID":    conversationID,
		"profileID": profileID,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent turns: %w", err)
	}

	var messages []Message
	for result.Next(ctx) {
		record := result.Record()
		messages = append(messages, Message{
			ID:        getStringFromRecord(record, "id"),
			Role:      getStringFromRecord(record, "role"),
			Content:   getStringFromRecord(record, "content"),
			Timestamp: getTimeFromRecord(record, "timestamp"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent turns: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func conversationFromRecord(record *neo4j.Record) *Conversation {
	conv := &Conversation{
		ID:        getStringFromRecord(record, "id"),
		ProfileID: getStringFromRecord(record, "profile_id"),
		Type:      ConversationType(getStringFromRecord(record, "type")),
		CreatedAt: getTimeFromRecord(record, "created_at"),
		UpdatedAt: getTimeFromRecord(record, "updated_at"),
		Messages:  []Message{},
	}

	raw, ok := record.Get("messages")
	if !ok {
		return conv
	}
	items, ok := raw.([]interface{})
	if !ok {
		return conv
	}
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		msg := Message{ID: id}
		msg.Role, _ = m["role"].(string)
		msg.Content, _ = m["content"].(string)
		msg.HasVoice, _ = m["has_voice"].(bool)
		if ts, ok := m["timestamp"].(time.Time); ok {
			msg.Timestamp = ts
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv
}
