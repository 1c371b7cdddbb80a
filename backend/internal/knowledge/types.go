package knowledge

import (
	"sort"
	"sync"
	"time"
)

// ============================================================================
// Knowledge Graph Types
// ============================================================================

// EntityType classifies a knowledge node
type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityEmotion  EntityType = "emotion"
	EntityActivity EntityType = "activity"
	EntityPlace    EntityType = "place"
	EntityInterest EntityType = "interest"
)

// ValidEntityType reports whether t is a known entity type
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityPerson, EntityEmotion, EntityActivity, EntityPlace, EntityInterest:
		return true
	}
	return false
}

// KnowledgeNode represents a durable entity learned about one profile
type KnowledgeNode struct {
	ID             string            `json:"id"`
	ProfileID      string            `json:"profile_id"`
	EntityType     EntityType        `json:"entity_type"`
	EntityName     string            `json:"entity_name"`
	CanonicalName  string            `json:"canonical_name"`
	Properties     map[string]string `json:"properties,omitempty"`
	Confidence     float64           `json:"confidence"`
	MentionCount   int               `json:"mention_count"`
	FirstMentioned time.Time         `json:"first_mentioned"`
	LastMentioned  time.Time         `json:"last_mentioned"`
}

// KnowledgeEdge represents a directed relationship between two nodes of the
// same profile
type KnowledgeEdge struct {
	ID               string    `json:"id"`
	ProfileID        string    `json:"profile_id"`
	SourceNodeID     string    `json:"source_node_id"`
	TargetNodeID     string    `json:"target_node_id"`
	RelationshipType string    `json:"relationship_type"`
	Confidence       float64   `json:"confidence"`
	LastUpdated      time.Time `json:"last_updated"`
}

// ExtractionStatus is the outcome of one extraction run
type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionFailed  ExtractionStatus = "failed"
	ExtractionSkipped ExtractionStatus = "skipped"
)

// ExtractionLogEntry is the append-only audit record of one extraction run
type ExtractionLogEntry struct {
	ID             string           `json:"id"`
	ProfileID      string           `json:"profile_id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	TurnText       string           `json:"turn_text"`
	RawOutput      string           `json:"raw_output,omitempty"`
	NodeIDs        []string         `json:"node_ids,omitempty"`
	EdgeIDs        []string         `json:"edge_ids,omitempty"`
	Status         ExtractionStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// GraphContext is the bounded subgraph handed to the conversational agent
type GraphContext struct {
	Nodes []KnowledgeNode `json:"nodes"`
	Edges []KnowledgeEdge `json:"edges"`
}

// Empty reports whether the context carries no graph data
func (g *GraphContext) Empty() bool {
	return len(g.Nodes) == 0
}

// NodeStats aggregates per-profile graph counts
type NodeStats struct {
	NodeCount   int64               `json:"node_count"`
	EdgeCount   int64               `json:"edge_count"`
	CountByType map[EntityType]int64 `json:"count_by_type"`
}

// ============================================================================
// Relationship Vocabulary
// ============================================================================

// The relationship vocabulary is controlled but append-only: extraction output
// using an unregistered type is rejected, and new types are admitted only by
// explicit registration.
var (
	vocabMu sync.RWMutex
	vocab   = map[string]bool{
		"experienced": true,
		"causes":      true,
		"triggers":    true,
		"helps":       true,
		"relates_to":  true,
		"involves":    true,
		"enjoys":      true,
		"avoids":      true,
		"located_at":  true,
		"knows":       true,
	}
)

// ValidRelationshipType reports whether relType is in the controlled vocabulary
func ValidRelationshipType(relType string) bool {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	return vocab[relType]
}

// RegisterRelationshipType appends a new type to the vocabulary; existing
// types are never removed
func RegisterRelationshipType(relType string) {
	if relType == "" {
		return
	}
	vocabMu.Lock()
	vocab[relType] = true
	vocabMu.Unlock()
}

// RelationshipTypes returns the current vocabulary, sorted
func RelationshipTypes() []string {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	types := make([]string, 0, len(vocab))
	for t := range vocab {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
