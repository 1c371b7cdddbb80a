package knowledge

import (
	"context"
	"time"
)

// ============================================================================
// Store Contract
// ============================================================================

// NodeUpsert carries one logical node write. The store applies the merge
// policy atomically per (profile, entity type, canonical name): on first
// sight the node is created with mention_count 1 and the given confidence; on
// recurrence mention_count is incremented, last_mentioned advances, and
// confidence moves by MergeConfidence.
type NodeUpsert struct {
	ProfileID     string
	EntityType    EntityType
	EntityName    string
	CanonicalName string
	Properties    map[string]string
	Confidence    float64
	ObservedAt    time.Time
}

// EdgeUpsert carries one logical edge write, atomic per
// (profile, source, target, relationship type).
type EdgeUpsert struct {
	ProfileID        string
	SourceNodeID     string
	TargetNodeID     string
	RelationshipType string
	Confidence       float64
	ObservedAt       time.Time
}

// NodeFilter bounds a node listing
type NodeFilter struct {
	EntityTypes []EntityType
	Since       time.Time
	Limit       int
}

// EdgeFilter bounds an edge listing
type EdgeFilter struct {
	RelationshipTypes []string
	Limit             int
}

// Store is the persistence contract for the knowledge graph. Every operation
// is scoped by profile; implementations must never return another profile's
// data. Node listings come back ordered by last_mentioned descending.
type Store interface {
	UpsertNode(ctx context.Context, up NodeUpsert) (*KnowledgeNode, error)
	UpsertEdge(ctx context.Context, up EdgeUpsert) (*KnowledgeEdge, error)
	GetNode(ctx context.Context, profileID, nodeID string) (*KnowledgeNode, error)
	FindNode(ctx context.Context, profileID string, entityType EntityType, canonicalName string) (*KnowledgeNode, error)
	ListNodes(ctx context.Context, profileID string, filter NodeFilter) ([]KnowledgeNode, error)
	ListEdges(ctx context.Context, profileID string, filter EdgeFilter) ([]KnowledgeEdge, error)
	EdgesBetween(ctx context.Context, profileID string, nodeIDs []string) ([]KnowledgeEdge, error)
	AppendExtractionLog(ctx context.Context, entry ExtractionLogEntry) error
	Stats(ctx context.Context, profileID string) (*NodeStats, error)
}

// MergeConfidence folds a new observation into an existing confidence value:
// an exponential moving average biased toward the fresh evidence plus a small
// reinforcement term, so repeated mentions accumulate toward 1.0 while a
// low-confidence re-mention still drags an inflated score down.
func MergeConfidence(existing, candidate float64) float64 {
	merged := 0.7*existing + 0.3*candidate + 0.05
	return Clamp01(merged)
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
