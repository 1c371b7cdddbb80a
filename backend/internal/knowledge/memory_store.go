package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "mindfulme/backend/pkg/errors"
)

// ============================================================================
// In-Memory Store
// ============================================================================

// MemoryStore is a mutex-guarded Store used for development without a Neo4j
// instance and throughout the unit tests. Upserts are serialized per store,
// so a logical entity can never end up as two rows.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*KnowledgeNode // node id -> node
	edges map[string]*KnowledgeEdge // edge id -> edge
	logs  []ExtractionLogEntry

	nodeKeys map[string]string // profile|type|canonical -> node id
	edgeKeys map[string]string // profile|src|dst|type -> edge id

	// UpsertHook runs before each node upsert; tests use it to inject
	// storage conflicts
	UpsertHook func(NodeUpsert) error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*KnowledgeNode),
		edges:    make(map[string]*KnowledgeEdge),
		nodeKeys: make(map[string]string),
		edgeKeys: make(map[string]string),
	}
}

func nodeKey(profileID string, entityType EntityType, canonical string) string {
	return profileID + "|" + string(entityType) + "|" + canonical
}

func edgeKey(profileID, src, dst, relType string) string {
	return strings.Join([]string{profileID, src, dst, relType}, "|")
}

// UpsertNode applies the merge policy atomically per logical node
func (s *MemoryStore) UpsertNode(ctx context.Context, up NodeUpsert) (*KnowledgeNode, error) {
	if hook := s.UpsertHook; hook != nil {
		if err := hook(up); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := nodeKey(up.ProfileID, up.EntityType, up.CanonicalName)
	if id, ok := s.nodeKeys[key]; ok {
		node := s.nodes[id]
		node.MentionCount++
		node.LastMentioned = up.ObservedAt
		node.Confidence = MergeConfidence(node.Confidence, up.Confidence)
		for k, v := range up.Properties {
			if node.Properties == nil {
				node.Properties = make(map[string]string)
			}
			node.Properties[k] = v
		}
		copied := *node
		return &copied, nil
	}

	node := &KnowledgeNode{
		ID:             uuid.New().String(),
		ProfileID:      up.ProfileID,
		EntityType:     up.EntityType,
		EntityName:     up.EntityName,
		CanonicalName:  up.CanonicalName,
		Properties:     up.Properties,
		Confidence:     Clamp01(up.Confidence),
		MentionCount:   1,
		FirstMentioned: up.ObservedAt,
		LastMentioned:  up.ObservedAt,
	}
	s.nodes[node.ID] = node
	s.nodeKeys[key] = node.ID
	copied := *node
	return &copied, nil
}

// UpsertEdge applies the merge policy atomically per logical edge
func (s *MemoryStore) UpsertEdge(ctx context.Context, up EdgeUpsert) (*KnowledgeEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Dangling references must not produce retrievable edges
	for _, id := range []string{up.SourceNodeID, up.TargetNodeID} {
		node, ok := s.nodes[id]
		if !ok || node.ProfileID != up.ProfileID {
			return nil, apperrors.NewInvalidRelation(up.RelationshipType, "node reference "+id+" does not exist")
		}
	}

	key := edgeKey(up.ProfileID, up.SourceNodeID, up.TargetNodeID, up.RelationshipType)
	if id, ok := s.edgeKeys[key]; ok {
		edge := s.edges[id]
		edge.Confidence = MergeConfidence(edge.Confidence, up.Confidence)
		edge.LastUpdated = up.ObservedAt
		copied := *edge
		return &copied, nil
	}

	edge := &KnowledgeEdge{
		ID:               uuid.New().String(),
		ProfileID:        up.ProfileID,
		SourceNodeID:     up.SourceNodeID,
		TargetNodeID:     up.TargetNodeID,
		RelationshipType: up.RelationshipType,
		Confidence:       Clamp01(up.Confidence),
		LastUpdated:      up.ObservedAt,
	}
	s.edges[edge.ID] = edge
	s.edgeKeys[key] = edge.ID
	copied := *edge
	return &copied, nil
}

// GetNode fetches a node by id, scoped to the profile
func (s *MemoryStore) GetNode(ctx context.Context, profileID, nodeID string) (*KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[nodeID]
	if !ok || node.ProfileID != profileID {
		return nil, apperrors.NewNotFound("node", nodeID)
	}
	copied := *node
	return &copied, nil
}

// FindNode looks up a node by its logical key; returns nil, nil on miss
func (s *MemoryStore) FindNode(ctx context.Context, profileID string, entityType EntityType, canonicalName string) (*KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.nodeKeys[nodeKey(profileID, entityType, canonicalName)]
	if !ok {
		return nil, nil
	}
	copied := *s.nodes[id]
	return &copied, nil
}

// ListNodes returns the profile's nodes ordered by last_mentioned descending
func (s *MemoryStore) ListNodes(ctx context.Context, profileID string, filter NodeFilter) ([]KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[EntityType]bool, len(filter.EntityTypes))
	for _, t := range filter.EntityTypes {
		typeSet[t] = true
	}

	var out []KnowledgeNode
	for _, node := range s.nodes {
		if node.ProfileID != profileID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[node.EntityType] {
			continue
		}
		if !filter.Since.IsZero() && node.LastMentioned.Before(filter.Since) {
			continue
		}
		out = append(out, *node)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMentioned.After(out[j].LastMentioned)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListEdges returns the profile's edges
func (s *MemoryStore) ListEdges(ctx context.Context, profileID string, filter EdgeFilter) ([]KnowledgeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[string]bool, len(filter.RelationshipTypes))
	for _, t := range filter.RelationshipTypes {
		typeSet[t] = true
	}

	var out []KnowledgeEdge
	for _, edge := range s.edges {
		if edge.ProfileID != profileID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[edge.RelationshipType] {
			continue
		}
		out = append(out, *edge)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// EdgesBetween returns the edges whose endpoints are both in nodeIDs
func (s *MemoryStore) EdgesBetween(ctx context.Context, profileID string, nodeIDs []string) ([]KnowledgeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		idSet[id] = true
	}

	var out []KnowledgeEdge
	for _, edge := range s.edges {
		if edge.ProfileID != profileID {
			continue
		}
		if idSet[edge.SourceNodeID] && idSet[edge.TargetNodeID] {
			out = append(out, *edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

// AppendExtractionLog records one extraction run; entries are never mutated
func (s *MemoryStore) AppendExtractionLog(ctx context.Context, entry ExtractionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, entry)
	return nil
}

// ExtractionLogs returns the profile's log entries, newest first
func (s *MemoryStore) ExtractionLogs(ctx context.Context, profileID string, limit int) ([]ExtractionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ExtractionLogEntry
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].ProfileID != profileID {
			continue
		}
		out = append(out, s.logs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Stats aggregates the profile's graph counts
func (s *MemoryStore) Stats(ctx context.Context, profileID string) (*NodeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &NodeStats{CountByType: make(map[EntityType]int64)}
	for _, node := range s.nodes {
		if node.ProfileID != profileID {
			continue
		}
		stats.NodeCount++
		stats.CountByType[node.EntityType]++
	}
	for _, edge := range s.edges {
		if edge.ProfileID == profileID {
			stats.EdgeCount++
		}
	}
	return stats, nil
}
