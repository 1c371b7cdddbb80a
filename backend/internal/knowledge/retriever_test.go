package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedNode(t *testing.T, store *MemoryStore, profileID string, entityType EntityType, name string, mentions int, lastMentioned time.Time) *KnowledgeNode {
	t.Helper()
	var node *KnowledgeNode
	for i := 0; i < mentions; i++ {
		var err error
		node, err = store.UpsertNode(context.Background(), NodeUpsert{
			ProfileID:     profileID,
			EntityType:    entityType,
			EntityName:    name,
			CanonicalName: Canonicalize(name),
			Confidence:    0.8,
			ObservedAt:    lastMentioned,
		})
		if err != nil {
			t.Fatalf("Seed upsert failed: %v", err)
		}
	}
	return node
}

func TestRetriever_NamedNodeOutranksUnnamed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	retriever := NewRetriever(store)
	now := time.Now().UTC()

	// yoga is far more salient and more recent, but the message names Sarah
	seedNode(t, store, "p1", EntityPerson, "Sarah", 1, now.Add(-30*24*time.Hour))
	seedNode(t, store, "p1", EntityActivity, "yoga", 10, now)

	graphCtx := retriever.RetrieveContext(ctx, "p1", "How is Sarah doing?", 10)
	if len(graphCtx.Nodes) != 2 {
		t.Fatalf("Expected both nodes, got %d", len(graphCtx.Nodes))
	}
	if graphCtx.Nodes[0].EntityName != "Sarah" {
		t.Errorf("Named node must rank first, got %q", graphCtx.Nodes[0].EntityName)
	}
}

func TestRetriever_BoundedResult(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	retriever := NewRetriever(store)
	now := time.Now().UTC()

	names := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf"}
	for _, name := range names {
		seedNode(t, store, "p1", EntityInterest, name, 1, now)
	}

	graphCtx := retriever.RetrieveContext(ctx, "p1", "just checking in", 5)
	if len(graphCtx.Nodes) != 5 {
		t.Errorf("Expected exactly 5 nodes, got %d", len(graphCtx.Nodes))
	}
}

func TestRetriever_EmptyGraph(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	retriever := NewRetriever(store)

	graphCtx := retriever.RetrieveContext(ctx, "p1", "hello", 10)
	if !graphCtx.Empty() {
		t.Errorf("Expected empty context for a fresh profile, got %+v", graphCtx)
	}
}

func TestRetriever_ProfileIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	retriever := NewRetriever(store)
	now := time.Now().UTC()

	seedNode(t, store, "p1", EntityPerson, "Sarah", 3, now)
	seedNode(t, store, "p2", EntityPerson, "Marcus", 3, now)

	graphCtx := retriever.RetrieveContext(ctx, "p2", "thinking about things", 10)
	for _, node := range graphCtx.Nodes {
		if node.ProfileID != "p2" {
			t.Errorf("Retrieved another profile's node: %+v", node)
		}
		if node.EntityName == "Sarah" {
			t.Error("p1's node leaked into p2's context")
		}
	}
}

func TestRetriever_InducedEdgesOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	retriever := NewRetriever(store)
	now := time.Now().UTC()

	yoga := seedNode(t, store, "p1", EntityActivity, "yoga", 2, now)
	calm := seedNode(t, store, "p1", EntityEmotion, "calm", 2, now)
	old := seedNode(t, store, "p1", EntityInterest, "chess", 1, now.Add(-90*24*time.Hour))

	for _, pair := range [][2]string{{yoga.ID, calm.ID}, {yoga.ID, old.ID}} {
		if _, err := store.UpsertEdge(ctx, EdgeUpsert{
			ProfileID:        "p1",
			SourceNodeID:     pair[0],
			TargetNodeID:     pair[1],
			RelationshipType: "relates_to",
			Confidence:       0.6,
			ObservedAt:       now,
		}); err != nil {
			t.Fatalf("Seed edge failed: %v", err)
		}
	}

	// Cap at 2 nodes: chess falls out, and so must the yoga-chess edge
	graphCtx := retriever.RetrieveContext(ctx, "p1", "feeling calm after yoga", 2)
	if len(graphCtx.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(graphCtx.Nodes))
	}
	if len(graphCtx.Edges) != 1 {
		t.Fatalf("Expected only the induced edge, got %d", len(graphCtx.Edges))
	}
	if graphCtx.Edges[0].TargetNodeID == old.ID {
		t.Error("Edge to an unselected node leaked into the context")
	}
}

func TestRetriever_FailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	retriever := NewRetriever(failingStore{})

	graphCtx := retriever.RetrieveContext(ctx, "p1", "hello", 10)
	if graphCtx == nil || !graphCtx.Empty() {
		t.Errorf("Expected empty context on store failure, got %+v", graphCtx)
	}
}

// Two sessions: coffee with Sarah, then a stressful week at work. Asking
// about Sarah must surface her without dragging the whole graph along.
func TestRetriever_TwoSessionScenario(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	entityResolver := NewEntityResolver(store)
	relationResolver := NewRelationResolver(store)
	retriever := NewRetriever(store)

	// Session one
	nodes1, err := entityResolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
		{Type: EntityActivity, Name: "coffee", Confidence: 0.7},
	})
	if err != nil {
		t.Fatalf("Session one resolve failed: %v", err)
	}
	relationResolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "coffee", Target: "Sarah", Type: "involves", Confidence: 0.7},
	}, nodes1)

	// Session two
	nodes2, err := entityResolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPlace, Name: "work", Confidence: 0.8},
		{Type: EntityEmotion, Name: "stressed", Confidence: 0.8},
	})
	if err != nil {
		t.Fatalf("Session two resolve failed: %v", err)
	}
	relationResolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "work", Target: "stressed", Type: "causes", Confidence: 0.8},
	}, nodes2)

	graphCtx := retriever.RetrieveContext(ctx, "p1", "I'm seeing Sarah again tomorrow", 10)

	var sawSarah, sawCoffeeEdge bool
	for _, n := range graphCtx.Nodes {
		if n.CanonicalName == "sarah" {
			sawSarah = true
			if graphCtx.Nodes[0].CanonicalName != "sarah" {
				t.Errorf("Sarah must rank first when named, got %q", graphCtx.Nodes[0].CanonicalName)
			}
		}
	}
	for _, e := range graphCtx.Edges {
		if e.RelationshipType == "involves" {
			sawCoffeeEdge = true
		}
	}
	if !sawSarah {
		t.Error("Sarah missing from retrieved context")
	}
	if !sawCoffeeEdge {
		t.Error("coffee-involves-Sarah edge missing from retrieved context")
	}
}

// failingStore errors on every operation
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) UpsertNode(context.Context, NodeUpsert) (*KnowledgeNode, error) {
	return nil, errStoreDown
}
func (failingStore) UpsertEdge(context.Context, EdgeUpsert) (*KnowledgeEdge, error) {
	return nil, errStoreDown
}
func (failingStore) GetNode(context.Context, string, string) (*KnowledgeNode, error) {
	return nil, errStoreDown
}
func (failingStore) FindNode(context.Context, string, EntityType, string) (*KnowledgeNode, error) {
	return nil, errStoreDown
}
func (failingStore) ListNodes(context.Context, string, NodeFilter) ([]KnowledgeNode, error) {
	return nil, errStoreDown
}
func (failingStore) ListEdges(context.Context, string, EdgeFilter) ([]KnowledgeEdge, error) {
	return nil, errStoreDown
}
func (failingStore) EdgesBetween(context.Context, string, []string) ([]KnowledgeEdge, error) {
	return nil, errStoreDown
}
func (failingStore) AppendExtractionLog(context.Context, ExtractionLogEntry) error {
	return errStoreDown
}
func (failingStore) Stats(context.Context, string) (*NodeStats, error) {
	return nil, errStoreDown
}
