package knowledge

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "mindfulme/backend/pkg/errors"
)

func TestMemoryStore_UpsertNode_MergesOnLogicalKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Now().UTC().Add(-time.Hour)
	t1 := time.Now().UTC()

	first, err := store.UpsertNode(ctx, NodeUpsert{
		ProfileID: "p1", EntityType: EntityPerson,
		EntityName: "Sarah", CanonicalName: "sarah",
		Confidence: 0.8, ObservedAt: t0,
	})
	if err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	second, err := store.UpsertNode(ctx, NodeUpsert{
		ProfileID: "p1", EntityType: EntityPerson,
		EntityName: "sarah", CanonicalName: "sarah",
		Confidence: 0.6, ObservedAt: t1,
	})
	if err != nil {
		t.Fatalf("Second UpsertNode failed: %v", err)
	}

	if second.ID != first.ID {
		t.Error("Same logical key must merge into one node")
	}
	if second.MentionCount != 2 {
		t.Errorf("Expected mention count 2, got %d", second.MentionCount)
	}
	if !second.FirstMentioned.Equal(t0) {
		t.Error("first_mentioned must not move on re-mention")
	}
	if !second.LastMentioned.Equal(t1) {
		t.Error("last_mentioned must advance on re-mention")
	}
	want := MergeConfidence(0.8, 0.6)
	if second.Confidence != want {
		t.Errorf("Expected merged confidence %v, got %v", want, second.Confidence)
	}
}

func TestMemoryStore_UpsertEdge_DanglingReference(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.UpsertEdge(ctx, EdgeUpsert{
		ProfileID: "p1", SourceNodeID: "nope", TargetNodeID: "also-nope",
		RelationshipType: "helps", Confidence: 0.5, ObservedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("Expected error for dangling references")
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeRelation) {
		t.Errorf("Expected relation error, got %v", err)
	}
}

func TestMemoryStore_CrossProfileEdgeRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	a, _ := store.UpsertNode(ctx, NodeUpsert{ProfileID: "p1", EntityType: EntityPerson, EntityName: "Sarah", CanonicalName: "sarah", Confidence: 0.8, ObservedAt: now})
	b, _ := store.UpsertNode(ctx, NodeUpsert{ProfileID: "p2", EntityType: EntityPerson, EntityName: "Marcus", CanonicalName: "marcus", Confidence: 0.8, ObservedAt: now})

	_, err := store.UpsertEdge(ctx, EdgeUpsert{
		ProfileID: "p1", SourceNodeID: a.ID, TargetNodeID: b.ID,
		RelationshipType: "knows", Confidence: 0.5, ObservedAt: now,
	})
	if err == nil {
		t.Error("Edge spanning profiles must be rejected")
	}
}

func TestMemoryStore_ListNodes_OrderAndFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	store.UpsertNode(ctx, NodeUpsert{ProfileID: "p1", EntityType: EntityPerson, EntityName: "Sarah", CanonicalName: "sarah", Confidence: 0.8, ObservedAt: now.Add(-2 * time.Hour)})
	store.UpsertNode(ctx, NodeUpsert{ProfileID: "p1", EntityType: EntityActivity, EntityName: "yoga", CanonicalName: "yoga", Confidence: 0.8, ObservedAt: now})
	store.UpsertNode(ctx, NodeUpsert{ProfileID: "p1", EntityType: EntityEmotion, EntityName: "calm", CanonicalName: "calm", Confidence: 0.8, ObservedAt: now.Add(-time.Hour)})

	nodes, err := store.ListNodes(ctx, "p1", NodeFilter{})
	if err != nil {
		t.Fatalf("ListNodes failed: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("Expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].EntityName != "yoga" || nodes[2].EntityName != "Sarah" {
		t.Errorf("Expected last_mentioned descending order, got %q first and %q last", nodes[0].EntityName, nodes[2].EntityName)
	}

	typed, _ := store.ListNodes(ctx, "p1", NodeFilter{EntityTypes: []EntityType{EntityActivity}})
	if len(typed) != 1 || typed[0].EntityName != "yoga" {
		t.Errorf("Type filter failed: %+v", typed)
	}

	recent, _ := store.ListNodes(ctx, "p1", NodeFilter{Since: now.Add(-90 * time.Minute)})
	if len(recent) != 2 {
		t.Errorf("Since filter failed, got %d nodes", len(recent))
	}

	limited, _ := store.ListNodes(ctx, "p1", NodeFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Limit failed, got %d nodes", len(limited))
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	node, _ := store.UpsertNode(ctx, NodeUpsert{ProfileID: "p1", EntityType: EntityPerson, EntityName: "Sarah", CanonicalName: "sarah", Confidence: 0.8, ObservedAt: now})
	node.EntityName = "mutated"

	fetched, err := store.GetNode(ctx, "p1", node.ID)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if fetched.EntityName != "Sarah" {
		t.Error("Caller mutation leaked into the store")
	}
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.UpsertNode(ctx, NodeUpsert{
				ProfileID: "p1", EntityType: EntityPerson,
				EntityName: "Sarah", CanonicalName: "sarah",
				Confidence: 0.8, ObservedAt: now,
			})
		}()
	}
	wg.Wait()

	stats, _ := store.Stats(ctx, "p1")
	if stats.NodeCount != 1 {
		t.Errorf("Concurrent upserts of one logical entity must yield 1 node, got %d", stats.NodeCount)
	}
	node, _ := store.FindNode(ctx, "p1", EntityPerson, "sarah")
	if node.MentionCount != 20 {
		t.Errorf("Expected 20 mentions, got %d", node.MentionCount)
	}
}

func TestMergeConfidence(t *testing.T) {
	// Repeated reinforcement converges upward and stays clamped
	c := 0.5
	for i := 0; i < 20; i++ {
		c = MergeConfidence(c, 0.9)
	}
	if c > 1.0 {
		t.Errorf("Confidence escaped [0,1]: %v", c)
	}
	if c < 0.9 {
		t.Errorf("Repeated strong evidence should push confidence high, got %v", c)
	}

	// A low-confidence re-mention drags an inflated score down
	if got := MergeConfidence(1.0, 0.1); got >= 1.0 {
		t.Errorf("Expected decay from 1.0 with weak evidence, got %v", got)
	}
}
