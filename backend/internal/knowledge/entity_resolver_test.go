package knowledge

import (
	"context"
	"errors"
	"testing"

	apperrors "mindfulme/backend/pkg/errors"
)

func TestEntityResolver_FirstMention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	node, ok := resolved["sarah"]
	if !ok {
		t.Fatal("Expected resolved node keyed by canonical name")
	}
	if node.MentionCount != 1 {
		t.Errorf("Expected mention count 1, got %d", node.MentionCount)
	}
	if node.EntityName != "Sarah" {
		t.Errorf("Expected original surface form preserved, got %q", node.EntityName)
	}
}

func TestEntityResolver_IdempotentReMention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	first, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}

	second, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "sarah", Confidence: 0.8},
	})
	if err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}

	if second["sarah"].ID != first["sarah"].ID {
		t.Error("Re-mention must resolve to the existing node")
	}
	if second["sarah"].MentionCount != 2 {
		t.Errorf("Expected mention count 2, got %d", second["sarah"].MentionCount)
	}

	stats, _ := store.Stats(ctx, "p1")
	if stats.NodeCount != 1 {
		t.Errorf("Expected exactly 1 node, got %d", stats.NodeCount)
	}
}

func TestEntityResolver_AliasEquivalence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	if _, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityActivity, Name: "the gym", Confidence: 0.8},
	}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityActivity, Name: "working out", Confidence: 0.7},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved["exercise"].MentionCount != 2 {
		t.Errorf("Aliased mentions must land on one node, got mention count %d", resolved["exercise"].MentionCount)
	}
}

func TestEntityResolver_BatchDedupe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	// Two mentions of the same entity in one batch collapse into one write
	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.6},
		{Type: EntityPerson, Name: "sarah", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	node := resolved["sarah"]
	if node.MentionCount != 1 {
		t.Errorf("Batch must not double-count a mention, got count %d", node.MentionCount)
	}
	// The deduped candidate carries the batch's highest confidence
	if node.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", node.Confidence)
	}
}

func TestEntityResolver_SameNameDifferentType(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	_, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Jordan", Confidence: 0.8},
		{Type: EntityPlace, Name: "Jordan", Confidence: 0.8},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	stats, _ := store.Stats(ctx, "p1")
	if stats.NodeCount != 2 {
		t.Errorf("Same name under different types must stay distinct, got %d nodes", stats.NodeCount)
	}
}

func TestEntityResolver_ConflictRetry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	conflicts := 1
	store.UpsertHook = func(up NodeUpsert) error {
		if conflicts > 0 {
			conflicts--
			return apperrors.NewStorageConflict(up.CanonicalName, errors.New("constraint violation"))
		}
		return nil
	}

	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := resolved["sarah"]; !ok {
		t.Error("Expected the retried upsert to succeed")
	}
}

func TestEntityResolver_PersistentConflictSkipsCandidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	store.UpsertHook = func(up NodeUpsert) error {
		return apperrors.NewStorageConflict(up.CanonicalName, errors.New("constraint violation"))
	}

	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
		{Type: EntityActivity, Name: "yoga", Confidence: 0.8},
	})
	// A bad candidate never fails the batch
	if err != nil {
		t.Fatalf("Resolve must not fail on per-candidate errors: %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("Expected no resolved nodes, got %d", len(resolved))
	}
}

func TestEntityResolver_BlankNamesSkipped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resolver := NewEntityResolver(store)

	resolved, err := resolver.Resolve(ctx, "p1", []CandidateEntity{
		{Type: EntityPerson, Name: "   ", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("Expected blank mention to be dropped, got %d nodes", len(resolved))
	}
}
