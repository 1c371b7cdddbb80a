package knowledge

import (
	"context"
	"testing"
)

func resolveTestNodes(t *testing.T, store Store) map[string]*KnowledgeNode {
	t.Helper()
	resolver := NewEntityResolver(store)
	resolved, err := resolver.Resolve(context.Background(), "p1", []CandidateEntity{
		{Type: EntityActivity, Name: "yoga", Confidence: 0.8},
		{Type: EntityEmotion, Name: "calm", Confidence: 0.8},
		{Type: EntityPerson, Name: "Sarah", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Entity resolve failed: %v", err)
	}
	return resolved
}

func TestRelationResolver_CreatesEdge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	nodes := resolveTestNodes(t, store)
	resolver := NewRelationResolver(store)

	edges := resolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "yoga", Target: "calm", Type: "helps", Confidence: 0.7},
	}, nodes)

	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}
	if edges[0].SourceNodeID != nodes["yoga"].ID || edges[0].TargetNodeID != nodes["calm"].ID {
		t.Errorf("Edge endpoints wrong: %+v", edges[0])
	}
}

func TestRelationResolver_EdgeUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	nodes := resolveTestNodes(t, store)
	resolver := NewRelationResolver(store)

	candidates := []CandidateRelation{
		{Source: "yoga", Target: "calm", Type: "helps", Confidence: 0.6},
	}
	first := resolver.Resolve(ctx, "p1", candidates, nodes)
	second := resolver.Resolve(ctx, "p1", candidates, nodes)

	if first[0].ID != second[0].ID {
		t.Error("Re-asserted relation must reinforce the existing edge")
	}
	if second[0].Confidence <= first[0].Confidence {
		t.Errorf("Expected reinforced confidence, got %v then %v", first[0].Confidence, second[0].Confidence)
	}

	stats, _ := store.Stats(ctx, "p1")
	if stats.EdgeCount != 1 {
		t.Errorf("Expected exactly 1 edge, got %d", stats.EdgeCount)
	}
}

func TestRelationResolver_RejectsUnknownVocabulary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	nodes := resolveTestNodes(t, store)
	resolver := NewRelationResolver(store)

	edges := resolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "yoga", Target: "calm", Type: "summons", Confidence: 0.7},
	}, nodes)

	if len(edges) != 0 {
		t.Errorf("Relation type outside the vocabulary must be skipped, got %d edges", len(edges))
	}
}

func TestRelationResolver_SkipsSelfLoops(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	nodes := resolveTestNodes(t, store)
	resolver := NewRelationResolver(store)

	edges := resolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "Sarah", Target: "sarah", Type: "knows", Confidence: 0.7},
	}, nodes)

	if len(edges) != 0 {
		t.Errorf("Self-referential relation must be skipped, got %d edges", len(edges))
	}
}

func TestRelationResolver_SkipsUnresolvedMentions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	nodes := resolveTestNodes(t, store)
	resolver := NewRelationResolver(store)

	edges := resolver.Resolve(ctx, "p1", []CandidateRelation{
		{Source: "meditation", Target: "calm", Type: "helps", Confidence: 0.7},
		{Source: "yoga", Target: "nobody", Type: "involves", Confidence: 0.7},
	}, nodes)

	if len(edges) != 0 {
		t.Errorf("Relations referencing unresolved mentions must be skipped, got %d edges", len(edges))
	}
}

func TestRegisterRelationshipType(t *testing.T) {
	if ValidRelationshipType("mentors") {
		t.Fatal("Unexpected pre-registered type")
	}
	RegisterRelationshipType("mentors")
	if !ValidRelationshipType("mentors") {
		t.Error("Registered type must validate")
	}

	// Vocabulary is append-only: the built-ins are untouched
	for _, builtin := range []string{"experienced", "causes", "triggers", "helps", "relates_to", "involves", "enjoys", "avoids", "located_at", "knows"} {
		if !ValidRelationshipType(builtin) {
			t.Errorf("Built-in relationship type %q missing", builtin)
		}
	}
}
