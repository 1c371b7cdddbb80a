package agent

import (
	"strings"
	"testing"

	"mindfulme/backend/internal/graph"
	"mindfulme/backend/internal/knowledge"
)

func TestBuildSystemPrompt_ChatPersona(t *testing.T) {
	prompt := buildSystemPrompt(graph.ConversationChat, nil)

	if !strings.Contains(prompt, "mental wellness companion") {
		t.Error("Expected chat persona in prompt")
	}
	if strings.Contains(prompt, "journaling companion") {
		t.Error("Chat prompt should not contain journal persona")
	}
	if strings.Contains(prompt, "What you remember") {
		t.Error("Empty graph context should not produce a memory section")
	}
}

func TestBuildSystemPrompt_JournalPersona(t *testing.T) {
	prompt := buildSystemPrompt(graph.ConversationJournal, &knowledge.GraphContext{})

	if !strings.Contains(prompt, "journaling companion") {
		t.Error("Expected journal persona in prompt")
	}
}

func TestFormatGraphContext(t *testing.T) {
	graphCtx := &knowledge.GraphContext{
		Nodes: []knowledge.KnowledgeNode{
			{ID: "n1", EntityType: knowledge.EntityPerson, EntityName: "Sarah", MentionCount: 3},
			{ID: "n2", EntityType: knowledge.EntityActivity, EntityName: "yoga", MentionCount: 1},
		},
		Edges: []knowledge.KnowledgeEdge{
			{ID: "e1", SourceNodeID: "n2", TargetNodeID: "n1", RelationshipType: "involves"},
		},
	}

	section := formatGraphContext(graphCtx)

	if !strings.Contains(section, "Sarah (person, mentioned 3 times)") {
		t.Errorf("Expected Sarah with mention count, got:\n%s", section)
	}
	if !strings.Contains(section, "yoga (activity)") {
		t.Errorf("Expected yoga without mention count, got:\n%s", section)
	}
	if !strings.Contains(section, "yoga involves Sarah") {
		t.Errorf("Expected rendered edge, got:\n%s", section)
	}
}

func TestFormatGraphContext_SkipsDanglingEdges(t *testing.T) {
	graphCtx := &knowledge.GraphContext{
		Nodes: []knowledge.KnowledgeNode{
			{ID: "n1", EntityType: knowledge.EntityPerson, EntityName: "Sarah"},
		},
		Edges: []knowledge.KnowledgeEdge{
			{ID: "e1", SourceNodeID: "n1", TargetNodeID: "missing", RelationshipType: "knows"},
		},
	}

	section := formatGraphContext(graphCtx)
	if strings.Contains(section, "Connections") {
		t.Errorf("Edge with missing endpoint should be skipped, got:\n%s", section)
	}
}

func TestFormatGraphContext_Empty(t *testing.T) {
	if got := formatGraphContext(nil); got != "" {
		t.Errorf("Expected empty section for nil context, got %q", got)
	}
	if got := formatGraphContext(&knowledge.GraphContext{}); got != "" {
		t.Errorf("Expected empty section for empty context, got %q", got)
	}
}
