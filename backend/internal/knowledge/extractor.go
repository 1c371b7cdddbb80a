package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mindfulme/backend/internal/adapter"
	apperrors "mindfulme/backend/pkg/errors"
	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// ============================================================================
// Text Understanding
// ============================================================================

// CandidateEntity is one entity mention proposed by the text-understanding
// capability, before resolution
type CandidateEntity struct {
	Type       EntityType `json:"type"`
	Name       string     `json:"name"`
	Span       string     `json:"span,omitempty"`
	Confidence float64    `json:"confidence"`
}

// CandidateRelation is one relation proposed between two entity mentions,
// referenced by mention name
type CandidateRelation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Understanding is the validated output of one understand call
type Understanding struct {
	Entities  []CandidateEntity   `json:"entities"`
	Relations []CandidateRelation `json:"relations"`
	Raw       string              `json:"-"`
}

// Understander is the black-box text-understanding capability. Implementations
// must tolerate malformed, partial, or empty model output and fail closed.
type Understander interface {
	Understand(ctx context.Context, text string, contextWindow []string) (*Understanding, error)
}

// LLMUnderstander implements Understander on top of the shared LLM adapter
// with a strict-JSON extraction prompt
type LLMUnderstander struct {
	llm    *adapter.LLMAdapter
	logger *zap.Logger
}

// NewLLMUnderstander creates an Understander backed by the LLM gateway
func NewLLMUnderstander(llm *adapter.LLMAdapter) *LLMUnderstander {
	return &LLMUnderstander{
		llm:    llm,
		logger: logger.Get(),
	}
}

const understandSystemPrompt = `You are an information extraction system for a personal wellness journal.
Given a user's message, extract durable facts about the user's life: people, emotions, activities, places, and interests, plus the relationships between them.

Respond with ONLY valid JSON (no markdown, no explanation):
{
  "entities": [
    {"type": "person|emotion|activity|place|interest", "name": "canonical short name", "span": "text it came from", "confidence": 0.0-1.0}
  ],
  "relations": [
    {"source": "entity name", "target": "entity name", "type": "experienced|causes|triggers|helps|relates_to|involves|enjoys|avoids|located_at|knows", "confidence": 0.0-1.0}
  ]
}

Guidelines:
- Extract only durable facts, not transient chatter ("I'm tired right now" is not an interest)
- Use short singular names ("Sarah", "yoga", "anxious"), not full sentences
- Source and target of a relation must match an extracted entity name exactly
- Return {"entities": [], "relations": []} when nothing durable is present`

// Understand calls the model and parses its answer into validated candidates
func (u *LLMUnderstander) Understand(ctx context.Context, text string, contextWindow []string) (*Understanding, error) {
	userMsg := text
	if len(contextWindow) > 0 {
		userMsg = fmt.Sprintf("Recent conversation:\n%s\n\nLatest message:\n%s",
			strings.Join(contextWindow, "\n"), text)
	}

	response, err := u.llm.Generate(ctx, understandSystemPrompt, userMsg, nil)
	if err != nil {
		return nil, apperrors.NewExtractionUnavailable(1, err)
	}

	understanding, err := ParseUnderstanding(response.Content)
	if err != nil {
		u.logger.Warn("Discarding malformed understanding output",
			zap.Error(err),
		)
		return nil, err
	}
	return understanding, nil
}

// ParseUnderstanding parses raw model output into an Understanding, stripping
// markdown fences and anything outside the outer JSON object, then validating
// every candidate. Malformed output fails closed rather than feeding garbage
// into the graph.
func ParseUnderstanding(raw string) (*Understanding, error) {
	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return nil, apperrors.NewExtractionMalformed(raw, fmt.Errorf("no JSON object in output"))
	}

	var parsed Understanding
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, apperrors.NewExtractionMalformed(raw, err)
	}
	parsed.Raw = jsonStr
	parsed.normalize()
	return &parsed, nil
}

// normalize drops candidates that cannot enter the graph: blank names,
// unknown entity types, and relations referencing no extracted entity.
// Confidence values are clamped to [0,1]; a missing confidence defaults
// to 0.5.
func (u *Understanding) normalize() {
	names := make(map[string]bool)

	entities := u.Entities[:0]
	for _, e := range u.Entities {
		e.Name = strings.TrimSpace(e.Name)
		e.Type = EntityType(strings.ToLower(string(e.Type)))
		if e.Name == "" || !ValidEntityType(e.Type) {
			continue
		}
		if e.Confidence == 0 {
			e.Confidence = 0.5
		}
		e.Confidence = Clamp01(e.Confidence)
		entities = append(entities, e)
		names[Canonicalize(e.Name)] = true
	}
	u.Entities = entities

	relations := u.Relations[:0]
	for _, r := range u.Relations {
		r.Source = strings.TrimSpace(r.Source)
		r.Target = strings.TrimSpace(r.Target)
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if r.Source == "" || r.Target == "" || r.Type == "" {
			continue
		}
		if !names[Canonicalize(r.Source)] || !names[Canonicalize(r.Target)] {
			continue
		}
		if r.Confidence == 0 {
			r.Confidence = 0.5
		}
		r.Confidence = Clamp01(r.Confidence)
		relations = append(relations, r)
	}
	u.Relations = relations
}

// extractJSONObject pulls the outer JSON object out of model output that may
// be wrapped in markdown fences or prose
func extractJSONObject(raw string) string {
	jsonStr := strings.TrimSpace(raw)

	if strings.HasPrefix(jsonStr, "```") {
		lines := strings.Split(jsonStr, "\n")
		var jsonLines []string
		inCodeBlock := false
		for _, line := range lines {
			if strings.HasPrefix(line, "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		jsonStr = strings.Join(jsonLines, "\n")
	}

	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return jsonStr[start : end+1]
}
