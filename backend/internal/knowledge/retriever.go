package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// ============================================================================
// Context Retriever
// ============================================================================

const (
	// DefaultMaxNodes bounds the context window handed to the agent
	DefaultMaxNodes = 20
	// candidatePoolSize bounds how many recent nodes are scored per call, so
	// retrieval cost never grows with total graph size
	candidatePoolSize = 200

	lexicalWeight    = 10.0
	recencyWeight    = 1.0
	salienceWeight   = 0.5
	confidenceWeight = 0.5
	recencyHalfLife  = 7.0 // days
)

// Retriever selects the bounded, ranked subgraph injected into the agent's
// context before each reply. It sits on the conversational critical path and
// fails open to an empty context.
type Retriever struct {
	store  Store
	logger *zap.Logger
}

// NewRetriever creates a context retriever over the given store
func NewRetriever(store Store) *Retriever {
	return &Retriever{
		store:  store,
		logger: logger.Get(),
	}
}

// RetrieveContext scores the profile's most recent nodes against the current
// message and returns the top maxNodes plus the edges connecting them.
//
// score = 10.0*lexical + 1.0*recency + 0.5*salience + 0.5*confidence, where
// lexical is 1 when the node's name appears in the message and 0 otherwise,
// recency decays exponentially with a seven-day half-life, and salience is
// mention count capped at ten. The lexical weight exceeds the sum of the
// other terms, so a node named in the message always outranks one that is
// not.
func (r *Retriever) RetrieveContext(ctx context.Context, profileID, message string, maxNodes int) *GraphContext {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	nodes, err := r.store.ListNodes(ctx, profileID, NodeFilter{Limit: candidatePoolSize})
	if err != nil {
		// Retrieval failure must never block the reply pipeline
		r.logger.Warn("Context retrieval failed, returning empty context",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		return &GraphContext{}
	}
	if len(nodes) == 0 {
		return &GraphContext{}
	}

	folded := strings.ToLower(message)
	now := time.Now().UTC()

	type scored struct {
		node  KnowledgeNode
		score float64
	}
	ranked := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		ranked = append(ranked, scored{node: node, score: scoreNode(node, folded, now)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}

	selected := make([]KnowledgeNode, 0, len(ranked))
	ids := make([]string, 0, len(ranked))
	for _, s := range ranked {
		selected = append(selected, s.node)
		ids = append(ids, s.node.ID)
	}

	// The induced subgraph: only edges whose endpoints were both selected
	edges, err := r.store.EdgesBetween(ctx, profileID, ids)
	if err != nil {
		r.logger.Warn("Edge retrieval failed, returning nodes only",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		edges = nil
	}

	return &GraphContext{Nodes: selected, Edges: edges}
}

func scoreNode(node KnowledgeNode, foldedMessage string, now time.Time) float64 {
	var lexical float64
	if mentionsName(foldedMessage, node.CanonicalName) || mentionsName(foldedMessage, strings.ToLower(node.EntityName)) {
		lexical = 1
	}

	ageDays := now.Sub(node.LastMentioned).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Exp(-ageDays / recencyHalfLife)

	mentions := node.MentionCount
	if mentions > 10 {
		mentions = 10
	}
	salience := float64(mentions) / 10

	return lexicalWeight*lexical +
		recencyWeight*recency +
		salienceWeight*salience +
		confidenceWeight*node.Confidence
}

// mentionsName reports whether name occurs in the folded message on word
// boundaries, so "art" does not match "start"
func mentionsName(foldedMessage, name string) bool {
	if name == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(foldedMessage[idx:], name)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(name)
		beforeOK := start == 0 || !isWordChar(foldedMessage[start-1])
		afterOK := end == len(foldedMessage) || !isWordChar(foldedMessage[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
