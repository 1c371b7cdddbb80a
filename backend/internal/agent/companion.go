package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"mindfulme/backend/internal/adapter"
	"mindfulme/backend/internal/graph"
	"mindfulme/backend/internal/knowledge"
	"mindfulme/backend/pkg/logger"
)

// Companion runs one conversational turn: it loads history and graph context,
// generates the wellness companion's reply, persists both messages, and hands
// the user's turn to the background extraction pipeline.
type Companion struct {
	repo          *graph.Repository
	llm           *adapter.LLMAdapter
	retriever     *knowledge.Retriever
	pipeline      *knowledge.Pipeline
	historyWindow int
	maxNodes      int
	logger        *zap.Logger
}

// CompanionOptions tunes context sizes for a turn
type CompanionOptions struct {
	HistoryWindow int
	MaxGraphNodes int
}

// NewCompanion creates the conversational companion
func NewCompanion(repo *graph.Repository, llm *adapter.LLMAdapter, retriever *knowledge.Retriever, pipeline *knowledge.Pipeline, opts CompanionOptions) *Companion {
	if opts.HistoryWindow < 1 {
		opts.HistoryWindow = 10
	}
	if opts.MaxGraphNodes < 1 {
		opts.MaxGraphNodes = knowledge.DefaultMaxNodes
	}
	return &Companion{
		repo:          repo,
		llm:           llm,
		retriever:     retriever,
		pipeline:      pipeline,
		historyWindow: opts.HistoryWindow,
		maxNodes:      opts.MaxGraphNodes,
		logger:        logger.Get(),
	}
}

// TurnResult is the outcome of one companion turn
type TurnResult struct {
	Conversation *graph.Conversation
	UserMessage  graph.Message
	Reply        graph.Message
}

// RunTurn handles one user message in a conversation. The reply never waits
// on knowledge extraction; the extraction job is enqueued after the reply is
// persisted, and a dropped job is logged, not surfaced.
func (c *Companion) RunTurn(ctx context.Context, profileID, conversationID, message string) (*TurnResult, error) {
	conv, err := c.repo.GetConversation(ctx, profileID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	history, err := c.repo.GetRecentTurns(ctx, profileID, conversationID, c.historyWindow)
	if err != nil {
		c.logger.Warn("Failed to fetch conversation history",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		history = nil
	}

	// Graph context is best-effort: an empty graph or a store error both
	// degrade to a context-free prompt.
	graphCtx := c.retriever.RetrieveContext(ctx, profileID, message, c.maxNodes)

	systemPrompt := buildSystemPrompt(conv.Type, graphCtx)

	llmHistory := make([]adapter.HistoryMessage, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role == "agent" {
			role = "assistant"
		}
		llmHistory = append(llmHistory, adapter.HistoryMessage{Role: role, Content: m.Content})
	}

	response, err := c.llm.Generate(ctx, systemPrompt, message, llmHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to generate companion reply: %w", err)
	}

	userMsg := graph.Message{Role: "user", Content: message}
	reply := graph.Message{Role: "assistant", Content: response.Content}
	if err := c.repo.AppendMessages(ctx, profileID, conversationID, []graph.Message{userMsg, reply}); err != nil {
		return nil, fmt.Errorf("failed to persist turn: %w", err)
	}

	c.enqueueExtraction(profileID, conversationID, message, history)

	return &TurnResult{
		Conversation: conv,
		UserMessage:  userMsg,
		Reply:        reply,
	}, nil
}

func (c *Companion) enqueueExtraction(profileID, conversationID, message string, history []graph.Message) {
	if c.pipeline == nil {
		return
	}

	window := make([]string, 0, len(history))
	for _, m := range history {
		window = append(window, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	accepted := c.pipeline.Enqueue(knowledge.ExtractionJob{
		ProfileID:      profileID,
		ConversationID: conversationID,
		TurnText:       message,
		ContextWindow:  window,
	})
	if !accepted {
		c.logger.Warn("Extraction queue full, dropping turn",
			zap.String("conversation_id", conversationID))
	}
}
