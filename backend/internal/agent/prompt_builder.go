package agent

import (
	"fmt"
	"strings"
	"time"

	"mindfulme/backend/internal/graph"
	"mindfulme/backend/internal/knowledge"
)

const journalSystemPrompt = `You are MindfulMe, a warm and compassionate journaling companion.
Your role is to help users reflect on their day through natural conversation.

Guidelines:
- Be empathetic, warm, and non-judgmental
- Ask thoughtful follow-up questions to help users explore their thoughts
- Don't just say "that's good" - dig deeper with curiosity
- Keep responses concise (2-3 sentences) to maintain conversational flow
- Validate emotions and experiences
- Help users process their day, not solve their problems
- Use conversational language, like a caring friend

Example responses:
- "That sounds like it was challenging. What made it particularly difficult for you?"
- "I hear excitement in what you're sharing! What part of that experience felt most meaningful?"
- "It seems like that really affected you. How are you feeling about it now?"`

const chatSystemPrompt = `You are MindfulMe, a supportive mental wellness companion and friend.
Your role is to provide a safe, non-judgmental space for users to talk about their thoughts and feelings.

Guidelines:
- Be empathetic, warm, and genuinely caring
- Listen actively and ask thoughtful follow-up questions
- Help users explore their emotions without being clinical or therapeutic
- Validate their experiences and feelings
- You're a friend, not a therapist - be conversational and human
- Keep responses concise but meaningful (3-4 sentences)
- Show genuine interest in understanding their perspective
- Recognize when to offer comfort vs. when to ask deeper questions

Remember: You're here to listen, understand, and support - not to fix or diagnose.`

// buildSystemPrompt assembles the companion prompt for a turn: the persona
// for the conversation type, the current date, and what the knowledge graph
// remembers about the user's life
func buildSystemPrompt(convType graph.ConversationType, graphCtx *knowledge.GraphContext) string {
	var b strings.Builder

	if convType == graph.ConversationJournal {
		b.WriteString(journalSystemPrompt)
	} else {
		b.WriteString(chatSystemPrompt)
	}

	b.WriteString("\n\nToday is ")
	b.WriteString(time.Now().Format("Monday, January 2, 2006"))
	b.WriteString(".")

	if section := formatGraphContext(graphCtx); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}

	return b.String()
}

// formatGraphContext renders the retrieved subgraph as a compact plain-text
// memory section. An empty context yields no section at all, so a new user
// gets the plain persona prompt.
func formatGraphContext(graphCtx *knowledge.GraphContext) string {
	if graphCtx == nil || graphCtx.Empty() {
		return ""
	}

	nodesByID := make(map[string]knowledge.KnowledgeNode, len(graphCtx.Nodes))
	for _, n := range graphCtx.Nodes {
		nodesByID[n.ID] = n
	}

	var b strings.Builder
	b.WriteString("## What you remember about this person\n")
	b.WriteString("Use these naturally in conversation; never recite them as a list or mention that you keep records.\n")

	for _, n := range graphCtx.Nodes {
		fmt.Fprintf(&b, "- %s (%s", n.EntityName, n.EntityType)
		if n.MentionCount > 1 {
			fmt.Fprintf(&b, ", mentioned %d times", n.MentionCount)
		}
		b.WriteString(")\n")
	}

	wroteHeader := false
	for _, e := range graphCtx.Edges {
		source, okS := nodesByID[e.SourceNodeID]
		target, okT := nodesByID[e.TargetNodeID]
		if !okS || !okT {
			continue
		}
		if !wroteHeader {
			b.WriteString("\nConnections you have noticed:\n")
			wroteHeader = true
		}
		fmt.Fprintf(&b, "- %s %s %s\n", source.EntityName, strings.ReplaceAll(e.RelationshipType, "_", " "), target.EntityName)
	}

	return strings.TrimRight(b.String(), "\n")
}
