package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"mindfulme/backend/internal/agent"
	"mindfulme/backend/internal/graph"
	"mindfulme/backend/internal/knowledge"
	apperrors "mindfulme/backend/pkg/errors"
)

// defaultProfileID serves single-user installs that do not send a profile
// header, matching the app's one-profile-per-device model
const defaultProfileID = "default"

type server struct {
	repo      *graph.Repository
	companion *agent.Companion
	logger    *zap.Logger
}

func newServer(repo *graph.Repository, companion *agent.Companion, logger *zap.Logger) *server {
	return &server{
		repo:      repo,
		companion: companion,
		logger:    logger,
	}
}

func (s *server) registerRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.updateProfile)

		api.POST("/conversations", s.createConversation)
		api.GET("/conversations", s.listConversations)
		api.GET("/conversations/:id", s.getConversation)
		api.POST("/conversations/message", s.sendMessage)

		api.POST("/journals", s.createJournal)
		api.GET("/journals", s.listJournals)
		api.GET("/journals/today", s.todayJournal)

		api.POST("/moods", s.createMood)
		api.GET("/moods", s.listMoods)
		api.GET("/moods/stats", s.moodStats)

		api.GET("/knowledge/nodes", s.listKnowledgeNodes)
		api.GET("/knowledge/edges", s.listKnowledgeEdges)
		api.GET("/knowledge/stats", s.knowledgeStats)
		api.GET("/knowledge/export", s.exportKnowledge)
	}
}

func profileID(c *gin.Context) string {
	if id := c.GetHeader("X-Profile-ID"); id != "" {
		return id
	}
	return defaultProfileID
}

// ============================================================================
// Profile
// ============================================================================

func (s *server) getProfile(c *gin.Context) {
	profile, err := s.repo.GetOrCreateProfile(c.Request.Context(), profileID(c))
	if err != nil {
		s.logger.Error("Failed to get profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *server) updateProfile(c *gin.Context) {
	var req struct {
		Preferences map[string]bool `json:"preferences" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := s.repo.UpdatePreferences(c.Request.Context(), profileID(c), req.Preferences)
	if err != nil {
		s.logger.Error("Failed to update preferences", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ============================================================================
// Conversations
// ============================================================================

func (s *server) createConversation(c *gin.Context) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	convType := graph.ConversationType(req.Type)
	if convType != graph.ConversationChat && convType != graph.ConversationJournal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be 'chat' or 'journal'"})
		return
	}

	conv, err := s.repo.CreateConversation(c.Request.Context(), profileID(c), convType)
	if err != nil {
		s.logger.Error("Failed to create conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *server) listConversations(c *gin.Context) {
	convType := graph.ConversationType(c.Query("type"))
	limit := intQuery(c, "limit", 50)

	conversations, err := s.repo.ListConversations(c.Request.Context(), profileID(c), convType, limit)
	if err != nil {
		s.logger.Error("Failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	if conversations == nil {
		conversations = []graph.Conversation{}
	}
	c.JSON(http.StatusOK, conversations)
}

func (s *server) getConversation(c *gin.Context) {
	conv, err := s.repo.GetConversation(c.Request.Context(), profileID(c), c.Param("id"))
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeGraph) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		s.logger.Error("Failed to get conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *server) sendMessage(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		Message        string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.companion.RunTurn(c.Request.Context(), profileID(c), req.ConversationID, req.Message)
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeGraph) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		s.logger.Error("Failed to run companion turn", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": req.ConversationID,
		"user_message":    result.UserMessage,
		"ai_message":      result.Reply,
	})
}

// ============================================================================
// Journals
// ============================================================================

func (s *server) createJournal(c *gin.Context) {
	var req struct {
		Date           string   `json:"date"`
		ConversationID string   `json:"conversation_id"`
		Mood           string   `json:"mood"`
		Emotion        string   `json:"emotion"`
		KeyTopics      []string `json:"key_topics"`
		Summary        string   `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	entry, err := s.repo.CreateJournal(c.Request.Context(), &graph.JournalEntry{
		ProfileID:      profileID(c),
		Date:           date,
		ConversationID: req.ConversationID,
		Mood:           req.Mood,
		Emotion:        req.Emotion,
		KeyTopics:      req.KeyTopics,
		Summary:        req.Summary,
	})
	if err != nil {
		s.logger.Error("Failed to create journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create journal"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *server) listJournals(c *gin.Context) {
	entries, err := s.repo.ListJournals(c.Request.Context(), profileID(c), intQuery(c, "limit", 100))
	if err != nil {
		s.logger.Error("Failed to list journals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list journals"})
		return
	}
	if entries == nil {
		entries = []graph.JournalEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) todayJournal(c *gin.Context) {
	today := time.Now().UTC().Format("2006-01-02")
	entry, err := s.repo.GetJournalByDate(c.Request.Context(), profileID(c), today)
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeGraph) {
			c.JSON(http.StatusOK, gin.H{"exists": false})
			return
		}
		s.logger.Error("Failed to get today's journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": true, "journal": entry})
}

// ============================================================================
// Moods
// ============================================================================

func (s *server) createMood(c *gin.Context) {
	var req struct {
		Mood      string `json:"mood" binding:"required"`
		Intensity int    `json:"intensity" binding:"required"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Intensity < 1 || req.Intensity > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intensity must be between 1 and 10"})
		return
	}

	log, err := s.repo.CreateMood(c.Request.Context(), &graph.MoodLog{
		ProfileID: profileID(c),
		Mood:      req.Mood,
		Intensity: req.Intensity,
		Note:      req.Note,
	})
	if err != nil {
		s.logger.Error("Failed to create mood log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log mood"})
		return
	}
	c.JSON(http.StatusOK, log)
}

func (s *server) listMoods(c *gin.Context) {
	logs, err := s.repo.ListMoods(c.Request.Context(), profileID(c), intQuery(c, "days", 30))
	if err != nil {
		s.logger.Error("Failed to list moods", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list moods"})
		return
	}
	if logs == nil {
		logs = []graph.MoodLog{}
	}
	c.JSON(http.StatusOK, logs)
}

func (s *server) moodStats(c *gin.Context) {
	stats, err := s.repo.GetMoodStats(c.Request.Context(), profileID(c), intQuery(c, "days", 30))
	if err != nil {
		s.logger.Error("Failed to get mood stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get mood stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ============================================================================
// Knowledge graph read surface
// ============================================================================

func (s *server) listKnowledgeNodes(c *gin.Context) {
	filter := knowledge.NodeFilter{Limit: intQuery(c, "limit", 100)}
	if t := c.Query("entity_type"); t != "" {
		entityType := knowledge.EntityType(t)
		if !knowledge.ValidEntityType(entityType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type"})
			return
		}
		filter.EntityTypes = []knowledge.EntityType{entityType}
	}

	nodes, err := s.repo.ListNodes(c.Request.Context(), profileID(c), filter)
	if err != nil {
		s.logger.Error("Failed to list knowledge nodes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list nodes"})
		return
	}
	if nodes == nil {
		nodes = []knowledge.KnowledgeNode{}
	}
	c.JSON(http.StatusOK, nodes)
}

func (s *server) listKnowledgeEdges(c *gin.Context) {
	filter := knowledge.EdgeFilter{Limit: intQuery(c, "limit", 100)}
	if t := c.Query("relationship_type"); t != "" {
		filter.RelationshipTypes = []string{t}
	}

	edges, err := s.repo.ListEdges(c.Request.Context(), profileID(c), filter)
	if err != nil {
		s.logger.Error("Failed to list knowledge edges", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list edges"})
		return
	}
	if edges == nil {
		edges = []knowledge.KnowledgeEdge{}
	}
	c.JSON(http.StatusOK, edges)
}

func (s *server) knowledgeStats(c *gin.Context) {
	stats, err := s.repo.Stats(c.Request.Context(), profileID(c))
	if err != nil {
		s.logger.Error("Failed to get knowledge stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *server) exportKnowledge(c *gin.Context) {
	export, err := s.repo.Export(c.Request.Context(), profileID(c))
	if err != nil {
		s.logger.Error("Failed to export knowledge graph", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export graph"})
		return
	}
	c.JSON(http.StatusOK, export)
}

func intQuery(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return defaultValue
	}
	return v
}
