package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	apperrors "mindfulme/backend/pkg/errors"
)

// ============================================================================
// Journal Operations
// ============================================================================

const journalReturn = `
	j.id as id, j.profile_id as profile_id, j.date as date,
	j.conversation_id as conversation_id, j.mood as mood,
	j.emotion as emotion, j.key_topics as key_topics,
	j.summary as summary, j.created_at as created_at`

// CreateJournal records a journal entry for the given date. At most one entry
// exists per profile per date; a second call for the same date updates the
// existing entry instead of creating a duplicate. New dates advance the
// journaling streak.
func (r *Repository) CreateJournal(ctx context.Context, entry *JournalEntry) (*JournalEntry, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC()
	keyTopics := entry.KeyTopics
	if keyTopics == nil {
		keyTopics = []string{}
	}

	query := `
		MERGE (p:Profile {id: $profileID})
		MERGE (j:Journal {profile_id: $profileID, date: $date})
		ON CREATE SET
			j.id = $id,
			j.conversation_id = $conversationID,
			j.mood = $mood,
			j.emotion = $emotion,
			j.key_topics = $keyTopics,
			j.summary = $summary,
			j.created_at = datetime($now)
		ON MATCH SET
			j.conversation_id = $conversationID,
			j.mood = $mood,
			j.emotion = $emotion,
			j.key_topics = $keyTopics,
			j.summary = $summary
		MERGE (p)-[:WROTE]->(j)
		RETURN ` + journalReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID":      entry.ProfileID,
		"date":           entry.Date,
		"id":             uuid.New().String(),
		"conversationID": entry.ConversationID,
		"mood":           entry.Mood,
		"emotion":        entry.Emotion,
		"keyTopics":      keyTopics,
		"summary":        entry.Summary,
		"now":            now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read created journal: %w", err)
	}
	saved := journalFromRecord(record)

	if _, err := r.RecordJournalDay(ctx, entry.ProfileID, entry.Date); err != nil {
		r.logger.Warn("Failed to update journal streak",
			zap.String("profile_id", entry.ProfileID),
			zap.Error(err))
	}
	return saved, nil
}

// ListJournals returns the profile's journal entries, most recent date first
func (r *Repository) ListJournals(ctx context.Context, profileID string, limit int) ([]JournalEntry, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 100
	}

	query := `
		MATCH (j:Journal {profile_id: $profileID})
		RETURN ` + journalReturn + `
		ORDER BY j.date DESC
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}

	var entries []JournalEntry
	for result.Next(ctx) {
		entries = append(entries, *journalFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journals: %w", err)
	}
	return entries, nil
}

// GetJournalByDate returns the journal entry for a date, or NotFound
func (r *Repository) GetJournalByDate(ctx context.Context, profileID, date string) (*JournalEntry, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (j:Journal {profile_id: $profileID, date: $date})
		RETURN ` + journalReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"date":      date,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		return nil, apperrors.NewNotFound("journal", date)
	}
	return journalFromRecord(result.Record()), nil
}

func journalFromRecord(record *neo4j.Record) *JournalEntry {
	return &JournalEntry{
		ID:             getStringFromRecord(record, "id"),
		ProfileID:      getStringFromRecord(record, "profile_id"),
		Date:           getStringFromRecord(record, "date"),
		ConversationID: getStringFromRecord(record, "conversation_id"),
		Mood:           getStringFromRecord(record, "mood"),
		Emotion:        getStringFromRecord(record, "emotion"),
		KeyTopics:      getStringSliceFromRecord(record, "key_topics"),
		Summary:        getStringFromRecord(record, "summary"),
		CreatedAt:      getTimeFromRecord(record, "created_at"),
	}
}

// ============================================================================
// Mood Operations
// ============================================================================

// CreateMood logs a mood check-in
func (r *Repository) CreateMood(ctx context.Context, log *MoodLog) (*MoodLog, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	id := uuid.New().String()
	ts := log.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	query := `
		MERGE (p:Profile {id: $profileID})
		CREATE (m:Mood {
			id: $id,
			profile_id: $profileID,
			mood: $mood,
			intensity: $intensity,
			note: $note,
			timestamp: datetime($timestamp)
		})
		CREATE (p)-[:LOGGED]->(m)
		RETURN m.id as id
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": log.ProfileID,
		"id":        id,
		"mood":      log.Mood,
		"intensity": log.Intensity,
		"note":      log.Note,
		"timestamp": ts.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mood log: %w", err)
	}

	saved := *log
	saved.ID = id
	saved.Timestamp = ts
	return &saved, nil
}

// ListMoods returns mood logs from the last days, newest first
func (r *Repository) ListMoods(ctx context.Context, profileID string, days int) ([]MoodLog, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if days < 1 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		MATCH (m:Mood {profile_id: $profileID})
		WHERE m.timestamp >= datetime($since)
		RETURN m.id as id, m.profile_id as profile_id, m.mood as mood,
		       m.intensity as intensity, m.note as note,
		       m.timestamp as timestamp
		ORDER BY m.timestamp DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"since":     since.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}

	var logs []MoodLog
	for result.Next(ctx) {
		record := result.Record()
		logs = append(logs, MoodLog{
			ID:        getStringFromRecord(record, "id"),
			ProfileID: getStringFromRecord(record, "profile_id"),
			Mood:      getStringFromRecord(record, "mood"),
			Intensity: getIntFromRecord(record, "intensity"),
			Note:      getStringFromRecord(record, "note"),
			Timestamp: getTimeFromRecord(record, "timestamp"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read moods: %w", err)
	}
	return logs, nil
}

// GetMoodStats aggregates mood logs over the last days
func (r *Repository) GetMoodStats(ctx context.Context, profileID string, days int) (*MoodStats, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if days < 1 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		MATCH (m:Mood {profile_id: $profileID})
		WHERE m.timestamp >= datetime($since)
		RETURN m.mood as mood, count(m) as count, sum(m.intensity) as total_intensity
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"since":     since.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get mood stats: %w", err)
	}

	stats := &MoodStats{MoodDistribution: make(map[string]int64)}
	var totalIntensity int64
	for result.Next(ctx) {
		record := result.Record()
		mood := getStringFromRecord(record, "mood")
		count := getInt64FromRecord(record, "count")
		stats.MoodDistribution[mood] = count
		stats.TotalLogs += count
		totalIntensity += getInt64FromRecord(record, "total_intensity")
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mood stats: %w", err)
	}

	if stats.TotalLogs > 0 {
		avg := float64(totalIntensity) / float64(stats.TotalLogs)
		stats.AverageIntensity = math.Round(avg*10) / 10
	}
	return stats, nil
}
