package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Profile Operations
// ============================================================================

const profileReturn = `
	RETURN p.id as id, p.current_streak as current_streak,
	       p.longest_streak as longest_streak,
	       p.total_journal_days as total_journal_days,
	       p.last_journal_date as last_journal_date,
	       p.preferences as preferences, p.created_at as created_at
`

var defaultPreferences = map[string]bool{
	"voiceEnabled":         true,
	"notificationsEnabled": true,
}

// GetOrCreateProfile returns the profile, creating it on first use. The
// current streak is recomputed on read: more than one day without a journal
// entry zeroes it.
func (r *Repository) GetOrCreateProfile(ctx context.Context, profileID string) (*Profile, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	prefsJSON, _ := json.Marshal(defaultPreferences)

	query := `
		MERGE (p:Profile {id: $profileID})
		ON CREATE SET
			p.current_streak = 0,
			p.longest_streak = 0,
			p.total_journal_days = 0,
			p.last_journal_date = '',
			p.preferences = $prefsJSON,
			p.created_at = datetime($now)
	` + profileReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"prefsJSON": string(prefsJSON),
		"now":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create profile: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	profile := profileFromRecord(record)

	// A streak broken by silence is corrected on read, not only on write
	if recomputed := currentStreak(profile, time.Now().UTC()); recomputed != profile.CurrentStreak {
		profile.CurrentStreak = recomputed
		updateQuery := `
			MATCH (p:Profile {id: $profileID})
			SET p.current_streak = $streak
		`
		if _, err := session.Run(ctx, updateQuery, map[string]interface{}{
			"profileID": profileID,
			"streak":    recomputed,
		}); err != nil {
			r.logger.Warn("Failed to persist recomputed streak",
				zap.String("profile_id", profileID),
				zap.Error(err),
			)
		}
	}

	return profile, nil
}

// UpdatePreferences replaces the profile's preference map
func (r *Repository) UpdatePreferences(ctx context.Context, profileID string, preferences map[string]bool) (*Profile, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	prefsJSON, err := json.Marshal(preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		MATCH (p:Profile {id: $profileID})
		SET p.preferences = $prefsJSON
	` + profileReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID": profileID,
		"prefsJSON": string(prefsJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return profileFromRecord(record), nil
}

// RecordJournalDay advances the streak counters for a new journal entry on
// dateStr (YYYY-MM-DD): same day is a no-op, a consecutive day increments,
// and a gap restarts the streak at 1.
func (r *Repository) RecordJournalDay(ctx context.Context, profileID, dateStr string) (*Profile, error) {
	profile, err := r.GetOrCreateProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	entryDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid journal date %q: %w", dateStr, err)
	}

	newStreak := 1
	newTotal := profile.TotalJournalDays + 1
	if profile.LastJournalDate != "" {
		lastDate, err := time.Parse("2006-01-02", profile.LastJournalDate)
		if err == nil {
			daysDiff := int(entryDate.Sub(lastDate).Hours() / 24)
			switch {
			case daysDiff == 0:
				// Same day, nothing to update
				return profile, nil
			case daysDiff == 1:
				newStreak = profile.CurrentStreak + 1
			}
		}
	}

	longest := profile.LongestStreak
	if newStreak > longest {
		longest = newStreak
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (p:Profile {id: $profileID})
		SET p.current_streak = $currentStreak,
		    p.longest_streak = $longestStreak,
		    p.last_journal_date = $lastJournalDate,
		    p.total_journal_days = $totalJournalDays
	` + profileReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"profileID":        profileID,
		"currentStreak":    newStreak,
		"longestStreak":    longest,
		"lastJournalDate":  dateStr,
		"totalJournalDays": newTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	r.logger.Info("Journal streak updated",
		zap.String("profile_id", profileID),
		zap.Int("current_streak", newStreak),
		zap.Int("longest_streak", longest),
	)
	return profileFromRecord(record), nil
}

// currentStreak recomputes the streak as of now, zeroing it when the last
// journal entry is more than a day old
func currentStreak(profile *Profile, now time.Time) int {
	if profile.LastJournalDate == "" {
		return 0
	}
	lastDate, err := time.Parse("2006-01-02", profile.LastJournalDate)
	if err != nil {
		return 0
	}
	today := now.Truncate(24 * time.Hour)
	if int(today.Sub(lastDate).Hours()/24) > 1 {
		return 0
	}
	return profile.CurrentStreak
}

func profileFromRecord(record *neo4j.Record) *Profile {
	profile := &Profile{
		ID:               getStringFromRecord(record, "id"),
		CurrentStreak:    getIntFromRecord(record, "current_streak"),
		LongestStreak:    getIntFromRecord(record, "longest_streak"),
		TotalJournalDays: getIntFromRecord(record, "total_journal_days"),
		LastJournalDate:  getStringFromRecord(record, "last_journal_date"),
		CreatedAt:        getTimeFromRecord(record, "created_at"),
		Preferences:      map[string]bool{},
	}
	if prefsJSON := getStringFromRecord(record, "preferences"); prefsJSON != "" {
		_ = json.Unmarshal([]byte(prefsJSON), &profile.Preferences)
	}
	return profile
}

// NewProfileID mints an identifier for a fresh install
func NewProfileID() string {
	return uuid.New().String()
}
