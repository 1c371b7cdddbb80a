package graph

import "time"

// ============================================================================
// Wellness App Types
// ============================================================================

// Profile scopes all graph and journal data to one user install
type Profile struct {
	ID               string          `json:"id"`
	CurrentStreak    int             `json:"current_streak"`
	LongestStreak    int             `json:"longest_streak"`
	TotalJournalDays int             `json:"total_journal_days"`
	LastJournalDate  string          `json:"last_journal_date,omitempty"` // YYYY-MM-DD
	Preferences      map[string]bool `json:"preferences"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ConversationType distinguishes free chat from guided journaling
type ConversationType string

const (
	ConversationChat    ConversationType = "chat"
	ConversationJournal ConversationType = "journal"
)

// Conversation is one chat or journal thread
type Conversation struct {
	ID        string           `json:"id"`
	ProfileID string           `json:"profile_id"`
	Type      ConversationType `json:"type"`
	Messages  []Message        `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Message is a single turn in a conversation
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	HasVoice  bool      `json:"has_voice"`
	Timestamp time.Time `json:"timestamp"`
}

// JournalEntry is one day's journal record, at most one per date
type JournalEntry struct {
	ID             string    `json:"id"`
	ProfileID      string    `json:"profile_id"`
	Date           string    `json:"date"` // YYYY-MM-DD
	ConversationID string    `json:"conversation_id"`
	Mood           string    `json:"mood,omitempty"`
	Emotion        string    `json:"emotion,omitempty"`
	KeyTopics      []string  `json:"key_topics,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MoodLog is one logged mood check-in
type MoodLog struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Mood      string    `json:"mood"` // great, good, okay, bad, terrible
	Intensity int       `json:"intensity"` // 1-10
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MoodStats aggregates mood logs over a window
type MoodStats struct {
	TotalLogs        int64            `json:"total_logs"`
	AverageIntensity float64          `json:"average_intensity"`
	MoodDistribution map[string]int64 `json:"mood_distribution"`
}
