package models

// UserSettings holds the per-user analysis configuration. Topics and Tone
// only shape the prompt sent to the analysis provider; they never affect
// pipeline control flow.
type UserSettings struct {
	UserID string
	Topics []string
	Tone   string
}

// DefaultTopics is used when a user has no stored settings.
var DefaultTopics = []string{"sleep", "mood", "energy", "stress", "exercise", "diet", "social"}

// DefaultTone is the analysis tone applied when none is configured.
const DefaultTone = "neutral"

// DefaultUserSettings returns the settings applied to users without a row.
func DefaultUserSettings(userID string) *UserSettings {
	topics := make([]string, len(DefaultTopics))
	copy(topics, DefaultTopics)
	return &UserSettings{UserID: userID, Topics: topics, Tone: DefaultTone}
}
