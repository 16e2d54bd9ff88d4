package domain

import "time"

// Languages supported for the interface and for generated text.
var Languages = []string{"ru", "en", "de", "fr", "es"}

// DefaultGenLanguage is used for generated names and descriptions until the user picks one.
const DefaultGenLanguage = "ru"

// SupportedLanguage reports whether lang is one of Languages.
func SupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// UserSettings is the durable per-user configuration.
type UserSettings struct {
	UserID      int64      `db:"user_id"`
	Language    string     `db:"language"`
	GenLanguage string     `db:"gen_language"`
	Model       string     `db:"model"`
	FilterMode  FilterMode `db:"filter_mode"`
}

// UserActivity is a buffered "user was seen" record.
type UserActivity struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	SeenAt    time.Time
}

// Stats is a snapshot of the usage statistics.
type Stats struct {
	StartedAt       time.Time
	ItemsCreated    int64
	Errors          int64
	Requests        int64
	UsersRegistered int64
	Active24h       int64
	Active7d        int64
	Languages       map[string]int64
	Models          map[string]int64
}

// Uptime is the time since the statistics origin.
func (s Stats) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
