package database

import (
	"time"
)

// Job run statuses as stored in job_runs.status.
const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// SourceSettings is the operator-controlled fetch options blob stored as JSON
// on the source row. All fields are optional; zero values fall back to the
// application defaults.
type SourceSettings struct {
	Disabled       bool   `json:"disabled,omitempty"`
	FetchTimeout   int    `json:"fetch_timeout,omitempty"` // seconds
	UserAgent      string `json:"user_agent,omitempty"`
	ExtractContent bool   `json:"extract_content,omitempty"`
}

type Source struct {
	ID            string
	URL           string
	Title         string
	Settings      SourceSettings
	LastFetchedAt *time.Time
	ErrorCount    int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Item struct {
	ID          string
	SourceID    string
	GUID        string
	Link        string
	Title       string
	Body        string
	Author      string
	ImageURL    string
	Fingerprint string
	EmbeddingID *string
	PublishedAt time.Time
	ExtractedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Subscription struct {
	ID                     string
	UserID                 string
	SourceID               string
	CategoryID             *string
	DisplayName            string
	RefreshIntervalMinutes *int
	MaxItems               *int
	MaxItemAgeDays         *int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Category struct {
	ID                     string
	UserID                 string
	Name                   string
	RefreshIntervalMinutes *int
	MaxItems               *int
	MaxItemAgeDays         *int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// LogEntry is a single captured log line of a job run, persisted as part of
// the job_runs.logs JSON array.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type JobRun struct {
	ID           string
	JobName      string
	Status       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationMs   int64
	Logs         []LogEntry
	ErrorMessage string
}
