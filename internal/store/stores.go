package store

// Stores is the top-level container for all single-process storage
// backings the gateway needs (spec §4.1's state-root subdirectories).
type Stores struct {
	Sessions SessionStore
	Memory   MemoryStore
	Cron     CronStore
	Pairing  PairingStore
}

// MemoryEntry is a key/value record retrieved by key or TF-IDF search
// (spec §3).
type MemoryEntry struct {
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
	AccessCount int      `json:"access_count"`
}

// MemoryStore persists the agent's durable key/value memory (spec §4.6
// memory tool, §3 memory entry, §8 invariant 6 TF-IDF ranking).
type MemoryStore interface {
	Get(key string) (MemoryEntry, bool, error)
	Set(key, value string, tags []string, source string) error
	Delete(key string) error
	List() ([]MemoryEntry, error)
	// Search returns entries ranked by TF-IDF score across keys (2x weight),
	// tags (1.5x weight), and value text, descending. Entries with zero
	// score are excluded.
	Search(query string) ([]MemoryEntry, error)
}

// CronJob is one scheduled job (spec §3).
type CronJob struct {
	ID            string `json:"id"`
	Schedule      string `json:"schedule"`      // "at:<ISO>", "every:<ms>", or a 5-field cron expression
	Prompt        string `json:"prompt"`
	SessionTarget string `json:"sessionTarget"` // "main" or "isolated"
	Enabled       bool   `json:"enabled"`
	FailureCount  int    `json:"failureCount"`
	LastRunAt     int64  `json:"lastRunAt,omitempty"`
	LastResult    string `json:"lastResult,omitempty"`
	BackoffUntil  int64  `json:"backoffUntil,omitempty"`
}

// CronStore persists the consolidated cron job store (spec §6
// cron/jobs.json).
type CronStore interface {
	Get(id string) (CronJob, bool, error)
	Upsert(job CronJob) error
	Delete(id string) error
	List() ([]CronJob, error)
}

// PairingStore tracks DM pairing-code verification state (spec §6
// pairing/<safekey>.json).
type PairingStore interface {
	IsVerified(safeKey string) (bool, error)
	MarkVerified(safeKey string) error
	SetCode(safeKey, code string) error
	CheckCode(safeKey, code string) (bool, error)
}
