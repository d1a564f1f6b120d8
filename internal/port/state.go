package port

import "time"

// LastUsed remembers the sources of the previous run.
type LastUsed struct {
	Reference string    `toml:"reference"`
	Candidate string    `toml:"candidate"`
	Sheet     string    `toml:"sheet,omitempty"`
	UpdatedAt time.Time `toml:"updated_at"`
}

// StateStore persists LastUsed between runs.
type StateStore interface {
	Load() (*LastUsed, error)
	Save(state *LastUsed) error
}
