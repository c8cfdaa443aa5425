// Package msgstore accumulates the raw output of a running agent session
// and its normalized form. One store belongs to exactly one spawned
// session; the writer side is the protocol harness and the reader side is
// log normalization and the HTTP API.
package msgstore

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryKind discriminates what a stored entry holds.
type EntryKind string

const (
	// KindRawUpdate is a verbatim protocol notification captured off the
	// wire, stored as JSON.
	KindRawUpdate EntryKind = "raw_update"
	// KindStderr is a line of the agent process's stderr.
	KindStderr EntryKind = "stderr"
)

// NormalizedKind discriminates normalized entry types.
type NormalizedKind string

const (
	NormalizedMessage   NormalizedKind = "message"
	NormalizedReasoning NormalizedKind = "reasoning"
	NormalizedToolCall  NormalizedKind = "tool_call"
	NormalizedPlan      NormalizedKind = "plan"
	NormalizedStderr    NormalizedKind = "stderr"
)

// NormalizedEntry is a backend-agnostic rendering of one log event.
// ToolCallID correlates tool_call entries across status updates; ToolName is
// the tool kind when the backend reports one.
type NormalizedEntry struct {
	Kind       NormalizedKind  `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	Status     string          `json:"status,omitempty"`
	Paths      []string        `json:"paths,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Entry is one captured log event, raw or already normalized.
type Entry struct {
	ID        string          `json:"id"`
	Kind      EntryKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// Store is a thread-safe append-only log for one session. Normalization is
// cursor-based: DrainUnnormalized hands out each raw entry at most once, so
// repeated normalization passes are idempotent.
type Store struct {
	mu         sync.Mutex
	entries    []Entry
	normalized []NormalizedEntry
	cursor     int
}

func New() *Store {
	return &Store{}
}

// PushRawUpdate appends a verbatim protocol notification.
func (s *Store) PushRawUpdate(payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		ID:        uuid.NewString(),
		Kind:      KindRawUpdate,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// PushStderr appends one stderr line.
func (s *Store) PushStderr(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		ID:        uuid.NewString(),
		Kind:      KindStderr,
		Timestamp: time.Now().UTC(),
		Text:      line,
	})
}

// PushNormalized appends entries to the normalized log.
func (s *Store) PushNormalized(entries ...NormalizedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalized = append(s.normalized, entries...)
}

// DrainUnnormalized returns raw entries appended since the previous drain
// and advances the cursor past them.
func (s *Store) DrainUnnormalized() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.entries) {
		return nil
	}
	out := make([]Entry, len(s.entries)-s.cursor)
	copy(out, s.entries[s.cursor:])
	s.cursor = len(s.entries)
	return out
}

// Snapshot returns a copy of all raw entries captured so far.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Normalized returns a copy of the normalized log.
func (s *Store) Normalized() []NormalizedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NormalizedEntry, len(s.normalized))
	copy(out, s.normalized)
	return out
}
