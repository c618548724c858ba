// Package pending buffers task edits until they are committed in batch or discarded.
package pending

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
)

const maxPercentage = 100

var (
	// errors
	errEmptyTaskID = errors.New("task id is required")
	errNoFields    = errors.New("at least one field must be set")
	errPercentage  = errors.New("completion percentage must be between 0 and " + strconv.Itoa(maxPercentage))
)

// Fields is the partial set of mutable task attributes. Nil means "not edited".
type Fields struct {
	CompletionPercentage *int  `json:"completion_percentage,omitempty"`
	Completed            *bool `json:"completed,omitempty"`
}

func (f Fields) IsEmpty() bool {
	return f.CompletionPercentage == nil && f.Completed == nil
}

// merge returns f overridden by the fields set in other.
func (f Fields) merge(other Fields) Fields {
	out := f.clone()
	if other.CompletionPercentage != nil {
		pct := *other.CompletionPercentage
		out.CompletionPercentage = &pct
	}
	if other.Completed != nil {
		done := *other.Completed
		out.Completed = &done
	}
	return out
}

func (f Fields) clone() Fields {
	var out Fields
	if f.CompletionPercentage != nil {
		pct := *f.CompletionPercentage
		out.CompletionPercentage = &pct
	}
	if f.Completed != nil {
		done := *f.Completed
		out.Completed = &done
	}
	return out
}

// Validate reports every invalid field of a change to taskID as a core.ValidationError.
func (f Fields) Validate(taskID string) error {
	var fields []core.FieldError
	if taskID == "" {
		fields = append(fields, core.FieldError{Field: "task_id", Error: errEmptyTaskID.Error()})
	}
	if f.IsEmpty() {
		fields = append(fields, core.FieldError{Field: "fields", Error: errNoFields.Error()})
	}
	if pct := f.CompletionPercentage; pct != nil && (*pct < 0 || *pct > maxPercentage) {
		fields = append(fields, core.FieldError{Field: "completion_percentage", Error: errPercentage.Error()})
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New("invalid change"), fields...)
	}
	return nil
}

// Change is a pending edit of one task.
type Change struct {
	TaskID string `json:"task_id"`
	Fields Fields `json:"fields"`
}

type entry struct {
	fields Fields
	rev    uint64 // bumped on every merge
}

// Store holds at most one pending Change per task, in insertion order.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	rev     uint64

	commitMu sync.Mutex // serializes batch commits
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Add validates fields then merges them into the pending change of taskID, creating it if absent.
// Setting the completion percentage also sets completed (true iff 100).
// On error the store is left unchanged.
func (s *Store) Add(taskID string, fields Fields) error {
	taskID = strings.TrimSpace(taskID)
	if err := fields.Validate(taskID); err != nil {
		return err
	}

	fields = fields.clone()
	if pct := fields.CompletionPercentage; pct != nil {
		done := *pct == maxPercentage
		fields.Completed = &done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rev++
	if e, ok := s.entries[taskID]; ok {
		e.fields = e.fields.merge(fields)
		e.rev = s.rev
		return nil
	}
	s.entries[taskID] = &entry{fields: fields, rev: s.rev}
	s.order = append(s.order, taskID)
	return nil
}

func (s *Store) HasPending() bool {
	return s.Len() > 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List returns a snapshot of all pending changes in insertion order.
func (s *Store) List() []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := make([]Change, 0, len(s.order))
	for _, taskID := range s.order {
		changes = append(changes, Change{TaskID: taskID, Fields: s.entries[taskID].fields.clone()})
	}
	return changes
}

// Get returns the pending fields of taskID, if any.
func (s *Store) Get(taskID string) (Fields, bool) {
	taskID = strings.TrimSpace(taskID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[taskID]; ok {
		return e.fields.clone(), true
	}
	return Fields{}, false
}

// Clear drops every pending change.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.order = nil
}

type revision struct {
	Change
	rev uint64
}

func (s *Store) snapshot() []revision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make([]revision, 0, len(s.order))
	for _, taskID := range s.order {
		e := s.entries[taskID]
		snap = append(snap, revision{Change: Change{TaskID: taskID, Fields: e.fields.clone()}, rev: e.rev})
	}
	return snap
}

// removeIfUnchanged removes taskID unless it was edited after rev was taken.
// It reports whether taskID is no longer pending.
func (s *Store) removeIfUnchanged(taskID string, rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[taskID]
	if !ok {
		return true
	}
	if e.rev != rev {
		return false
	}
	delete(s.entries, taskID)
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
