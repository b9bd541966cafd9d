package records

import (
	"errors"
	"iter"
	"strings"
	"sync"
)

// ErrDuplicateID is returned when a record id is already in the timeline.
var ErrDuplicateID = errors.New("duplicate record id")

// Repository is the patient's ordered record timeline, newest first.
type Repository struct {
	mu      sync.RWMutex
	records []MedicalRecord
}

// NewRepository returns a repository holding seed in the given order.
func NewRepository(seed ...MedicalRecord) *Repository {
	r := &Repository{}
	for _, rec := range seed {
		r.records = append(r.records, rec.Clone())
	}
	return r
}

// Add prepends rec. Record ids are unique within the timeline.
func (r *Repository) Add(rec MedicalRecord) error {
	rec = rec.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ID == rec.ID {
			return ErrDuplicateID
		}
	}
	r.records = append([]MedicalRecord{rec}, r.records...)
	return nil
}

// Remove drops the record with the given id. It only exists to undo an Add
// whose audit entry could not be written.
func (r *Repository) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i:i], r.records[i+1:]...)
			return true
		}
	}
	return false
}

// List returns all records, newest first.
func (r *Repository) List() []MedicalRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MedicalRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Len returns the number of records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Filter lazily yields records whose type label or facility contains query,
// ignoring case. An empty query yields every record. Each iteration works on
// a snapshot taken when it starts.
func (r *Repository) Filter(query string) iter.Seq[MedicalRecord] {
	q := strings.ToLower(query)
	return func(yield func(MedicalRecord) bool) {
		r.mu.RLock()
		snapshot := r.records
		r.mu.RUnlock()

		for _, rec := range snapshot {
			if q != "" &&
				!strings.Contains(strings.ToLower(rec.Type.String()), q) &&
				!strings.Contains(strings.ToLower(rec.Facility), q) {
				continue
			}
			if !yield(rec.Clone()) {
				return
			}
		}
	}
}
