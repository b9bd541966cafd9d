package consent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidGrant is returned when a grant request violates a constraint.
var ErrInvalidGrant = errors.New("invalid grant")

// Store holds the active consent grants of a single patient, newest first.
type Store struct {
	mu     sync.RWMutex
	grants []Grant
	newID  func() string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{newID: func() string { return uuid.NewString() }}
}

// Seed prepends existing grants, keeping their ids. Intended for demo data.
func (s *Store) Seed(grants ...Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(grants) - 1; i >= 0; i-- {
		g := grants[i]
		g.Status = StatusActive
		s.grants = append([]Grant{g}, s.grants...)
	}
}

// Validate checks a request without touching the store.
func Validate(req GrantRequest) error {
	if strings.TrimSpace(req.DoctorName) == "" {
		return fmt.Errorf("%w: doctor_name is required", ErrInvalidGrant)
	}
	if req.Mode == "" {
		return fmt.Errorf("%w: mode is required", ErrInvalidGrant)
	}
	if !req.Mode.Known() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidGrant, req.Mode)
	}
	return nil
}

// Issue validates req, assigns a fresh id and prepends the new active grant.
func (s *Store) Issue(req GrantRequest) (Grant, error) {
	if err := Validate(req); err != nil {
		return Grant{}, err
	}
	g := Grant{
		ID:             s.newID(),
		DoctorName:     strings.TrimSpace(req.DoctorName),
		Specialization: req.Specialization,
		Facility:       req.Facility,
		ExpiryDate:     req.ExpiryDate,
		Mode:           req.Mode,
		Status:         StatusActive,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append([]Grant{g}, s.grants...)
	return g, nil
}

// Revoke removes the grant with the given id. The returned grant carries the
// Revoked status; ok is false when no such grant exists.
func (s *Store) Revoke(id string) (Grant, bool) {
	g, _, ok := s.revoke(id)
	return g, ok
}

// RevokeAt behaves like Revoke and also reports the grant's former index so a
// caller can Restore it.
func (s *Store) RevokeAt(id string) (Grant, int, bool) {
	return s.revoke(id)
}

func (s *Store) revoke(id string) (Grant, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.grants {
		if g.ID == id {
			s.grants = append(s.grants[:i:i], s.grants[i+1:]...)
			g.Status = StatusRevoked
			return g, i, true
		}
	}
	return Grant{}, -1, false
}

// Restore puts a revoked grant back at index at, re-activating it. Used to
// undo a revocation that could not be committed.
func (s *Store) Restore(g Grant, at int) {
	g.Status = StatusActive
	s.mu.Lock()
	defer s.mu.Unlock()
	if at < 0 || at > len(s.grants) {
		at = len(s.grants)
	}
	s.grants = append(s.grants[:at:at], append([]Grant{g}, s.grants[at:]...)...)
}

// Remove drops a freshly issued grant without a status change. Used to undo
// an issuance that could not be committed.
func (s *Store) Remove(id string) {
	s.revoke(id)
}

// Get returns the active grant with the given id.
func (s *Store) Get(id string) (Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.ID == id {
			return g, true
		}
	}
	return Grant{}, false
}

// ListActive returns the active grants, newest first.
func (s *Store) ListActive() []Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Grant, len(s.grants))
	copy(out, s.grants)
	return out
}

// Expired returns active grants whose expiry date lies before asOf. Grants
// without an expiry date never expire.
func (s *Store) Expired(asOf time.Time) []Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, g := range s.grants {
		if !g.ExpiryDate.IsZero() && endOfDay(g.ExpiryDate).Before(asOf) {
			out = append(out, g)
		}
	}
	return out
}

// endOfDay treats an expiry date as inclusive of the whole calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(24*time.Hour - time.Nanosecond)
}
