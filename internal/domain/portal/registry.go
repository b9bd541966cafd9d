package portal

import (
	"sync"

	"github.com/healthguard/portal/internal/domain/access"
	"github.com/healthguard/portal/internal/domain/consent"
)

// Registry maps patient ids to their sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s, replacing any session for the same patient.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.PatientID()
	if _, exists := r.sessions[id]; !exists {
		r.order = append(r.order, id)
	}
	r.sessions[id] = s
}

// Session returns the session of patientID.
func (r *Registry) Session(patientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[patientID]
	return s, ok
}

// Sessions returns every session in registration order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// SharedPatient is a doctor-side list entry. Name is anonymized under
// Incognito grants.
type SharedPatient struct {
	PatientID  string             `json:"patient_id"`
	Name       string             `json:"name"`
	GrantID    string             `json:"grant_id"`
	Mode       consent.AccessMode `json:"mode"`
	ExpiryDate string             `json:"expiry_date,omitempty"`
}

// SharedWith lists the patients that currently grant doctorName access.
func (r *Registry) SharedWith(doctorName string) []SharedPatient {
	out := []SharedPatient{}
	for _, s := range r.Sessions() {
		g, ok := s.grantFor(doctorName)
		if !ok {
			continue
		}
		sp := SharedPatient{
			PatientID: s.PatientID(),
			Name:      s.profile.Name,
			GrantID:   g.ID,
			Mode:      g.Mode,
		}
		if g.Mode == consent.ModeIncognito {
			sp.Name = access.AnonymizedName
		}
		if !g.ExpiryDate.IsZero() {
			sp.ExpiryDate = g.ExpiryDate.Format(consent.DateLayout)
		}
		out = append(out, sp)
	}
	return out
}
