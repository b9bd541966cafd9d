// Package portal ties one patient's stores together into a session. Every
// mutation of the grant store or record repository is committed together
// with exactly one audit entry, or not at all.
package portal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/domain/access"
	"github.com/healthguard/portal/internal/domain/auditlog"
	"github.com/healthguard/portal/internal/domain/consent"
	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
	"github.com/healthguard/portal/internal/platform/assistant"
	"github.com/healthguard/portal/internal/platform/cache"
	"github.com/healthguard/portal/internal/platform/live"
)

// ErrChatNotFound is returned for an unknown chat id.
var ErrChatNotFound = errors.New("chat not found")

// SchedulerActor is the audit actor of automatic grant expiry.
const SchedulerActor = "HealthGuard Scheduler"

const (
	defaultBriefTTL = 10 * time.Minute
	defaultMaxChats = 16
)

// Options configures the optional collaborators of a Session.
type Options struct {
	Assistant *assistant.Guarded
	Briefs    cache.Store
	BriefTTL  time.Duration
	Events    live.Publisher
	Logger    zerolog.Logger

	// MaxChats bounds the open conversations of a session. Opening one more
	// closes the least recently opened.
	MaxChats int
}

// Session is the portal state of a single patient.
type Session struct {
	// mu serializes mutations so each one and its audit entry commit
	// before the next begins.
	mu sync.Mutex

	profile patient.Profile
	grants  *consent.Store
	records *records.Repository
	audit   *auditlog.Log

	ai       *assistant.Guarded
	briefs   cache.Store
	briefTTL time.Duration
	events   live.Publisher
	logger   zerolog.Logger
	now      func() time.Time

	chatMu    sync.Mutex
	chats     map[string]*assistant.Conversation
	chatOrder []string
	maxChats  int
}

// NewSession assembles a session from its stores.
func NewSession(profile patient.Profile, grants *consent.Store, recs *records.Repository, log *auditlog.Log, opts Options) *Session {
	s := &Session{
		profile:  profile.Clone(),
		grants:   grants,
		records:  recs,
		audit:    log,
		ai:       opts.Assistant,
		briefs:   opts.Briefs,
		briefTTL: opts.BriefTTL,
		events:   opts.Events,
		logger:   opts.Logger.With().Str("patient_id", profile.ID).Logger(),
		now:      time.Now,
		chats:    make(map[string]*assistant.Conversation),
		maxChats: opts.MaxChats,
	}
	if s.ai == nil {
		s.ai = assistant.NewGuarded(nil, opts.Logger)
	}
	if s.briefs == nil {
		s.briefs = cache.NewMemory()
	}
	if s.briefTTL <= 0 {
		s.briefTTL = defaultBriefTTL
	}
	if s.maxChats <= 0 {
		s.maxChats = defaultMaxChats
	}
	return s
}

// PatientID returns the id of the session's patient.
func (s *Session) PatientID() string {
	return s.profile.ID
}

// Profile returns a copy of the patient profile.
func (s *Session) Profile() patient.Profile {
	return s.profile.Clone()
}

// Grants returns the active grants, newest first.
func (s *Session) Grants() []consent.Grant {
	return s.grants.ListActive()
}

// Records returns the record timeline, newest first.
func (s *Session) Records() []records.MedicalRecord {
	return s.records.List()
}

// SearchRecords lazily filters the timeline by type label or facility.
func (s *Session) SearchRecords(query string) iter.Seq[records.MedicalRecord] {
	return s.records.Filter(query)
}

// SearchAudit lazily filters the audit log by actor or action.
func (s *Session) SearchAudit(ctx context.Context, query string) iter.Seq2[auditlog.Entry, error] {
	return s.audit.Search(ctx, query)
}

// IssueGrant creates a grant and records "Granted Access to Dr. <name>".
func (s *Session) IssueGrant(ctx context.Context, req consent.GrantRequest) (consent.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.grants.Issue(req)
	if err != nil {
		return consent.Grant{}, err
	}
	entry, err := s.audit.Append(ctx, auditlog.Draft{
		Actor:   s.profile.Name,
		Action:  auditlog.ActionGrantIssued + g.DoctorName,
		Purpose: auditlog.PurposeCareContinuity,
	})
	if err != nil {
		s.grants.Remove(g.ID)
		return consent.Grant{}, fmt.Errorf("issue grant: %w", err)
	}
	s.logger.Info().Str("grant_id", g.ID).Str("mode", string(g.Mode)).Msg("grant issued")
	s.publish(ctx, EventGrantIssued, change{Entry: entry, Grant: &g})
	return g, nil
}

// RevokeGrant deletes the grant with id. It reports false, without an audit
// entry, when no such grant exists.
func (s *Session) RevokeGrant(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(ctx, id, s.profile.Name, auditlog.PurposePrivacy)
}

// RevokeAll revokes every active grant, one audit entry each. It stops at
// the first audit failure and returns how many grants were revoked.
func (s *Session) RevokeAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, g := range s.grants.ListActive() {
		ok, err := s.revokeLocked(ctx, g.ID, s.profile.Name, auditlog.PurposePrivacy)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// RevokeExpired revokes grants whose expiry date passed before asOf.
func (s *Session) RevokeExpired(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, g := range s.grants.Expired(asOf) {
		ok, err := s.revokeLocked(ctx, g.ID, SchedulerActor, auditlog.PurposeExpired)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Session) revokeLocked(ctx context.Context, id, actor, purpose string) (bool, error) {
	g, at, ok := s.grants.RevokeAt(id)
	if !ok {
		return false, nil
	}
	entry, err := s.audit.Append(ctx, auditlog.Draft{
		Actor:   actor,
		Action:  auditlog.ActionGrantRevoked,
		Purpose: purpose,
	})
	if err != nil {
		s.grants.Restore(g, at)
		return false, fmt.Errorf("revoke grant: %w", err)
	}
	s.logger.Info().Str("grant_id", g.ID).Str("actor", actor).Msg("grant revoked")
	s.publish(ctx, EventGrantRevoked, change{Entry: entry, Grant: &g})
	return true, nil
}

// AddRecord prepends rec to the timeline and records "Added New Record".
// A missing id is generated. An id already in the timeline is rejected with
// records.ErrDuplicateID and nothing is audited.
func (s *Session) AddRecord(ctx context.Context, rec records.MedicalRecord) (records.MedicalRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = s.now()
	}
	rec = rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.Add(rec); err != nil {
		return records.MedicalRecord{}, fmt.Errorf("add record %s: %w", rec.ID, err)
	}
	entry, err := s.audit.Append(ctx, auditlog.Draft{
		Actor:   s.profile.Name,
		Action:  auditlog.ActionRecordAdded,
		Purpose: auditlog.PurposeSelfManagement,
	})
	if err != nil {
		s.records.Remove(rec.ID)
		return records.MedicalRecord{}, fmt.Errorf("add record: %w", err)
	}
	s.publish(ctx, EventRecordAdded, change{Entry: entry, Record: &rec})
	return rec, nil
}

// IngestText summarizes free text into a new record. ok is false when the
// assistant produced nothing, in which case nothing is stored.
func (s *Session) IngestText(ctx context.Context, text string) (rec records.MedicalRecord, ok bool, err error) {
	a := s.ai.Summarize(ctx, text)
	if a == nil {
		return records.MedicalRecord{}, false, nil
	}
	rec, err = s.AddRecord(ctx, records.FromExtraction(*a, "", s.now()))
	return rec, err == nil, err
}

// IngestImage analyzes an uploaded document image into a new record whose
// file reference is fileName. ok is false when analysis produced nothing.
func (s *Session) IngestImage(ctx context.Context, fileName string, data []byte, mimeType string) (rec records.MedicalRecord, ok bool, err error) {
	a := s.ai.Analyze(ctx, data, mimeType)
	if a == nil {
		return records.MedicalRecord{}, false, nil
	}
	rec, err = s.AddRecord(ctx, records.FromExtraction(*a, fileName, s.now()))
	return rec, err == nil, err
}

// DoctorView evaluates what doctorName may see and records the access. The
// newest active grant for the doctor decides; without one the result is a
// denial. No projection is returned if the access cannot be audited.
func (s *Session) DoctorView(ctx context.Context, doctorName string) (access.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, _ := s.grantFor(doctorName)
	proj := access.Evaluate(s.profile, s.records.List(), grant)

	draft := auditlog.Draft{Actor: doctorActor(doctorName)}
	switch {
	case !proj.Permitted():
		draft.Action, draft.Purpose = auditlog.ActionAccessDenied, auditlog.PurposePrivacy
	case proj.Mode == consent.ModeStandard:
		draft.Action, draft.Purpose = auditlog.ActionRecordsAccessed, auditlog.PurposeConsultation
	case proj.Mode == consent.ModeIncognito:
		draft.Action, draft.Purpose = auditlog.ActionAnonymizedAccess, auditlog.PurposeAnonymizedReview
	default:
		draft.Action, draft.Purpose = auditlog.ActionEmergencyAccess, auditlog.PurposeEmergencyCare
	}
	entry, err := s.audit.Append(ctx, draft)
	if err != nil {
		return access.Denied(), fmt.Errorf("doctor view: %w", err)
	}
	s.publish(ctx, EventRecordsViewed, change{Entry: entry})
	return proj, nil
}

// Live event types.
const (
	EventGrantIssued   = "grant.issued"
	EventGrantRevoked  = "grant.revoked"
	EventRecordAdded   = "record.added"
	EventRecordsViewed = "records.viewed"
)

// change is the payload of a live event: the committed audit entry and the
// object it concerns, if any.
type change struct {
	Entry  auditlog.Entry         `json:"entry"`
	Grant  *consent.Grant         `json:"grant,omitempty"`
	Record *records.MedicalRecord `json:"record,omitempty"`
}

// publish notifies live subscribers of a committed change. Delivery is best
// effort and never affects the change itself.
func (s *Session) publish(ctx context.Context, typ string, c change) {
	if s.events == nil {
		return
	}
	ev, err := live.NewEvent(typ, live.PatientTopic(s.profile.ID), c)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Msg("live publish failed")
	}
}

// grantFor returns the newest active grant naming doctorName.
func (s *Session) grantFor(doctorName string) (consent.Grant, bool) {
	want := normalizeDoctor(doctorName)
	if want == "" {
		return consent.Grant{}, false
	}
	for _, g := range s.grants.ListActive() {
		if normalizeDoctor(g.DoctorName) == want {
			return g, true
		}
	}
	return consent.Grant{}, false
}

// normalizeDoctor compares doctor names without case or a "Dr." title.
func normalizeDoctor(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"dr. ", "dr ", "dr."} {
		if strings.HasPrefix(n, prefix) {
			n = strings.TrimSpace(n[len(prefix):])
			break
		}
	}
	return n
}

func doctorActor(name string) string {
	name = strings.TrimSpace(name)
	if normalizeDoctor(name) != strings.ToLower(name) {
		return name
	}
	return "Dr. " + name
}

// EmergencyBrief returns a short summary for responders. Briefs are cached
// per profile and record set.
func (s *Session) EmergencyBrief(ctx context.Context) string {
	recs := s.records.List()
	key := s.briefKey(recs)

	if v, ok, err := s.briefs.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("brief cache read failed")
	} else if ok {
		return v
	}

	brief := s.ai.Brief(ctx, s.profile, recs)
	if brief == assistant.FallbackBrief {
		return brief
	}
	if err := s.briefs.Set(ctx, key, brief, s.briefTTL); err != nil {
		s.logger.Warn().Err(err).Msg("brief cache write failed")
	}
	return brief
}

func (s *Session) briefKey(recs []records.MedicalRecord) string {
	h := sha256.New()
	for _, r := range recs {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
	}
	return "brief:" + s.profile.ID + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// StartChat opens a health chat primed with the profile and records and
// returns its id together with the greeting. When the session already holds
// its maximum of open chats the oldest one is closed.
func (s *Session) StartChat(_ context.Context) (id, greeting string) {
	conv := s.ai.Conversation(assistant.ChatInstruction(s.profile, s.records.List()))
	id = uuid.NewString()

	s.chatMu.Lock()
	for len(s.chatOrder) >= s.maxChats {
		oldest := s.chatOrder[0]
		s.chatOrder = s.chatOrder[1:]
		delete(s.chats, oldest)
		s.logger.Debug().Str("chat_id", oldest).Msg("chat evicted")
	}
	s.chats[id] = conv
	s.chatOrder = append(s.chatOrder, id)
	s.chatMu.Unlock()

	return id, assistant.Greeting(s.profile.Name)
}

// CloseChat drops an open chat. It reports whether the chat existed.
func (s *Session) CloseChat(chatID string) bool {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return false
	}
	delete(s.chats, chatID)
	for i, id := range s.chatOrder {
		if id == chatID {
			s.chatOrder = append(s.chatOrder[:i:i], s.chatOrder[i+1:]...)
			break
		}
	}
	return true
}

// OpenChats returns the number of open chats.
func (s *Session) OpenChats() int {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	return len(s.chats)
}

// SendChat forwards a message to an open chat.
func (s *Session) SendChat(ctx context.Context, chatID, text string) (string, error) {
	s.chatMu.Lock()
	conv, ok := s.chats[chatID]
	s.chatMu.Unlock()
	if !ok {
		return "", ErrChatNotFound
	}
	return conv.Send(ctx, text), nil
}
