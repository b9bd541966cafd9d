package auditlog

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is the append-only audit trail of one patient session.
type Log struct {
	mu     sync.Mutex
	repo   Repository
	seq    int64
	loaded bool
	last   time.Time
	now    func() time.Time
}

// NewLog creates a log on top of repo.
func NewLog(repo Repository) *Log {
	return &Log{repo: repo, now: time.Now}
}

// Append records a new entry and returns it as stored. A non-nil error means
// nothing was recorded and the caller must treat its own action as not
// committed.
func (l *Log) Append(ctx context.Context, d Draft) (Entry, error) {
	return l.append(ctx, d, time.Time{})
}

// AppendAt records an entry with an explicit capture time. Used to load
// historical entries; ordering still follows append order.
func (l *Log) AppendAt(ctx context.Context, d Draft, at time.Time) (Entry, error) {
	return l.append(ctx, d, at)
}

func (l *Log) append(ctx context.Context, d Draft, at time.Time) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		seq, err := l.repo.LastSeq(ctx)
		if err != nil {
			return Entry{}, fmt.Errorf("audit append: %w", err)
		}
		l.seq = seq
		l.loaded = true
	}

	ts := at
	if ts.IsZero() {
		ts = l.now()
		if ts.Before(l.last) {
			ts = l.last
		}
	}

	e := Entry{
		ID:        uuid.NewString(),
		Seq:       l.seq + 1,
		Timestamp: ts,
		Actor:     d.Actor,
		Action:    d.Action,
		Purpose:   d.Purpose,
	}
	if err := l.repo.Append(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("audit append: %w", err)
	}
	l.seq = e.Seq
	if at.IsZero() {
		l.last = ts
	}
	return e, nil
}

// Search lazily yields entries, newest first, whose actor or action contains
// query ignoring case. An empty query matches every entry. The sequence can
// be ranged over any number of times.
func (l *Log) Search(ctx context.Context, query string) iter.Seq2[Entry, error] {
	q := strings.ToLower(query)
	return func(yield func(Entry, error) bool) {
		for e, err := range l.repo.Scan(ctx) {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if q != "" &&
				!strings.Contains(strings.ToLower(e.Actor), q) &&
				!strings.Contains(strings.ToLower(e.Action), q) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Len returns the number of recorded entries.
func (l *Log) Len(ctx context.Context) (int, error) {
	return l.repo.Count(ctx)
}
