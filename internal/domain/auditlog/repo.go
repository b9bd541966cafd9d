package auditlog

import (
	"context"
	"iter"
)

// Repository persists audit entries. Implementations assign nothing: the
// Log fills ID, Seq and Timestamp before calling Append.
type Repository interface {
	// Append stores e. An error means the entry was not recorded.
	Append(ctx context.Context, e Entry) error
	// Scan yields entries newest first. Iteration stops at the first error.
	Scan(ctx context.Context) iter.Seq2[Entry, error]
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// LastSeq returns the highest stored sequence number, or 0.
	LastSeq(ctx context.Context) (int64, error)
}
