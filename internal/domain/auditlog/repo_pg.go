package auditlog

import (
	"context"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGRepository stores one patient's audit entries in the audit_log table.
type PGRepository struct {
	db        queryable
	patientID string
}

// NewPGRepository returns a repository scoped to patientID.
func NewPGRepository(pool *pgxpool.Pool, patientID string) *PGRepository {
	return &PGRepository{db: pool, patientID: patientID}
}

const auditCols = `id, seq, recorded_at, actor, action, purpose`

func (r *PGRepository) Append(ctx context.Context, e Entry) error {
	const q = `INSERT INTO audit_log (id, patient_id, seq, recorded_at, actor, action, purpose)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.Exec(ctx, q, e.ID, r.patientID, e.Seq, e.Timestamp, e.Actor, e.Action, e.Purpose); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PGRepository) Scan(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		q := fmt.Sprintf("SELECT %s FROM audit_log WHERE patient_id = $1 ORDER BY seq DESC", auditCols)
		rows, err := r.db.Query(ctx, q, r.patientID)
		if err != nil {
			yield(Entry{}, fmt.Errorf("query audit log: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.ID, &e.Seq, &e.Timestamp, &e.Actor, &e.Action, &e.Purpose); err != nil {
				yield(Entry{}, fmt.Errorf("scan audit entry: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, fmt.Errorf("iterate audit log: %w", err))
		}
	}
}

func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE patient_id = $1`, r.patientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit log: %w", err)
	}
	return n, nil
}

func (r *PGRepository) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_log WHERE patient_id = $1`, r.patientID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last audit seq: %w", err)
	}
	return seq, nil
}
