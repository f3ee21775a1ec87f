package monthlykey

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for attempt records.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get fetches the attempt record for a principal.
func (r *PGRepository) Get(ctx context.Context, userID int64) (*AttemptRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, year, month, attempts, locked_until, last_verified_at, is_valid, version
		FROM monthly_key_attempts
		WHERE user_id = $1`, userID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Create inserts a fresh record. A concurrent insert for the same principal
// surfaces as shared.ErrVersionConflict so the caller rereads and retries.
func (r *PGRepository) Create(ctx context.Context, rec *AttemptRecord) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO monthly_key_attempts
			(user_id, year, month, attempts, locked_until, last_verified_at, is_valid, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (user_id) DO NOTHING`,
		rec.UserID, rec.Year, rec.Month, rec.Attempts, rec.LockedUntil, rec.LastVerifiedAt, rec.IsValid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	rec.Version = 1
	return nil
}

// Update applies the record conditionally on its version. Zero rows affected
// means another writer advanced the record first.
func (r *PGRepository) Update(ctx context.Context, rec *AttemptRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE monthly_key_attempts
		SET year = $2, month = $3, attempts = $4, locked_until = $5,
			last_verified_at = $6, is_valid = $7, version = version + 1
		WHERE user_id = $1 AND version = $8`,
		rec.UserID, rec.Year, rec.Month, rec.Attempts, rec.LockedUntil,
		rec.LastVerifiedAt, rec.IsValid, rec.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	rec.Version++
	return nil
}

// ListPrincipals returns every known principal for the operator overview.
func (r *PGRepository) ListPrincipals(ctx context.Context) ([]PrincipalRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []PrincipalRef
	for rows.Next() {
		var ref PrincipalRef
		if err := rows.Scan(&ref.ID, &ref.Username); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListRecords returns all attempt records.
func (r *PGRepository) ListRecords(ctx context.Context) ([]AttemptRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, year, month, attempts, locked_until, last_verified_at, is_valid, version
		FROM monthly_key_attempts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []AttemptRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// DeleteOlderThan removes records from periods earlier than (year, month).
func (r *PGRepository) DeleteOlderThan(ctx context.Context, year, month int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM monthly_key_attempts WHERE (year, month) < ($1, $2)`, year, month)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*AttemptRecord, error) {
	var rec AttemptRecord
	var lockedUntil *time.Time
	if err := row.Scan(&rec.UserID, &rec.Year, &rec.Month, &rec.Attempts,
		&lockedUntil, &rec.LastVerifiedAt, &rec.IsValid, &rec.Version); err != nil {
		return nil, err
	}
	rec.LockedUntil = lockedUntil
	return &rec, nil
}
