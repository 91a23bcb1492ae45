package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ngxtan/rollcall/internal/database"
)

// RecordRepository is the PostgreSQL attendance ledger. The primary key
// on (session_id, person_id) is what makes concurrent recognitions of
// the same person safe: one insert wins, the rest hit the constraint.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a new PostgreSQL record repository.
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// RecognizeAndLog inserts a record for the pair, but only while the
// session is ongoing; the status check runs inside the insert statement
// so a session completed by a concurrent sweep cannot gain new records.
func (r *RecordRepository) RecognizeAndLog(ctx context.Context, sessionID, personID string, status database.RecordStatus, at time.Time) (*database.Record, error) {
	query := `
		INSERT INTO attendance_records (session_id, person_id, status, recorded_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (
			SELECT 1 FROM attendance_sessions WHERE id = $1 AND status = 'ongoing'
		)
		RETURNING session_id, person_id, status, recorded_at
	`
	record, err := r.scanRecord(r.pool.QueryRow(ctx, query, sessionID, personID, status, at))
	if isUniqueViolation(err) {
		return nil, database.ErrAlreadyLogged
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Nothing inserted and no conflict: the session is gone or done.
		if _, getErr := NewSessionRepository(r.pool).Get(ctx, sessionID); getErr != nil {
			return nil, getErr
		}
		return nil, database.ErrSessionNotOngoing
	}
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	r.fillPerson(ctx, record)
	return record, nil
}

// Upsert creates or replaces the pair's record. Used for manual
// overrides, which may touch completed sessions.
func (r *RecordRepository) Upsert(ctx context.Context, sessionID, personID string, status database.RecordStatus, at time.Time) (*database.Record, error) {
	query := `
		INSERT INTO attendance_records (session_id, person_id, status, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, person_id) DO UPDATE SET
			status = EXCLUDED.status,
			recorded_at = EXCLUDED.recorded_at
		RETURNING session_id, person_id, status, recorded_at
	`
	record, err := r.scanRecord(r.pool.QueryRow(ctx, query, sessionID, personID, status, at))
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}

	r.fillPerson(ctx, record)
	return record, nil
}

func (r *RecordRepository) ListForSession(ctx context.Context, sessionID string) ([]database.Record, error) {
	query := `
		SELECT r.session_id, r.person_id, r.status, r.recorded_at, p.code, p.full_name
		FROM attendance_records r
		JOIN persons p ON p.id = r.person_id
		WHERE r.session_id = $1
		ORDER BY r.recorded_at DESC, r.person_id
	`
	return r.list(ctx, query, sessionID)
}

// ListForPerson returns a person's records, newest first. The bounds are
// optional; the end bound covers its entire day.
func (r *RecordRepository) ListForPerson(ctx context.Context, personID string, from, to *time.Time) ([]database.Record, error) {
	query := `
		SELECT r.session_id, r.person_id, r.status, r.recorded_at, p.code, p.full_name
		FROM attendance_records r
		JOIN persons p ON p.id = r.person_id
		WHERE r.person_id = $1
	`
	args := []any{personID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND r.recorded_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.AddDate(0, 0, 1))
		query += fmt.Sprintf(" AND r.recorded_at < $%d", len(args))
	}
	query += " ORDER BY r.recorded_at DESC"

	return r.list(ctx, query, args...)
}

func (r *RecordRepository) list(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []database.Record
	for rows.Next() {
		var rec database.Record
		if err := rows.Scan(&rec.SessionID, &rec.PersonID, &rec.Status, &rec.RecordedAt, &rec.PersonCode, &rec.PersonName); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *RecordRepository) scanRecord(row rowScanner) (*database.Record, error) {
	var rec database.Record
	if err := row.Scan(&rec.SessionID, &rec.PersonID, &rec.Status, &rec.RecordedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// fillPerson adds the denormalized person fields; listings need them and
// write paths return them for symmetry. Best effort.
func (r *RecordRepository) fillPerson(ctx context.Context, rec *database.Record) {
	var code, name string
	err := r.pool.QueryRow(ctx, "SELECT code, full_name FROM persons WHERE id = $1", rec.PersonID).Scan(&code, &name)
	if err != nil {
		return
	}
	rec.PersonCode = code
	rec.PersonName = name
}

var _ database.RecordStore = (*RecordRepository)(nil)
