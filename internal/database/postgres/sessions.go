package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ngxtan/rollcall/internal/database"
)

// SessionRepository provides PostgreSQL-backed session lifecycle storage.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *database.Session) error {
	query := `
		INSERT INTO attendance_sessions (id, class_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, s.ID, s.ClassID, s.StartTime, s.EndTime, s.Status); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*database.Session, error) {
	query := `
		SELECT id, class_id, start_time, end_time, status
		FROM attendance_sessions
		WHERE id = $1
	`
	var s database.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.ClassID, &s.StartTime, &s.EndTime, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) ListForClass(ctx context.Context, classID string) ([]database.Session, error) {
	query := `
		SELECT id, class_id, start_time, end_time, status
		FROM attendance_sessions
		WHERE class_id = $1
		ORDER BY start_time DESC
	`
	return r.list(ctx, query, classID)
}

func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time) ([]database.Session, error) {
	query := `
		SELECT id, class_id, start_time, end_time, status
		FROM attendance_sessions
		WHERE status = 'ongoing' AND end_time < $1
		ORDER BY end_time
	`
	return r.list(ctx, query, now)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]database.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []database.Session
	for rows.Next() {
		var s database.Session
		if err := rows.Scan(&s.ID, &s.ClassID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// End completes an ongoing session in one transaction: it locks the
// session row, flips the status, and inserts an absent record for every
// roster member without one. A recognition racing this either commits
// before the status flip (the sweep then yields to that record via
// ON CONFLICT DO NOTHING) or fails afterwards on the status check.
func (r *SessionRepository) End(ctx context.Context, sessionID string, sweepAt time.Time) (int, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var classID string
	var status database.SessionStatus
	err = tx.QueryRowContext(ctx,
		"SELECT class_id, status FROM attendance_sessions WHERE id = $1 FOR UPDATE",
		sessionID,
	).Scan(&classID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, database.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock session: %w", err)
	}
	if status != database.SessionOngoing {
		return 0, database.ErrSessionNotOngoing
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, person_id, status, recorded_at)
		SELECT $1, m.person_id, 'absent', $2
		FROM class_members m
		WHERE m.class_id = $3
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_records r
			WHERE r.session_id = $1 AND r.person_id = m.person_id
		  )
		ON CONFLICT (session_id, person_id) DO NOTHING
	`, sessionID, sweepAt, classID)
	if err != nil {
		return 0, fmt.Errorf("sweep absent records: %w", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE attendance_sessions SET status = 'completed' WHERE id = $1",
		sessionID,
	); err != nil {
		return 0, fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit session end: %w", err)
	}
	return int(created), nil
}

var _ database.SessionStore = (*SessionRepository)(nil)
