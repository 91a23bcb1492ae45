package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ngxtan/rollcall/internal/database"
)

// ClassRepository provides PostgreSQL-backed class and roster storage.
type ClassRepository struct {
	pool *Pool
}

// NewClassRepository creates a new PostgreSQL class repository.
func NewClassRepository(pool *Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

func (r *ClassRepository) Create(ctx context.Context, c *database.Class) error {
	query := `
		INSERT INTO classes (id, name, description, teacher_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
	`
	if _, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Description, c.TeacherID); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

func (r *ClassRepository) Get(ctx context.Context, id string) (*database.Class, error) {
	query := `
		SELECT id, name, description, COALESCE(teacher_id::text, ''), created_at
		FROM classes
		WHERE id = $1
	`
	var c database.Class
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.TeacherID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query class: %w", err)
	}
	return &c, nil
}

func (r *ClassRepository) List(ctx context.Context) ([]database.Class, error) {
	query := `
		SELECT id, name, description, COALESCE(teacher_id::text, ''), created_at
		FROM classes
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []database.Class
	for rows.Next() {
		var c database.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.TeacherID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

func (r *ClassRepository) Update(ctx context.Context, c *database.Class) error {
	query := `
		UPDATE classes
		SET name = $2, description = $3, teacher_id = NULLIF($4, '')
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Description, c.TeacherID)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update class rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrClassNotFound
	}
	return nil
}

// Delete removes a class; sessions, records and memberships follow
// through the cascade rules.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete class rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrClassNotFound
	}
	return nil
}

func (r *ClassRepository) AddMember(ctx context.Context, classID, personID string) error {
	if _, err := r.Get(ctx, classID); err != nil {
		return err
	}
	query := `
		INSERT INTO class_members (class_id, person_id)
		VALUES ($1, $2)
		ON CONFLICT (class_id, person_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, classID, personID); err != nil {
		return fmt.Errorf("insert class member: %w", err)
	}
	return nil
}

func (r *ClassRepository) RemoveMember(ctx context.Context, classID, personID string) error {
	query := "DELETE FROM class_members WHERE class_id = $1 AND person_id = $2"
	if _, err := r.pool.Exec(ctx, query, classID, personID); err != nil {
		return fmt.Errorf("delete class member: %w", err)
	}
	return nil
}

// Roster returns the members in join order, with joined_at and person_id
// as a stable tiebreaker, so matching over the roster is deterministic.
func (r *ClassRepository) Roster(ctx context.Context, classID string) ([]database.RosterMember, error) {
	if _, err := r.Get(ctx, classID); err != nil {
		return nil, err
	}

	query := `
		SELECT p.id, p.code, p.full_name, p.embedding, m.joined_at
		FROM class_members m
		JOIN persons p ON p.id = m.person_id
		WHERE m.class_id = $1
		ORDER BY m.joined_at, p.id
	`
	rows, err := r.pool.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var roster []database.RosterMember
	for rows.Next() {
		var m database.RosterMember
		var vec nullVector
		if err := rows.Scan(&m.PersonID, &m.Code, &m.FullName, &vec, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		if vec.valid {
			m.Embedding = vec.vec.Slice()
		}
		roster = append(roster, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return roster, nil
}

var _ database.ClassStore = (*ClassRepository)(nil)
