package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/facematch"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PersonRepository provides PostgreSQL-backed person storage with an
// optional in-memory HNSW index for nearest-person lookups.
type PersonRepository struct {
	pool    *Pool
	index   *database.PersonIndex
	indexMu sync.RWMutex
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// WarmIndex loads all enrolled persons into an in-memory HNSW index.
// After warming, FindNearest answers from memory; until then it falls
// back to a pgvector scan.
func (r *PersonRepository) WarmIndex(ctx context.Context) (int, error) {
	persons, err := r.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading persons for index: %w", err)
	}

	index := database.NewPersonIndex()
	if err := index.Build(persons); err != nil {
		return 0, fmt.Errorf("building person index: %w", err)
	}

	r.indexMu.Lock()
	r.index = index
	r.indexMu.Unlock()
	return index.Count(), nil
}

func (r *PersonRepository) Create(ctx context.Context, p *database.Person) error {
	query := `
		INSERT INTO persons (id, code, full_name, role, password_hash, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	var vec any
	if p.Enrolled() {
		vec = pgvector.NewVector(p.Embedding)
	}
	if _, err := r.pool.Exec(ctx, query, p.ID, p.Code, p.FullName, p.Role, p.PasswordHash, vec); err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicateCode
		}
		return fmt.Errorf("insert person: %w", err)
	}

	r.indexUpsert(p)
	return nil
}

func (r *PersonRepository) Get(ctx context.Context, id string) (*database.Person, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *PersonRepository) GetByCode(ctx context.Context, code string) (*database.Person, error) {
	return r.getWhere(ctx, "code = $1", code)
}

func (r *PersonRepository) getWhere(ctx context.Context, where string, arg any) (*database.Person, error) {
	query := `
		SELECT id, code, full_name, role, password_hash, embedding, created_at
		FROM persons
		WHERE ` + where

	p, err := scanPerson(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) List(ctx context.Context) ([]database.Person, error) {
	query := `
		SELECT id, code, full_name, role, password_hash, embedding, created_at
		FROM persons
		ORDER BY code
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// SearchByName matches on the normalized full name, so queries with or
// without diacritics find the same people.
func (r *PersonRepository) SearchByName(ctx context.Context, name string) ([]database.Person, error) {
	persons, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	query := facematch.NormalizePersonName(name)
	matched := persons[:0]
	for _, p := range persons {
		if facematch.ContainsNormalized(p.FullName, query) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func (r *PersonRepository) UpdateEmbedding(ctx context.Context, personID string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	result, err := r.pool.Exec(ctx, "UPDATE persons SET embedding = $2 WHERE id = $1", personID, vec)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update embedding rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrPersonNotFound
	}

	r.indexMu.RLock()
	index := r.index
	r.indexMu.RUnlock()
	if index != nil {
		p, err := r.Get(ctx, personID)
		if err != nil {
			log.Printf("person index refresh for %s failed, index is stale until the next warm: %v", personID, err)
			return nil
		}
		index.Upsert(p)
	}
	return nil
}

func (r *PersonRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Person, []float64, error) {
	r.indexMu.RLock()
	index := r.index
	r.indexMu.RUnlock()

	if index != nil && index.Count() > 0 {
		return index.Search(embedding, limit)
	}

	query := `
		SELECT id, code, full_name, role, password_hash, embedding, created_at,
		       embedding <-> $1::vector AS distance
		FROM persons
		WHERE embedding IS NOT NULL
		ORDER BY distance
		LIMIT $2
	`
	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx, query, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest persons: %w", err)
	}
	defer rows.Close()

	var persons []database.Person
	var distances []float64
	for rows.Next() {
		var p database.Person
		var vec pgvector.Vector
		var dist float64
		if err := rows.Scan(&p.ID, &p.Code, &p.FullName, &p.Role, &p.PasswordHash, &vec, &p.CreatedAt, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan person: %w", err)
		}
		p.Embedding = vec.Slice()
		persons = append(persons, p)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, distances, nil
}

func (r *PersonRepository) indexUpsert(p *database.Person) {
	r.indexMu.RLock()
	index := r.index
	r.indexMu.RUnlock()
	if index != nil {
		index.Upsert(p)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullVector scans a nullable vector column. pgvector.Vector alone
// rejects NULL.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func scanPerson(row rowScanner) (*database.Person, error) {
	var p database.Person
	var vec nullVector
	if err := row.Scan(&p.ID, &p.Code, &p.FullName, &p.Role, &p.PasswordHash, &vec, &p.CreatedAt); err != nil {
		return nil, err
	}
	if vec.valid {
		p.Embedding = vec.vec.Slice()
	}
	return &p, nil
}

func scanPersons(rows *sql.Rows) ([]database.Person, error) {
	var persons []database.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

var _ database.PersonStore = (*PersonRepository)(nil)
