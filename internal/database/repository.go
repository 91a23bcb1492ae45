package database

import (
	"context"
	"time"
)

// PersonStore provides access to enrolled persons and their embeddings.
type PersonStore interface {
	// Create inserts a new person. Fails with ErrDuplicateCode if the code
	// is already registered.
	Create(ctx context.Context, p *Person) error
	// Get retrieves a person by ID. Fails with ErrPersonNotFound.
	Get(ctx context.Context, id string) (*Person, error)
	// GetByCode retrieves a person by their unique code. Fails with ErrPersonNotFound.
	GetByCode(ctx context.Context, code string) (*Person, error)
	// List returns all persons ordered by code.
	List(ctx context.Context) ([]Person, error)
	// SearchByName returns persons whose normalized full name matches the
	// normalized query (lowercase, no diacritics, dashes as spaces).
	SearchByName(ctx context.Context, name string) ([]Person, error)
	// UpdateEmbedding overwrites the person's stored face embedding.
	// Replacing is always a full overwrite, never a merge.
	UpdateEmbedding(ctx context.Context, personID string, embedding []float32) error
	// FindNearest returns the persons with embeddings closest to the probe,
	// with their Euclidean distances, nearest first. Persons without an
	// embedding are never returned.
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]Person, []float64, error)
}

// ClassStore provides access to classes and their rosters.
type ClassStore interface {
	// Create inserts a new class.
	Create(ctx context.Context, c *Class) error
	// Get retrieves a class by ID. Fails with ErrClassNotFound.
	Get(ctx context.Context, id string) (*Class, error)
	// List returns all classes ordered by name.
	List(ctx context.Context) ([]Class, error)
	// Update overwrites name, description and teacher of an existing class.
	Update(ctx context.Context, c *Class) error
	// Delete removes a class and, through cascade rules, its sessions and
	// their records.
	Delete(ctx context.Context, id string) error
	// AddMember adds a person to the class roster. Adding an existing
	// member is a no-op.
	AddMember(ctx context.Context, classID, personID string) error
	// RemoveMember removes a person from the class roster.
	RemoveMember(ctx context.Context, classID, personID string) error
	// Roster returns the class members in join order. Join order is
	// stable and is the matcher's deterministic tie-break order.
	Roster(ctx context.Context, classID string) ([]RosterMember, error)
}

// SessionStore governs attendance session lifecycle.
type SessionStore interface {
	// Create inserts a new session in the ongoing state.
	Create(ctx context.Context, s *Session) error
	// Get retrieves a session by ID. Fails with ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// ListForClass returns the class's sessions, newest first.
	ListForClass(ctx context.Context, classID string) ([]Session, error)
	// ListExpired returns ongoing sessions whose end time has passed.
	ListExpired(ctx context.Context, now time.Time) ([]Session, error)
	// End completes an ongoing session: within a single transaction it
	// flips the status to completed and inserts an absent record for every
	// roster member without an existing record, stamped at sweepAt.
	// Returns the number of absent records created. Fails with
	// ErrSessionNotFound or ErrSessionNotOngoing without touching records.
	End(ctx context.Context, sessionID string, sweepAt time.Time) (int, error)
}

// RecordStore is the attendance ledger. The (session_id, person_id)
// unique key is enforced by the storage layer so that concurrent writers
// cannot both create a record for the same pair.
type RecordStore interface {
	// RecognizeAndLog inserts a record if none exists for the pair.
	// Fails with ErrAlreadyLogged when one does; recognition never
	// overwrites an existing record.
	RecognizeAndLog(ctx context.Context, sessionID, personID string, status RecordStatus, at time.Time) (*Record, error)
	// Upsert creates or replaces the pair's record status. Used by manual
	// override, which is permitted regardless of session status.
	Upsert(ctx context.Context, sessionID, personID string, status RecordStatus, at time.Time) (*Record, error)
	// ListForSession returns the session's records, newest first.
	ListForSession(ctx context.Context, sessionID string) ([]Record, error)
	// ListForPerson returns the person's records, newest first, optionally
	// bounded by date. The end bound is inclusive of the entire end day.
	ListForPerson(ctx context.Context, personID string, from, to *time.Time) ([]Record, error)
}
