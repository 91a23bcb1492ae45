package database

import (
	"time"
)

// Role classifies a person for the auth layer. The attendance core only
// cares whether a person is a roster member.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// RecordStatus is the attendance outcome for one person in one session.
type RecordStatus string

const (
	StatusPresent RecordStatus = "present"
	StatusLate    RecordStatus = "late"
	StatusAbsent  RecordStatus = "absent"
)

// Valid reports whether s is one of the known record statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// Person is an enrolled identity. Embedding is nil until a face has been
// enrolled; replacing it is always a full overwrite.
type Person struct {
	ID           string
	Code         string
	FullName     string
	Role         Role
	PasswordHash string
	Embedding    []float32
	CreatedAt    time.Time
}

// Enrolled reports whether the person has a stored face embedding.
func (p *Person) Enrolled() bool {
	return len(p.Embedding) > 0
}

// Class owns a roster and its attendance sessions.
type Class struct {
	ID          string
	Name        string
	Description string
	TeacherID   string
	CreatedAt   time.Time
}

// RosterMember is one person's membership in a class roster. Members are
// enumerated in join order, which is also the matcher's tie-break order.
type RosterMember struct {
	PersonID  string
	Code      string
	FullName  string
	Embedding []float32
	JoinedAt  time.Time
}

// Session is one bounded attendance-taking event for a class.
// EndTime is fixed at creation; a session stays ongoing past its nominal
// end until End is invoked explicitly.
type Session struct {
	ID        string
	ClassID   string
	StartTime time.Time
	EndTime   time.Time
	Status    SessionStatus
}

// Ongoing reports whether the session still accepts recognitions.
func (s *Session) Ongoing() bool {
	return s.Status == SessionOngoing
}

// Record is the attendance outcome for a (session, person) pair.
// At most one record exists per pair; the uniqueness is enforced by the
// storage layer, not just application logic.
type Record struct {
	SessionID  string
	PersonID   string
	Status     RecordStatus
	RecordedAt time.Time

	// Denormalized person fields for listings.
	PersonCode string
	PersonName string
}

// SessionReport summarizes a session: every roster member with their
// outcome (or none, while the session is still ongoing).
type SessionReport struct {
	Session Session
	Entries []ReportEntry
	Counts  map[RecordStatus]int
}

// ReportEntry pairs a roster member with their record, if any.
type ReportEntry struct {
	PersonID   string
	Code       string
	FullName   string
	Status     RecordStatus // empty when no record yet
	RecordedAt time.Time
}
