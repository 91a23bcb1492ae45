// Package attendance wires face detection, matching, and the attendance
// ledger into the operations the web and CLI layers expose.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ngxtan/rollcall/internal/config"
	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/detector"
	"github.com/ngxtan/rollcall/internal/facematch"
)

// FaceDetector extracts faces and their embeddings from an image.
// Satisfied by detector.Client; stubbed in tests.
type FaceDetector interface {
	Detect(ctx context.Context, imageData []byte) ([]detector.Face, error)
}

// Service implements the attendance engine on top of the stores and the
// detector sidecar.
type Service struct {
	persons  database.PersonStore
	classes  database.ClassStore
	sessions database.SessionStore
	records  database.RecordStore
	detector FaceDetector
	policy   config.PolicyConfig

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewService(
	persons database.PersonStore,
	classes database.ClassStore,
	sessions database.SessionStore,
	records database.RecordStore,
	det FaceDetector,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		persons:  persons,
		classes:  classes,
		sessions: sessions,
		records:  records,
		detector: det,
		policy:   policy,
		now:      time.Now,
	}
}

// extractSingleEmbedding runs the detector and enforces the enrollment
// guard: exactly one face, no more, no less.
func (s *Service) extractSingleEmbedding(ctx context.Context, imageData []byte) ([]float32, error) {
	faces, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	switch len(faces) {
	case 0:
		return nil, ErrNoFaceFound
	case 1:
		return faces[0].Embedding, nil
	default:
		return nil, fmt.Errorf("%w: got %d faces", ErrAmbiguousImage, len(faces))
	}
}

// Enroll extracts the single face from the image and stores its embedding
// for the person. Re-enrolling overwrites the previous embedding in full.
func (s *Service) Enroll(ctx context.Context, personID string, imageData []byte) (*database.Person, error) {
	person, err := s.persons.Get(ctx, personID)
	if err != nil {
		return nil, err
	}

	embedding, err := s.extractSingleEmbedding(ctx, imageData)
	if err != nil {
		return nil, err
	}

	if err := s.persons.UpdateEmbedding(ctx, person.ID, embedding); err != nil {
		return nil, fmt.Errorf("storing embedding for person %s: %w", person.ID, err)
	}

	person.Embedding = embedding
	return person, nil
}

// UpdateEmbedding replaces a person's stored embedding from a new image.
// Same guard and overwrite semantics as Enroll.
func (s *Service) UpdateEmbedding(ctx context.Context, personID string, imageData []byte) (*database.Person, error) {
	return s.Enroll(ctx, personID, imageData)
}

// StartSession opens a new ongoing session for the class. A non-positive
// duration falls back to the configured default.
func (s *Service) StartSession(ctx context.Context, classID string, duration time.Duration) (*database.Session, error) {
	if _, err := s.classes.Get(ctx, classID); err != nil {
		return nil, err
	}

	if duration <= 0 {
		duration = s.policy.Session.DefaultDuration()
	}

	start := s.now()
	session := &database.Session{
		ID:        uuid.New().String(),
		ClassID:   classID,
		StartTime: start,
		EndTime:   start.Add(duration),
		Status:    database.SessionOngoing,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// EndSession completes an ongoing session and sweeps absent records for
// every roster member without one. Returns the number of absents created.
// Ending a completed session fails with database.ErrSessionNotOngoing.
func (s *Service) EndSession(ctx context.Context, sessionID string) (int, error) {
	return s.sessions.End(ctx, sessionID, s.now())
}

// SweepExpired ends every ongoing session whose end time has passed.
// Each session ends independently; the first error aborts the sweep.
// Returns the sessions that were completed.
func (s *Service) SweepExpired(ctx context.Context) ([]database.Session, error) {
	expired, err := s.sessions.ListExpired(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("listing expired sessions: %w", err)
	}
	for _, session := range expired {
		if _, err := s.sessions.End(ctx, session.ID, s.now()); err != nil {
			// Raced with a manual end; that session is done either way.
			if errors.Is(err, database.ErrSessionNotOngoing) {
				continue
			}
			return nil, fmt.Errorf("ending session %s: %w", session.ID, err)
		}
	}
	return expired, nil
}

// RecognizeForSession detects faces in the image and logs attendance for
// the first one that matches a roster member without an existing record.
func (s *Service) RecognizeForSession(ctx context.Context, sessionID string, imageData []byte) (*database.Record, error) {
	faces, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	probes := make([][]float32, len(faces))
	for i, f := range faces {
		probes[i] = f.Embedding
	}
	return s.RecognizeFrame(ctx, sessionID, probes)
}

// RecognizeFrame runs the recognition pipeline on pre-extracted face
// embeddings, in detection order. The first probe that matches a roster
// member within tolerance and yields a new record wins; matched persons
// that already have a record are skipped, not overwritten.
func (s *Service) RecognizeFrame(ctx context.Context, sessionID string, probes [][]float32) (*database.Record, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Ongoing() {
		return nil, database.ErrSessionNotOngoing
	}

	roster, err := s.classes.Roster(ctx, session.ClassID)
	if err != nil {
		return nil, fmt.Errorf("loading roster for class %s: %w", session.ClassID, err)
	}

	// Candidate order follows roster join order so that distance ties
	// break deterministically.
	candidates := make([]facematch.Candidate, 0, len(roster))
	for _, m := range roster {
		if len(m.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, facematch.Candidate{
			PersonID:  m.PersonID,
			Embedding: m.Embedding,
		})
	}
	if len(candidates) == 0 {
		return nil, ErrNoEnrolledFaces
	}

	matched := false
	for _, probe := range probes {
		result, err := facematch.Match(probe, candidates, s.policy.Recognition.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("matching probe: %w", err)
		}
		if result == nil {
			continue
		}
		matched = true

		record, err := s.records.RecognizeAndLog(ctx, sessionID, result.PersonID, s.classify(session), s.now())
		if errors.Is(err, database.ErrAlreadyLogged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("logging attendance for person %s: %w", result.PersonID, err)
		}
		return record, nil
	}

	if matched {
		return nil, ErrAllAlreadyLogged
	}
	return nil, ErrNoMatch
}

// classify picks the status for a fresh recognition. With a configured
// grace period, recognitions after start+grace count as late.
func (s *Service) classify(session *database.Session) database.RecordStatus {
	grace := s.policy.Session.LateGrace()
	if grace > 0 && s.now().After(session.StartTime.Add(grace)) {
		return database.StatusLate
	}
	return database.StatusPresent
}

// ManualSetStatus creates or replaces a record for the pair. Manual
// override works on completed sessions too, for post-hoc corrections.
func (s *Service) ManualSetStatus(ctx context.Context, sessionID, personID string, status database.RecordStatus) (*database.Record, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid attendance status %q", status)
	}
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return nil, err
	}
	return s.records.Upsert(ctx, sessionID, personID, status, s.now())
}

// ListSessionRecords returns a session's records, newest first.
func (s *Service) ListSessionRecords(ctx context.Context, sessionID string) ([]database.Record, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.records.ListForSession(ctx, sessionID)
}

// ListPersonRecords returns a person's records across sessions, newest
// first, optionally bounded by date.
func (s *Service) ListPersonRecords(ctx context.Context, personID string, from, to *time.Time) ([]database.Record, error) {
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return nil, err
	}
	return s.records.ListForPerson(ctx, personID, from, to)
}

// Report builds the full per-member view of a session: every roster
// member with their outcome, plus per-status counts. Members without a
// record (possible while the session is ongoing) have an empty status.
func (s *Service) Report(ctx context.Context, sessionID string) (*database.SessionReport, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	roster, err := s.classes.Roster(ctx, session.ClassID)
	if err != nil {
		return nil, fmt.Errorf("loading roster for class %s: %w", session.ClassID, err)
	}
	records, err := s.records.ListForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading records for session %s: %w", sessionID, err)
	}

	byPerson := make(map[string]database.Record, len(records))
	for _, r := range records {
		byPerson[r.PersonID] = r
	}

	report := &database.SessionReport{
		Session: *session,
		Entries: make([]database.ReportEntry, 0, len(roster)),
		Counts:  make(map[database.RecordStatus]int),
	}
	for _, m := range roster {
		entry := database.ReportEntry{
			PersonID: m.PersonID,
			Code:     m.Code,
			FullName: m.FullName,
		}
		if r, ok := byPerson[m.PersonID]; ok {
			entry.Status = r.Status
			entry.RecordedAt = r.RecordedAt
			report.Counts[r.Status]++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// IdentifyMatch is one nearest-neighbor hit from Identify.
type IdentifyMatch struct {
	Person   database.Person
	Distance float64
}

// Identify looks up the closest enrolled persons for a single face,
// across the whole directory rather than one roster. Admin utility; the
// results are ordered nearest first and not filtered by tolerance, so
// callers see distances even when nobody is close.
func (s *Service) Identify(ctx context.Context, imageData []byte, limit int) ([]IdentifyMatch, error) {
	embedding, err := s.extractSingleEmbedding(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	persons, distances, err := s.persons.FindNearest(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("searching nearest persons: %w", err)
	}

	matches := make([]IdentifyMatch, len(persons))
	for i := range persons {
		matches[i] = IdentifyMatch{Person: persons[i], Distance: distances[i]}
	}
	return matches, nil
}
