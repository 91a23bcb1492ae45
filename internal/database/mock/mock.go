// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/facematch"
)

// MockPersonStore is an in-memory database.PersonStore.
type MockPersonStore struct {
	mu      sync.RWMutex
	persons map[string]*database.Person

	// Error injection
	CreateError          error
	GetError             error
	ListError            error
	UpdateEmbeddingError error
	FindNearestError     error
}

func NewMockPersonStore() *MockPersonStore {
	return &MockPersonStore{
		persons: make(map[string]*database.Person),
	}
}

// AddPerson seeds a person into the store.
func (m *MockPersonStore) AddPerson(p database.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persons[p.ID] = &p
}

func (m *MockPersonStore) Create(ctx context.Context, p *database.Person) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.persons {
		if existing.Code == p.Code {
			return database.ErrDuplicateCode
		}
	}
	cp := *p
	m.persons[p.ID] = &cp
	return nil
}

func (m *MockPersonStore) Get(ctx context.Context, id string) (*database.Person, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[id]
	if !ok {
		return nil, database.ErrPersonNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPersonStore) GetByCode(ctx context.Context, code string) (*database.Person, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.persons {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrPersonNotFound
}

func (m *MockPersonStore) List(ctx context.Context) ([]database.Person, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MockPersonStore) SearchByName(ctx context.Context, name string) ([]database.Person, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	query := facematch.NormalizePersonName(name)
	var out []database.Person
	for _, p := range m.persons {
		if strings.Contains(facematch.NormalizePersonName(p.FullName), query) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MockPersonStore) UpdateEmbedding(ctx context.Context, personID string, embedding []float32) error {
	if m.UpdateEmbeddingError != nil {
		return m.UpdateEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.persons[personID]
	if !ok {
		return database.ErrPersonNotFound
	}
	p.Embedding = append([]float32(nil), embedding...)
	return nil
}

func (m *MockPersonStore) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Person, []float64, error) {
	if m.FindNearestError != nil {
		return nil, nil, m.FindNearestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		person   database.Person
		distance float64
	}
	var hits []hit
	for _, p := range m.persons {
		if !p.Enrolled() {
			continue
		}
		hits = append(hits, hit{*p, database.EuclideanDistance(embedding, p.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	persons := make([]database.Person, len(hits))
	distances := make([]float64, len(hits))
	for i, h := range hits {
		persons[i] = h.person
		distances[i] = h.distance
	}
	return persons, distances, nil
}

// MockClassStore is an in-memory database.ClassStore. Roster order is
// insertion order, matching the join-order guarantee of the real store.
type MockClassStore struct {
	mu      sync.RWMutex
	classes map[string]*database.Class
	rosters map[string][]database.RosterMember

	persons *MockPersonStore

	// Error injection
	CreateError error
	GetError    error
	RosterError error
	MemberError error
}

// NewMockClassStore creates a class store. The person store fills in
// member names and embeddings when building rosters; it may be nil if
// the test never reads a roster.
func NewMockClassStore(persons *MockPersonStore) *MockClassStore {
	return &MockClassStore{
		classes: make(map[string]*database.Class),
		rosters: make(map[string][]database.RosterMember),
		persons: persons,
	}
}

func (m *MockClassStore) Create(ctx context.Context, c *database.Class) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.classes[c.ID] = &cp
	return nil
}

func (m *MockClassStore) Get(ctx context.Context, id string) (*database.Class, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, database.ErrClassNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockClassStore) List(ctx context.Context) ([]database.Class, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockClassStore) Update(ctx context.Context, c *database.Class) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[c.ID]; !ok {
		return database.ErrClassNotFound
	}
	cp := *c
	m.classes[c.ID] = &cp
	return nil
}

func (m *MockClassStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[id]; !ok {
		return database.ErrClassNotFound
	}
	delete(m.classes, id)
	delete(m.rosters, id)
	return nil
}

func (m *MockClassStore) AddMember(ctx context.Context, classID, personID string) error {
	if m.MemberError != nil {
		return m.MemberError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[classID]; !ok {
		return database.ErrClassNotFound
	}
	for _, member := range m.rosters[classID] {
		if member.PersonID == personID {
			return nil
		}
	}
	m.rosters[classID] = append(m.rosters[classID], database.RosterMember{
		PersonID: personID,
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *MockClassStore) RemoveMember(ctx context.Context, classID, personID string) error {
	if m.MemberError != nil {
		return m.MemberError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	roster := m.rosters[classID]
	for i, member := range roster {
		if member.PersonID == personID {
			m.rosters[classID] = append(roster[:i:i], roster[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockClassStore) Roster(ctx context.Context, classID string) ([]database.RosterMember, error) {
	if m.RosterError != nil {
		return nil, m.RosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.classes[classID]; !ok {
		return nil, database.ErrClassNotFound
	}
	roster := m.rosters[classID]
	out := make([]database.RosterMember, len(roster))
	copy(out, roster)
	if m.persons != nil {
		for i := range out {
			if p, ok := m.persons.persons[out[i].PersonID]; ok {
				out[i].Code = p.Code
				out[i].FullName = p.FullName
				out[i].Embedding = p.Embedding
			}
		}
	}
	return out, nil
}

// MockSessionStore is an in-memory database.SessionStore. End needs the
// class and record stores to run the absent sweep the way the real
// transaction does.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*database.Session

	classes *MockClassStore
	records *MockRecordStore

	// Error injection
	CreateError error
	GetError    error
	EndError    error
}

func NewMockSessionStore(classes *MockClassStore, records *MockRecordStore) *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]*database.Session),
		classes:  classes,
		records:  records,
	}
}

func (m *MockSessionStore) Create(ctx context.Context, s *database.Session) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*database.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, database.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSessionStore) ListForClass(ctx context.Context, classID string) ([]database.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Session
	for _, s := range m.sessions {
		if s.ClassID == classID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *MockSessionStore) ListExpired(ctx context.Context, now time.Time) ([]database.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Session
	for _, s := range m.sessions {
		if s.Status == database.SessionOngoing && s.EndTime.Before(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (m *MockSessionStore) End(ctx context.Context, sessionID string, sweepAt time.Time) (int, error) {
	if m.EndError != nil {
		return 0, m.EndError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, database.ErrSessionNotFound
	}
	if s.Status != database.SessionOngoing {
		return 0, database.ErrSessionNotOngoing
	}

	created := 0
	if m.classes != nil && m.records != nil {
		roster, err := m.classes.Roster(ctx, s.ClassID)
		if err != nil {
			return 0, err
		}
		m.records.mu.Lock()
		defer m.records.mu.Unlock()
		for _, member := range roster {
			if m.records.has(sessionID, member.PersonID) {
				continue
			}
			m.records.put(&database.Record{
				SessionID:  sessionID,
				PersonID:   member.PersonID,
				Status:     database.StatusAbsent,
				RecordedAt: sweepAt,
				PersonCode: member.Code,
				PersonName: member.FullName,
			})
			created++
		}
	}

	s.Status = database.SessionCompleted
	return created, nil
}

// MockRecordStore is an in-memory database.RecordStore. Uniqueness per
// (session, person) pair is enforced the same way the real store does
// with its unique constraint.
type MockRecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*database.Record // sessionID -> personID -> record

	persons *MockPersonStore

	// Error injection
	LogError    error
	UpsertError error
	ListError   error
}

// NewMockRecordStore creates a record store. The person store fills in
// denormalized person fields; it may be nil.
func NewMockRecordStore(persons *MockPersonStore) *MockRecordStore {
	return &MockRecordStore{
		records: make(map[string]map[string]*database.Record),
		persons: persons,
	}
}

func (m *MockRecordStore) has(sessionID, personID string) bool {
	_, ok := m.records[sessionID][personID]
	return ok
}

func (m *MockRecordStore) put(r *database.Record) {
	if m.records[r.SessionID] == nil {
		m.records[r.SessionID] = make(map[string]*database.Record)
	}
	m.records[r.SessionID][r.PersonID] = r
}

func (m *MockRecordStore) denormalize(r *database.Record) {
	if m.persons == nil {
		return
	}
	if p, ok := m.persons.persons[r.PersonID]; ok {
		r.PersonCode = p.Code
		r.PersonName = p.FullName
	}
}

func (m *MockRecordStore) RecognizeAndLog(ctx context.Context, sessionID, personID string, status database.RecordStatus, at time.Time) (*database.Record, error) {
	if m.LogError != nil {
		return nil, m.LogError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.has(sessionID, personID) {
		return nil, database.ErrAlreadyLogged
	}
	r := &database.Record{
		SessionID:  sessionID,
		PersonID:   personID,
		Status:     status,
		RecordedAt: at,
	}
	m.denormalize(r)
	m.put(r)
	cp := *r
	return &cp, nil
}

func (m *MockRecordStore) Upsert(ctx context.Context, sessionID, personID string, status database.RecordStatus, at time.Time) (*database.Record, error) {
	if m.UpsertError != nil {
		return nil, m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &database.Record{
		SessionID:  sessionID,
		PersonID:   personID,
		Status:     status,
		RecordedAt: at,
	}
	m.denormalize(r)
	m.put(r)
	cp := *r
	return &cp, nil
}

func (m *MockRecordStore) ListForSession(ctx context.Context, sessionID string) ([]database.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Record, 0, len(m.records[sessionID]))
	for _, r := range m.records[sessionID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (m *MockRecordStore) ListForPerson(ctx context.Context, personID string, from, to *time.Time) ([]database.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Record
	for _, perPerson := range m.records {
		r, ok := perPerson[personID]
		if !ok {
			continue
		}
		if from != nil && r.RecordedAt.Before(*from) {
			continue
		}
		if to != nil && !r.RecordedAt.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// Interface compliance checks
var _ database.PersonStore = (*MockPersonStore)(nil)
var _ database.ClassStore = (*MockClassStore)(nil)
var _ database.SessionStore = (*MockSessionStore)(nil)
var _ database.RecordStore = (*MockRecordStore)(nil)
