package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/config"
	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/database/mock"
	"github.com/ngxtan/rollcall/internal/detector"
)

// stubDetector returns canned faces for handler tests.
type stubDetector struct {
	faces []detector.Face
	err   error
}

func (s *stubDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.faces, nil
}

// testEnv wires mocks, a stub detector and the attendance service for
// handler tests.
type testEnv struct {
	persons  *mock.MockPersonStore
	classes  *mock.MockClassStore
	sessions *mock.MockSessionStore
	records  *mock.MockRecordStore
	detector *stubDetector
	service  *attendance.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	persons := mock.NewMockPersonStore()
	classes := mock.NewMockClassStore(persons)
	records := mock.NewMockRecordStore(persons)
	sessions := mock.NewMockSessionStore(classes, records)
	det := &stubDetector{}

	policy := config.PolicyConfig{
		Recognition: config.RecognitionPolicy{Tolerance: 0.5},
		Session:     config.SessionPolicy{DefaultDurationMinutes: 45},
	}

	return &testEnv{
		persons:  persons,
		classes:  classes,
		sessions: sessions,
		records:  records,
		detector: det,
		service:  attendance.NewService(persons, classes, sessions, records, det, policy),
	}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// imageRequest creates a multipart request with an "image" part. The
// detector is stubbed in tests, so the bytes need not be a real image.
func imageRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeJSON unmarshals a recorded response body.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// seedSession creates an enrolled student, a class with the student on
// the roster, and an ongoing session.
func seedSession(t *testing.T, env *testEnv, personID, classID, sessionID string, embedding []float32) {
	t.Helper()
	ctx := context.Background()

	env.persons.AddPerson(database.Person{
		ID:        personID,
		Code:      "s-" + personID,
		FullName:  "Student " + personID,
		Role:      database.RoleStudent,
		Embedding: embedding,
	})
	if err := env.classes.Create(ctx, &database.Class{ID: classID, Name: "Class " + classID}); err != nil {
		t.Fatalf("creating class: %v", err)
	}
	if err := env.classes.AddMember(ctx, classID, personID); err != nil {
		t.Fatalf("adding member: %v", err)
	}

	now := time.Now()
	err := env.sessions.Create(ctx, &database.Session{
		ID:        sessionID,
		ClassID:   classID,
		StartTime: now,
		EndTime:   now.Add(45 * time.Minute),
		Status:    database.SessionOngoing,
	})
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
}
