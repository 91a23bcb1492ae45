package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/detector"
)

func TestRecognize(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "p1", "c1", "sess1", []float32{0, 0})
	handler := NewSessionsHandler(env.sessions, env.service)

	recognize := func(t *testing.T) *httptest.ResponseRecorder {
		t.Helper()
		req := imageRequest(t, http.MethodPost, "/api/v1/sessions/sess1/recognize")
		req = requestWithChiParams(req, map[string]string{"id": "sess1"})
		rec := httptest.NewRecorder()
		handler.Recognize(rec, req)
		return rec
	}

	t.Run("logs a match", func(t *testing.T) {
		env.detector.faces = []detector.Face{{Embedding: []float32{0.1, 0.1}}}

		rec := recognize(t)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Recognized bool       `json:"recognized"`
			Record     recordView `json:"record"`
		}
		decodeJSON(t, rec, &resp)
		if !resp.Recognized {
			t.Fatal("expected a recognition")
		}
		if resp.Record.PersonID != "p1" {
			t.Errorf("person = %s, want p1", resp.Record.PersonID)
		}
		if resp.Record.Status != database.StatusPresent {
			t.Errorf("status = %s, want present", resp.Record.Status)
		}
	})

	t.Run("second sighting reports already logged", func(t *testing.T) {
		env.detector.faces = []detector.Face{{Embedding: []float32{0, 0}}}

		rec := recognize(t)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Recognized bool   `json:"recognized"`
			Reason     string `json:"reason"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Recognized || resp.Reason != "already_logged" {
			t.Errorf("response = %+v, want already_logged", resp)
		}
	})

	t.Run("stranger reports no match", func(t *testing.T) {
		env.detector.faces = []detector.Face{{Embedding: []float32{50, 50}}}

		rec := recognize(t)
		var resp struct {
			Recognized bool   `json:"recognized"`
			Reason     string `json:"reason"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Recognized || resp.Reason != "no_match" {
			t.Errorf("response = %+v, want no_match", resp)
		}
	})

	t.Run("rejected after session ends", func(t *testing.T) {
		req := requestWithChiParams(
			httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess1/end", nil),
			map[string]string{"id": "sess1"},
		)
		rec := httptest.NewRecorder()
		handler.End(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("end status = %d, body %s", rec.Code, rec.Body.String())
		}

		env.detector.faces = []detector.Face{{Embedding: []float32{0, 0}}}
		if rec := recognize(t); rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409 for completed session", rec.Code)
		}
	})
}

func TestRecognizeBase64Frame(t *testing.T) {
	frame := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))

	tests := []struct {
		name       string
		image      string
		wantStatus int
	}{
		{"plain base64", frame, http.StatusOK},
		{"data url prefix", "data:image/jpeg;base64," + frame, http.StatusOK},
		{"empty image", "", http.StatusBadRequest},
		{"not base64", "%%%not-base64%%%", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seedSession(t, env, "p1", "c1", "sess1", []float32{0, 0})
			env.detector.faces = []detector.Face{{Embedding: []float32{0, 0}}}
			handler := NewSessionsHandler(env.sessions, env.service)

			req := jsonRequest(t, http.MethodPost, "/api/v1/sessions/sess1/recognize",
				map[string]string{"image": tt.image})
			req = requestWithChiParams(req, map[string]string{"id": "sess1"})
			rec := httptest.NewRecorder()
			handler.Recognize(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				Recognized bool       `json:"recognized"`
				Record     recordView `json:"record"`
			}
			decodeJSON(t, rec, &resp)
			if !resp.Recognized || resp.Record.PersonID != "p1" {
				t.Errorf("response = %+v, want p1 recognized", resp)
			}
		})
	}
}

func TestEndSweepReportsAbsents(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "p1", "c1", "sess1", []float32{0, 0})
	handler := NewSessionsHandler(env.sessions, env.service)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess1/end", nil),
		map[string]string{"id": "sess1"},
	)
	rec := httptest.NewRecorder()
	handler.End(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status         string `json:"status"`
		AbsentsCreated int    `json:"absents_created"`
	}
	decodeJSON(t, rec, &resp)
	if resp.AbsentsCreated != 1 {
		t.Errorf("absents_created = %d, want 1", resp.AbsentsCreated)
	}
}

func TestEndUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	handler := NewSessionsHandler(env.sessions, env.service)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ghost/end", nil),
		map[string]string{"id": "ghost"},
	)
	rec := httptest.NewRecorder()
	handler.End(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "p1", "c1", "sess1", nil)
	handler := NewSessionsHandler(env.sessions, env.service)

	t.Run("valid override", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPut, "/api/v1/sessions/sess1/records/p1",
			setStatusRequest{Status: database.StatusLate})
		req = requestWithChiParams(req, map[string]string{"id": "sess1", "personId": "p1"})
		rec := httptest.NewRecorder()
		handler.SetStatus(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp recordView
		decodeJSON(t, rec, &resp)
		if resp.Status != database.StatusLate {
			t.Errorf("record status = %s, want late", resp.Status)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPut, "/api/v1/sessions/sess1/records/p1",
			map[string]string{"status": "vanished"})
		req = requestWithChiParams(req, map[string]string{"id": "sess1", "personId": "p1"})
		rec := httptest.NewRecorder()
		handler.SetStatus(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "p1", "c1", "sess1", nil)
	handler := NewSessionsHandler(env.sessions, env.service)

	req := jsonRequest(t, http.MethodPost, "/api/v1/classes/c1/sessions",
		startSessionRequest{DurationMinutes: 30})
	req = requestWithChiParams(req, map[string]string{"id": "c1"})
	rec := httptest.NewRecorder()
	handler.Start(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var session sessionView
	decodeJSON(t, rec, &session)
	if session.Status != database.SessionOngoing {
		t.Errorf("status = %s, want ongoing", session.Status)
	}
	if session.ClassID != "c1" {
		t.Errorf("class_id = %s, want c1", session.ClassID)
	}
	if got := session.EndTime.Sub(session.StartTime); got.Minutes() != 30 {
		t.Errorf("duration = %v, want 30m", got)
	}

	// The session travels in snake_case like every other payload.
	var keys map[string]json.RawMessage
	decodeJSON(t, rec, &keys)
	for _, key := range []string{"id", "class_id", "start_time", "end_time", "status"} {
		if _, ok := keys[key]; !ok {
			t.Errorf("response missing %q key, body %s", key, rec.Body.String())
		}
	}
}

func TestReport(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "p1", "c1", "sess1", []float32{0, 0})
	handler := NewSessionsHandler(env.sessions, env.service)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess1/report", nil),
		map[string]string{"id": "sess1"},
	)
	rec := httptest.NewRecorder()
	handler.Report(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report sessionReportView
	decodeJSON(t, rec, &report)
	if len(report.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(report.Entries))
	}
	if report.Session.ID != "sess1" {
		t.Errorf("session id = %s, want sess1", report.Session.ID)
	}

	var keys map[string]json.RawMessage
	decodeJSON(t, rec, &keys)
	for _, key := range []string{"session", "entries", "counts"} {
		if _, ok := keys[key]; !ok {
			t.Errorf("response missing %q key, body %s", key, rec.Body.String())
		}
	}
}
