package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/detector"
)

func TestCreatePerson(t *testing.T) {
	env := newTestEnv(t)
	handler := NewPersonsHandler(env.persons, env.service)

	req := jsonRequest(t, http.MethodPost, "/api/v1/persons", createPersonRequest{
		Code:     "s001",
		FullName: "Nguyễn Văn A",
		Password: "secret",
	})
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var view personView
	decodeJSON(t, rec, &view)
	if view.Role != database.RoleStudent {
		t.Errorf("role = %s, want student default", view.Role)
	}
	if view.Enrolled {
		t.Error("new person should not be enrolled")
	}

	t.Run("duplicate code conflicts", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/persons", createPersonRequest{
			Code:     "s001",
			FullName: "Someone Else",
		})
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/persons", createPersonRequest{Code: "s002"})
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestEnrollHandler(t *testing.T) {
	env := newTestEnv(t)
	env.persons.AddPerson(database.Person{ID: "p1", Code: "s001", FullName: "Student One"})
	handler := NewPersonsHandler(env.persons, env.service)

	enroll := func(t *testing.T, personID string) *httptest.ResponseRecorder {
		t.Helper()
		req := imageRequest(t, http.MethodPost, "/api/v1/persons/"+personID+"/enroll")
		req = requestWithChiParams(req, map[string]string{"id": personID})
		rec := httptest.NewRecorder()
		handler.Enroll(rec, req)
		return rec
	}

	t.Run("single face enrolls", func(t *testing.T) {
		env.detector.faces = []detector.Face{{Embedding: []float32{0.1, 0.2}}}

		rec := enroll(t, "p1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var view personView
		decodeJSON(t, rec, &view)
		if !view.Enrolled {
			t.Error("expected person to be enrolled")
		}
	})

	t.Run("no face is unprocessable", func(t *testing.T) {
		env.detector.faces = nil
		if rec := enroll(t, "p1"); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("two faces are unprocessable", func(t *testing.T) {
		env.detector.faces = []detector.Face{
			{Embedding: []float32{0.1}},
			{Embedding: []float32{0.2}},
		}
		if rec := enroll(t, "p1"); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("unknown person", func(t *testing.T) {
		env.detector.faces = []detector.Face{{Embedding: []float32{0.1}}}
		if rec := enroll(t, "ghost"); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestIdentifyHandler(t *testing.T) {
	env := newTestEnv(t)
	env.persons.AddPerson(database.Person{ID: "p1", Code: "s001", FullName: "One", Embedding: []float32{0, 0}})
	env.persons.AddPerson(database.Person{ID: "p2", Code: "s002", FullName: "Two", Embedding: []float32{5, 5}})
	env.detector.faces = []detector.Face{{Embedding: []float32{0.2, 0.2}}}
	handler := NewPersonsHandler(env.persons, env.service)

	req := imageRequest(t, http.MethodPost, "/api/v1/persons/identify")
	rec := httptest.NewRecorder()
	handler.Identify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var matches []struct {
		Person   personView `json:"person"`
		Distance float64    `json:"distance"`
	}
	decodeJSON(t, rec, &matches)
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Person.ID != "p1" {
		t.Errorf("nearest = %s, want p1", matches[0].Person.ID)
	}
}

func TestListPersonsByName(t *testing.T) {
	env := newTestEnv(t)
	env.persons.AddPerson(database.Person{ID: "p1", Code: "s001", FullName: "Nguyễn Văn A"})
	env.persons.AddPerson(database.Person{ID: "p2", Code: "s002", FullName: "Trần Thị B"})
	handler := NewPersonsHandler(env.persons, env.service)

	// Diacritics-free query still finds the accented name.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/persons?name=nguyen", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var views []personView
	decodeJSON(t, rec, &views)
	if len(views) != 1 || views[0].ID != "p1" {
		t.Errorf("search returned %v, want just p1", views)
	}
}
