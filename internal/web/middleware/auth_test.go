package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ngxtan/rollcall/internal/database"
)

func testPerson() *database.Person {
	return &database.Person{
		ID:   "p1",
		Code: "t001",
		Role: database.RoleTeacher,
	}
}

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)

	signed, err := tokens.Issue(testPerson())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.PersonID() != "p1" {
		t.Errorf("person ID = %s, want p1", claims.PersonID())
	}
	if claims.Role != database.RoleTeacher {
		t.Errorf("role = %s, want teacher", claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokenManager("secret-a", time.Hour).Issue(testPerson())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewTokenManager("secret-b", time.Hour).Verify(signed); err == nil {
		t.Error("expected verification to fail with a different secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokenManager("test-secret", -time.Minute)

	signed, err := tokens.Issue(testPerson())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tokens.Verify(signed); err == nil {
		t.Error("expected verification to fail for expired token")
	}
}

func TestRequireAuth(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	signed, err := tokens.Issue(testPerson())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.PersonID() != "p1" {
			t.Error("claims missing from request context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + signed, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(database.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		role       database.Role
		wantStatus int
	}{
		{"admin allowed", database.RoleAdmin, http.StatusOK},
		{"teacher denied", database.RoleTeacher, http.StatusForbidden},
		{"student denied", database.RoleStudent, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(SetClaimsInContext(req.Context(), &Claims{Role: tt.role}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
