package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/web/middleware"
)

// AuthHandler issues access tokens against stored credentials.
type AuthHandler struct {
	persons database.PersonStore
	tokens  *middleware.TokenManager
}

func NewAuthHandler(persons database.PersonStore, tokens *middleware.TokenManager) *AuthHandler {
	return &AuthHandler{persons: persons, tokens: tokens}
}

type loginRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string        `json:"token"`
	PersonID string        `json:"person_id"`
	FullName string        `json:"full_name"`
	Role     database.Role `json:"role"`
}

// Login checks the person's code and password and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Code == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "code and password are required")
		return
	}

	person, err := h.persons.GetByCode(r.Context(), req.Code)
	if err != nil {
		// Same response for unknown code and wrong password.
		if errors.Is(err, database.ErrPersonNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondDomainError(w, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(person.PasswordHash), []byte(req.Password)) != nil {
		log.Printf("failed login attempt for code %s", sanitizeForLog(req.Code))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(person)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		PersonID: person.ID,
		FullName: person.FullName,
		Role:     person.Role,
	})
}
