package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/database"
)

// PersonsHandler manages the person directory and enrollment.
type PersonsHandler struct {
	persons database.PersonStore
	service *attendance.Service
}

func NewPersonsHandler(persons database.PersonStore, service *attendance.Service) *PersonsHandler {
	return &PersonsHandler{persons: persons, service: service}
}

// personView is the wire shape of a person. Embeddings and password
// hashes never leave the server.
type personView struct {
	ID        string        `json:"id"`
	Code      string        `json:"code"`
	FullName  string        `json:"full_name"`
	Role      database.Role `json:"role"`
	Enrolled  bool          `json:"enrolled"`
	CreatedAt time.Time     `json:"created_at"`
}

func toPersonView(p *database.Person) personView {
	return personView{
		ID:        p.ID,
		Code:      p.Code,
		FullName:  p.FullName,
		Role:      p.Role,
		Enrolled:  p.Enrolled(),
		CreatedAt: p.CreatedAt,
	}
}

type createPersonRequest struct {
	Code     string        `json:"code"`
	FullName string        `json:"full_name"`
	Role     database.Role `json:"role"`
	Password string        `json:"password"`
}

// Create registers a new person. Enrollment happens separately through
// the enroll endpoint.
func (h *PersonsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Code == "" || req.FullName == "" {
		respondError(w, http.StatusBadRequest, "code and full_name are required")
		return
	}
	if req.Role == "" {
		req.Role = database.RoleStudent
	}

	person := &database.Person{
		ID:       uuid.New().String(),
		Code:     req.Code,
		FullName: req.FullName,
		Role:     req.Role,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		person.PasswordHash = string(hash)
	}

	if err := h.persons.Create(r.Context(), person); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPersonView(person))
}

// List returns all persons, or those matching the name query.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	var persons []database.Person
	var err error
	if name := r.URL.Query().Get("name"); name != "" {
		persons, err = h.persons.SearchByName(r.Context(), name)
	} else {
		persons, err = h.persons.List(r.Context())
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]personView, len(persons))
	for i := range persons {
		views[i] = toPersonView(&persons[i])
	}
	respondJSON(w, http.StatusOK, views)
}

// Get returns one person by ID.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	person, err := h.persons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPersonView(person))
}

// Enroll stores the person's face embedding from an uploaded image. The
// image must contain exactly one face; re-enrolling overwrites.
func (h *PersonsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	imageData, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	person, err := h.service.Enroll(r.Context(), chi.URLParam(r, "id"), imageData)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPersonView(person))
}

// Records returns the person's attendance history, optionally bounded by
// from/to dates (YYYY-MM-DD, end day inclusive).
func (h *PersonsHandler) Records(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.service.ListPersonRecords(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRecordViews(records))
}

// Identify finds the closest enrolled persons for a single face across
// the whole directory.
func (h *PersonsHandler) Identify(w http.ResponseWriter, r *http.Request) {
	imageData, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.service.Identify(r.Context(), imageData, 5)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	type matchView struct {
		Person   personView `json:"person"`
		Distance float64    `json:"distance"`
	}
	views := make([]matchView, len(matches))
	for i, m := range matches {
		views[i] = matchView{Person: toPersonView(&m.Person), Distance: m.Distance}
	}
	respondJSON(w, http.StatusOK, views)
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
