package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ngxtan/rollcall/internal/database"
)

// ClassesHandler manages classes and their rosters.
type ClassesHandler struct {
	classes database.ClassStore
}

func NewClassesHandler(classes database.ClassStore) *ClassesHandler {
	return &ClassesHandler{classes: classes}
}

type classView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacher_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

func toClassView(c *database.Class) classView {
	return classView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		TeacherID:   c.TeacherID,
		CreatedAt:   c.CreatedAt,
	}
}

type classRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TeacherID   string `json:"teacher_id"`
}

func (h *ClassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	class := &database.Class{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   req.TeacherID,
	}
	if err := h.classes.Create(r.Context(), class); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toClassView(class))
}

func (h *ClassesHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classes.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]classView, len(classes))
	for i := range classes {
		views[i] = toClassView(&classes[i])
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *ClassesHandler) Get(w http.ResponseWriter, r *http.Request) {
	class, err := h.classes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toClassView(class))
}

func (h *ClassesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	class := &database.Class{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   req.TeacherID,
	}
	if err := h.classes.Update(r.Context(), class); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toClassView(class))
}

func (h *ClassesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.classes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type memberRequest struct {
	PersonID string `json:"person_id"`
}

func (h *ClassesHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.PersonID == "" {
		respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}

	if err := h.classes.AddMember(r.Context(), chi.URLParam(r, "id"), req.PersonID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *ClassesHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.classes.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "personId"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Roster lists the class members in join order with their enrollment
// state.
func (h *ClassesHandler) Roster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.classes.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	type memberView struct {
		PersonID string    `json:"person_id"`
		Code     string    `json:"code"`
		FullName string    `json:"full_name"`
		Enrolled bool      `json:"enrolled"`
		JoinedAt time.Time `json:"joined_at"`
	}
	views := make([]memberView, len(roster))
	for i, m := range roster {
		views[i] = memberView{
			PersonID: m.PersonID,
			Code:     m.Code,
			FullName: m.FullName,
			Enrolled: len(m.Embedding) > 0,
			JoinedAt: m.JoinedAt,
		}
	}
	respondJSON(w, http.StatusOK, views)
}
