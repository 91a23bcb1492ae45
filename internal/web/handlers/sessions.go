package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/database"
)

// SessionsHandler drives the attendance session lifecycle and the
// recognition endpoint.
type SessionsHandler struct {
	sessions database.SessionStore
	service  *attendance.Service
}

func NewSessionsHandler(sessions database.SessionStore, service *attendance.Service) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, service: service}
}

type sessionView struct {
	ID        string                 `json:"id"`
	ClassID   string                 `json:"class_id"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Status    database.SessionStatus `json:"status"`
}

func toSessionView(s *database.Session) sessionView {
	return sessionView{
		ID:        s.ID,
		ClassID:   s.ClassID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    s.Status,
	}
}

func toSessionViews(sessions []database.Session) []sessionView {
	views := make([]sessionView, len(sessions))
	for i := range sessions {
		views[i] = toSessionView(&sessions[i])
	}
	return views
}

type recordView struct {
	SessionID  string                `json:"session_id"`
	PersonID   string                `json:"person_id"`
	PersonCode string                `json:"person_code"`
	PersonName string                `json:"person_name"`
	Status     database.RecordStatus `json:"status"`
	RecordedAt time.Time             `json:"recorded_at"`
}

func toRecordView(r *database.Record) recordView {
	return recordView{
		SessionID:  r.SessionID,
		PersonID:   r.PersonID,
		PersonCode: r.PersonCode,
		PersonName: r.PersonName,
		Status:     r.Status,
		RecordedAt: r.RecordedAt,
	}
}

func toRecordViews(records []database.Record) []recordView {
	views := make([]recordView, len(records))
	for i := range records {
		views[i] = toRecordView(&records[i])
	}
	return views
}

type startSessionRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// Start opens a new ongoing session for the class. Without a duration
// the configured default applies.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	session, err := h.service.StartSession(r.Context(), chi.URLParam(r, "id"),
		time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSessionView(session))
}

// ListForClass returns the class's sessions, newest first.
func (h *SessionsHandler) ListForClass(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListForClass(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionViews(sessions))
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionView(session))
}

// End completes the session and sweeps absent records for everyone on
// the roster without one.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	absents, err := h.service.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "completed",
		"absents_created": absents,
	})
}

// Recognize runs the recognition pipeline on an uploaded frame. A frame
// that matches nobody new is not an error: the response carries a reason
// instead of a record.
func (h *SessionsHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	imageData, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.RecognizeForSession(r.Context(), chi.URLParam(r, "id"), imageData)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"recognized": true,
			"record":     toRecordView(record),
		})
	case errors.Is(err, attendance.ErrNoMatch):
		respondJSON(w, http.StatusOK, map[string]any{
			"recognized": false,
			"reason":     "no_match",
		})
	case errors.Is(err, attendance.ErrAllAlreadyLogged):
		respondJSON(w, http.StatusOK, map[string]any{
			"recognized": false,
			"reason":     "already_logged",
		})
	default:
		respondDomainError(w, err)
	}
}

// Records lists the session's attendance records, newest first.
func (h *SessionsHandler) Records(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListSessionRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRecordViews(records))
}

type setStatusRequest struct {
	Status database.RecordStatus `json:"status"`
}

// SetStatus manually creates or replaces one person's record. Works on
// completed sessions for post-hoc corrections.
func (h *SessionsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "status must be present, late or absent")
		return
	}

	record, err := h.service.ManualSetStatus(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "personId"), req.Status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRecordView(record))
}

type reportEntryView struct {
	PersonID   string                `json:"person_id"`
	Code       string                `json:"code"`
	FullName   string                `json:"full_name"`
	Status     database.RecordStatus `json:"status,omitempty"`
	RecordedAt time.Time             `json:"recorded_at,omitzero"`
}

type sessionReportView struct {
	Session sessionView                   `json:"session"`
	Entries []reportEntryView             `json:"entries"`
	Counts  map[database.RecordStatus]int `json:"counts"`
}

// Report returns the per-member view of a session with status counts.
func (h *SessionsHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	view := sessionReportView{
		Session: toSessionView(&report.Session),
		Entries: make([]reportEntryView, len(report.Entries)),
		Counts:  report.Counts,
	}
	for i, e := range report.Entries {
		view.Entries[i] = reportEntryView{
			PersonID:   e.PersonID,
			Code:       e.Code,
			FullName:   e.FullName,
			Status:     e.Status,
			RecordedAt: e.RecordedAt,
		}
	}
	respondJSON(w, http.StatusOK, view)
}
