package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/database"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxImageUploadBytes caps multipart image uploads.
const maxImageUploadBytes = 16 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps known storage and recognition errors to
// response codes. Every handler funnels its errors through here so one
// error always means one status.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrPersonNotFound),
		errors.Is(err, database.ErrClassNotFound),
		errors.Is(err, database.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrDuplicateCode),
		errors.Is(err, database.ErrAlreadyLogged),
		errors.Is(err, database.ErrSessionNotOngoing):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, attendance.ErrNoFaceFound),
		errors.Is(err, attendance.ErrAmbiguousImage),
		errors.Is(err, attendance.ErrNoEnrolledFaces):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// readImageUpload extracts the image bytes from a request. Multipart
// uploads carry the file in the "image" field; JSON bodies carry it as
// a base64 "image" string, which is what camera frontends post frame
// by frame.
func readImageUpload(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return readImagePayload(r)
	}
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		return nil, errors.New("failed to parse multipart form")
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("missing image file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes))
	if err != nil {
		return nil, errors.New("failed to read image file")
	}
	return data, nil
}

// readImagePayload decodes a base64 image frame from a JSON body. A
// data URL prefix (data:image/jpeg;base64,) is tolerated and stripped.
func readImagePayload(r *http.Request) ([]byte, error) {
	var payload struct {
		Image string `json:"image"`
	}
	body := http.MaxBytesReader(nil, r.Body, maxImageUploadBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, errors.New(errInvalidRequestBody)
	}
	encoded := payload.Image
	if _, rest, found := strings.Cut(encoded, ";base64,"); found {
		encoded = rest
	}
	if encoded == "" {
		return nil, errors.New("missing image data")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
