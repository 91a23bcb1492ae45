package database

import "errors"

// Storage-level error taxonomy. Callers branch with errors.Is; the web
// layer maps these to status codes in one place.
var (
	// ErrPersonNotFound indicates a referential lookup failure on persons.
	ErrPersonNotFound = errors.New("person not found")

	// ErrClassNotFound indicates a referential lookup failure on classes.
	ErrClassNotFound = errors.New("class not found")

	// ErrSessionNotFound indicates a referential lookup failure on sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotOngoing is returned when an operation requires an
	// ongoing session but the session is already completed.
	ErrSessionNotOngoing = errors.New("session is not ongoing")

	// ErrAlreadyLogged is returned when a (session, person) record already
	// exists. Expected, not exceptional, for repeated frames of an
	// already-logged person. Storage unique-constraint violations are
	// re-expressed as this error, never leaked raw.
	ErrAlreadyLogged = errors.New("attendance already logged for this person")

	// ErrDuplicateCode is returned when creating a person with a code that
	// is already registered.
	ErrDuplicateCode = errors.New("person code already registered")
)
