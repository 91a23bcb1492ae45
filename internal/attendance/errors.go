package attendance

import "errors"

// Recognition and enrollment error taxonomy. All of these are recoverable
// at the call site; the web layer translates them into response codes.
var (
	// ErrNoFaceFound means the detector saw no face in the submitted image.
	ErrNoFaceFound = errors.New("no face found in image")

	// ErrAmbiguousImage means the detector saw more than one face in an
	// enrollment image. Guards against silently enrolling the wrong face.
	ErrAmbiguousImage = errors.New("more than one face found in image")

	// ErrNoEnrolledFaces means the session's roster has no members with a
	// stored embedding, so there is nothing to match against.
	ErrNoEnrolledFaces = errors.New("no enrolled faces in roster")

	// ErrNoMatch means no probe face matched a roster member within
	// tolerance.
	ErrNoMatch = errors.New("no face matched a roster member")

	// ErrAllAlreadyLogged means every recognized face belongs to a person
	// who already has a record for this session.
	ErrAllAlreadyLogged = errors.New("all recognized persons already logged")
)
