// Package facematch matches probe face embeddings against a candidate set.
package facematch

import (
	"errors"

	"github.com/ngxtan/rollcall/internal/database"
)

// ErrEmptyCandidateSet is returned when there are no candidate embeddings
// to compare against. Reported, not fatal: callers degrade to "no
// recognitions".
var ErrEmptyCandidateSet = errors.New("no candidate embeddings to match against")

// Candidate is one known face eligible for matching. Candidates are an
// ordered list; their index is the deterministic tie-break.
type Candidate struct {
	PersonID  string
	Embedding []float32
}

// Result is a successful match.
type Result struct {
	PersonID string
	Index    int
	Distance float64
}

// Match compares probe against every candidate using Euclidean distance.
// Candidates are first filtered to those within tolerance; the minimum is
// taken only within that set, with ties resolved by lowest candidate
// index. Returns nil when no candidate is within tolerance.
func Match(probe []float32, candidates []Candidate, tolerance float64) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	var best *Result
	for i := range candidates {
		d := database.EuclideanDistance(probe, candidates[i].Embedding)
		if d > tolerance {
			continue
		}
		// Strict less keeps the earliest candidate on ties.
		if best == nil || d < best.Distance {
			best = &Result{
				PersonID: candidates[i].PersonID,
				Index:    i,
				Distance: d,
			}
		}
	}

	return best, nil
}
