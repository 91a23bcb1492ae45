package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// PersonIndex is an in-memory HNSW graph over person embeddings, used by
// the identify path to answer "who is this face" across everyone enrolled.
// The per-session matcher does not use it: roster matching stays a linear
// scan so its tie-break order is deterministic.
type PersonIndex struct {
	graph      *hnsw.Graph[string]
	idToPerson map[string]*Person
	mu         sync.RWMutex
}

// NewPersonIndex creates an empty index.
func NewPersonIndex() *PersonIndex {
	return &PersonIndex{
		idToPerson: make(map[string]*Person),
	}
}

// Build replaces the index contents with the given persons. Persons
// without an embedding are skipped.
func (x *PersonIndex) Build(persons []Person) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.idToPerson = make(map[string]*Person, len(persons))
	if len(persons) == 0 {
		x.graph = nil
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i := range persons {
		p := &persons[i]
		if !p.Enrolled() {
			continue
		}
		g.Add(hnsw.MakeNode(p.ID, p.Embedding))
		x.idToPerson[p.ID] = p
	}

	x.graph = g
	return nil
}

// Upsert adds or replaces one person in the index.
func (x *PersonIndex) Upsert(p *Person) {
	if !p.Enrolled() {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		x.graph = hnsw.NewGraph[string]()
		x.graph.M = HNSWMaxNeighbors
		x.graph.Ml = 1.0 / float64(HNSWMaxNeighbors)
		x.graph.Distance = hnsw.EuclideanDistance
	}

	x.graph.Add(hnsw.MakeNode(p.ID, p.Embedding))
	x.idToPerson[p.ID] = p
}

// Delete removes a person from search results. The graph node stays
// behind (HNSW has no true deletion); lookups filter through idToPerson.
func (x *PersonIndex) Delete(personID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.idToPerson, personID)
}

// Search returns up to k nearest persons and their Euclidean distances.
func (x *PersonIndex) Search(probe []float32, k int) ([]Person, []float64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, nil, errors.New("person index not built")
	}

	neighbors := x.graph.Search(probe, k)

	persons := make([]Person, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		p, ok := x.idToPerson[n.Key]
		if !ok {
			continue
		}
		persons = append(persons, *p)
		distances = append(distances, EuclideanDistance(probe, n.Value))
	}

	return persons, distances, nil
}

// Count returns the number of searchable persons.
func (x *PersonIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.idToPerson)
}
