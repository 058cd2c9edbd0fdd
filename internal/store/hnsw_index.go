package store

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attend/internal/facematch"
)

// HNSW index parameters for face encoding shortlisting.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16
	// ShortlistMultiplier requests extra candidates from the index so the
	// exact scorer still sees every encoding of each shortlisted person.
	ShortlistMultiplier = 3
)

// EncodingIndex is an in-memory HNSW index over enrollment encodings. With
// a large enrolled population it shortlists candidate persons for a probe
// before exact scoring; the scorer then compares only those persons'
// reference vectors. The index is approximate and advisory only; exact
// scores always come from the scorer.
type EncodingIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	distance hnsw.DistanceFunc
	idPerson map[int64]string
}

// NewEncodingIndex creates an empty encoding index searching with the
// distance matching the configured metric, so the shortlist ranking agrees
// with the exact scorer even for unnormalized embeddings.
func NewEncodingIndex(metric facematch.Metric) *EncodingIndex {
	distance := hnsw.CosineDistance
	if metric == facematch.MetricEuclidean {
		distance = hnsw.EuclideanDistance
	}
	return &EncodingIndex{distance: distance, idPerson: make(map[int64]string)}
}

func (x *EncodingIndex) newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = x.distance
	return g
}

// Build replaces the index contents with the given encodings.
func (x *EncodingIndex) Build(encodings []StoredEncoding) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(encodings) == 0 {
		x.graph = nil
		x.idPerson = make(map[int64]string)
		return
	}

	g := x.newGraph()
	x.idPerson = make(map[int64]string, len(encodings))
	for i := range encodings {
		enc := &encodings[i]
		if len(enc.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(enc.ID, enc.Embedding))
		x.idPerson[enc.ID] = enc.PersonID
	}
	x.graph = g
}

// Add inserts a single encoding without a full rebuild.
func (x *EncodingIndex) Add(enc StoredEncoding) {
	if len(enc.Embedding) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		x.graph = x.newGraph()
	}
	x.graph.Add(hnsw.MakeNode(enc.ID, enc.Embedding))
	x.idPerson[enc.ID] = enc.PersonID
}

// Remove drops a single encoding from the index. HNSW doesn't support true
// deletion; removing the map entry hides the node from search results since
// ShortlistPersons filters by lookup.
func (x *EncodingIndex) Remove(encodingID int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.idPerson, encodingID)
}

// Count returns the number of indexed encodings.
func (x *EncodingIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.idPerson)
}

// ShortlistPersons returns up to limit distinct person IDs whose encodings
// are nearest to the probe, in index order.
func (x *EncodingIndex) ShortlistPersons(probe []float32, limit int) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, errors.New("index not initialized")
	}

	neighbors := x.graph.Search(probe, limit*ShortlistMultiplier)

	seen := make(map[string]struct{}, limit)
	persons := make([]string, 0, limit)
	for _, n := range neighbors {
		personID, ok := x.idPerson[n.Key]
		if !ok {
			continue
		}
		if _, dup := seen[personID]; dup {
			continue
		}
		seen[personID] = struct{}{}
		persons = append(persons, personID)
		if len(persons) >= limit {
			break
		}
	}
	return persons, nil
}
