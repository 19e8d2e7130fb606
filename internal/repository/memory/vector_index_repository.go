package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"writeup-rag-be/internal/repository/contract"
)

// VectorIndexRepository is a brute-force cosine-distance corpus. It backs
// tests and local runs without pgvector; semantics (upsert modes, ranking,
// tie-breaking) match the postgres implementation.
type VectorIndexRepository struct {
	mu      sync.RWMutex
	records map[string]contract.EmbeddingRecord
}

func NewVectorIndexRepository() *VectorIndexRepository {
	return &VectorIndexRepository{
		records: make(map[string]contract.EmbeddingRecord),
	}
}

func (r *VectorIndexRepository) Upsert(_ context.Context, records []contract.EmbeddingRecord, mode contract.UpdateMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == contract.ModeOverwrite {
		r.records = make(map[string]contract.EmbeddingRecord, len(records))
	}
	for _, rec := range records {
		r.records[rec.Id] = rec
	}
	return nil
}

func (r *VectorIndexRepository) Search(_ context.Context, vector []float32, k int) ([]contract.Hit, error) {
	if k <= 0 {
		k = 5
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits := make([]contract.Hit, 0, len(r.records))
	for id, rec := range r.records {
		hits = append(hits, contract.Hit{Id: id, Distance: cosineDistance(vector, rec.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Id < hits[j].Id
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Ids returns all identifiers currently in the corpus (test helper).
func (r *VectorIndexRepository) Ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
