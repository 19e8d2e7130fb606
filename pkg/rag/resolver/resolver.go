package resolver

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/pkg/chunker"
)

// ResolvedDocument is a write-up together with its best retrieval distance
// across both corpora and its final rank.
type ResolvedDocument struct {
	Writeup  *entity.Writeup
	Distance float64
	Rank     int
}

// Resolver maps raw index hits back to whole write-ups. Summary hits carry
// document ids directly; detailed hits carry chunk ids that are parsed back
// to their parent. When both corpora surface the same document, its best
// (lowest) distance wins, so a strong chunk match is never diluted by a
// mediocre summary match.
type Resolver struct {
	writeups contract.WriteupRepository
	cache    *gocache.Cache
	logger   *log.Logger
}

func New(writeups contract.WriteupRepository, logger *log.Logger) *Resolver {
	return &Resolver{
		writeups: writeups,
		cache:    gocache.New(10*time.Minute, 15*time.Minute),
		logger:   logger,
	}
}

// Resolve merges hits from the summary and detailed corpora into a ranked,
// deduplicated list of write-ups. Hits whose document no longer exists are
// logged and dropped; a stale index entry must not fail the whole question.
func (r *Resolver) Resolve(ctx context.Context, summaryHits, detailedHits []contract.Hit) ([]ResolvedDocument, error) {
	best := make(map[string]float64)

	record := func(docId string, distance float64) {
		if current, ok := best[docId]; !ok || distance < current {
			best[docId] = distance
		}
	}

	for _, hit := range summaryHits {
		record(hit.Id, hit.Distance)
	}
	for _, hit := range detailedHits {
		parentId, _, err := chunker.ParseId(hit.Id)
		if err != nil {
			r.logger.Printf("dropping detailed hit with malformed chunk id %q: %v", hit.Id, err)
			continue
		}
		record(parentId, hit.Distance)
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] < best[ids[j]]
		}
		return ids[i] < ids[j]
	})

	docs, err := r.fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve documents: %w", err)
	}

	resolved := make([]ResolvedDocument, 0, len(ids))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			r.logger.Printf("index hit %s has no stored writeup, dropping", id)
			continue
		}
		resolved = append(resolved, ResolvedDocument{
			Writeup:  doc,
			Distance: best[id],
			Rank:     len(resolved) + 1,
		})
	}
	return resolved, nil
}

// fetch loads write-ups by id, serving repeat questions from cache.
func (r *Resolver) fetch(ctx context.Context, ids []string) (map[string]*entity.Writeup, error) {
	docs := make(map[string]*entity.Writeup, len(ids))
	var missing []string
	for _, id := range ids {
		if cached, ok := r.cache.Get(id); ok {
			docs[id] = cached.(*entity.Writeup)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return docs, nil
	}

	fetched, err := r.writeups.FetchMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, doc := range fetched {
		docs[doc.Id] = doc
		r.cache.Set(doc.Id, doc, gocache.DefaultExpiration)
	}
	return docs, nil
}
