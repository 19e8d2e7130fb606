package grouper

import (
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"writeup-rag-be/internal/entity"
)

// SourceKey normalizes a write-up URL into the manifest key for its source
// location. Different tasks frequently point at the same document with only
// the fragment differing, so the fragment is dropped; everything else is kept
// verbatim so distinct documents never collapse.
func SourceKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Group buckets tasks by their normalized source key and returns one
// SourceItem per key, each owning every task that referenced it. A task with
// an empty source URL is skipped: there is nothing to fetch for it.
//
// The result is ordered by source key so repeated runs over the same
// discovery output register items in the same order.
func Group(tasks []*entity.Task) []*entity.SourceItem {
	byKey := make(map[string]*entity.SourceItem)
	for _, task := range tasks {
		if strings.TrimSpace(task.SourceURL) == "" {
			continue
		}
		if task.Id == uuid.Nil {
			task.Id = uuid.New()
		}
		key := SourceKey(task.SourceURL)
		item, ok := byKey[key]
		if !ok {
			item = &entity.SourceItem{
				Id:        uuid.New(),
				SourceKey: key,
				Stage:     entity.StageDiscovered,
			}
			byKey[key] = item
		}
		task.SourceItemId = item.Id
		item.Tasks = append(item.Tasks, task)
	}

	items := make([]*entity.SourceItem, 0, len(byKey))
	for _, item := range byKey {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SourceKey < items[j].SourceKey
	})
	return items
}
