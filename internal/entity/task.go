package entity

import (
	"time"

	"github.com/google/uuid"
)

// Task is one logical write-up discovered at a SourceItem. Several tasks may
// share one source location (a single page covering multiple challenges);
// fetching and cleaning run once per location, enrichment once per task.
type Task struct {
	Id           uuid.UUID
	CtftimeId    string // stable external id, decimal, never contains '_'
	EventName    string
	TaskName     string
	SourceURL    string // full URL including fragment, as discovered
	SourceItemId uuid.UUID
	CreatedAt    time.Time
}
