package entity

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactRefs carries the file references a stage produced. Paths are
// relative to the run directory so a manifest stays valid when the run
// folder is moved.
type ArtifactRefs struct {
	RawPath   string
	CleanPath string
}

// SourceItem is a unique fetchable location (usually a URL) grouping one or
// more Tasks. The aggregate is explicit: a SourceItem owns its Tasks, which
// makes the many-to-one fan-out invariant checkable instead of implied by
// map co-location.
type SourceItem struct {
	Id        uuid.UUID
	RunId     string
	SourceKey string
	Stage     Stage
	Tasks     []*Task

	RawPath      string
	CleanPath    string
	ErrorReason  string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// TaskIds returns the stable external identifiers of all owned tasks.
func (s *SourceItem) TaskIds() []string {
	ids := make([]string, len(s.Tasks))
	for i, t := range s.Tasks {
		ids[i] = t.CtftimeId
	}
	return ids
}
