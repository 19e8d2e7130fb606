package entity

import "time"

// Writeup is the stored, queryable unit produced by enrichment. Its Id is the
// owning task's ctftime id, so storage is idempotent: re-running enrichment
// overwrites the same row instead of duplicating it.
type Writeup struct {
	Id            string // ctftime id, also the summary-corpus vector id
	SourceURL     string
	EventName     string
	TaskName      string
	FullText      string
	RewrittenText string
	Summary       string
	Keywords      []string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Title renders the citation title for this write-up.
func (w *Writeup) Title() string {
	if w.EventName == "" {
		return w.TaskName
	}
	return w.EventName + " - " + w.TaskName
}
