package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "PIPELINE_STAGE_CHANGED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewPipelineStageEvent reports that a source item reached a stage (including
// the rejected and failed branches). Consumers use it for run monitoring.
func NewPipelineStageEvent(runId, sourceKey, stage string) Event {
	return BaseEvent{
		Type: "PIPELINE_STAGE_CHANGED",
		Data: map[string]interface{}{
			"run_id":     runId,
			"source_key": sourceKey,
			"stage":      stage,
		},
		OccurredAt: time.Now(),
	}
}

// NewWriteupIndexedEvent reports that a write-up's vectors landed in both
// corpora.
func NewWriteupIndexedEvent(writeupId, mode string) Event {
	return BaseEvent{
		Type: "WRITEUP_INDEXED",
		Data: map[string]interface{}{
			"writeup_id": writeupId,
			"mode":       mode,
		},
		OccurredAt: time.Now(),
	}
}
