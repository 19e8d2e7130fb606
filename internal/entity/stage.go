package entity

// Stage is the processing state of a SourceItem inside a pipeline run.
// Progression is linear and monotonic:
//
//	discovered -> fetched -> cleaned -> enriched -> stored
//
// with two terminal failure branches: rejected_low_quality (content below the
// configured quality threshold) and failed (adapter retries exhausted).
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageFetched    Stage = "fetched"
	StageCleaned    Stage = "cleaned"
	StageEnriched   Stage = "enriched"
	StageStored     Stage = "stored"

	// Terminal failure branches. Not destructive: the item stays in the
	// manifest and can be retried in a later run by resetting its stage.
	StageRejected Stage = "rejected_low_quality"
	StageFailed   Stage = "failed"
)

// successor maps each stage to the single stage that immediately follows it
// on the happy path.
var successor = map[Stage]Stage{
	StageDiscovered: StageFetched,
	StageFetched:    StageCleaned,
	StageCleaned:    StageEnriched,
	StageEnriched:   StageStored,
}

// Next returns the stage that immediately follows s, or "" if s has no
// forward transition (stored, rejected, failed).
func (s Stage) Next() Stage {
	return successor[s]
}

// CanAdvanceTo reports whether next immediately follows s. Advancing is only
// ever allowed one step at a time; skipping stages is an InvalidTransition.
func (s Stage) CanAdvanceTo(next Stage) bool {
	return successor[s] == next
}

// Terminal reports whether no further transitions are allowed this run.
func (s Stage) Terminal() bool {
	return s == StageStored || s == StageRejected || s == StageFailed
}

// AtLeast reports whether s is at or past the given happy-path stage.
// Used by the stage runner to skip work an earlier run already completed.
func (s Stage) AtLeast(other Stage) bool {
	return stageOrder[s] >= stageOrder[other]
}

var stageOrder = map[Stage]int{
	StageDiscovered: 0,
	StageFetched:    1,
	StageCleaned:    2,
	StageEnriched:   3,
	StageStored:     4,
	// Failure branches never satisfy AtLeast for happy-path stages beyond
	// the one they branched from.
	StageRejected: -1,
	StageFailed:   -1,
}
