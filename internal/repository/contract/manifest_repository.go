package contract

import (
	"context"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/repository/specification"
)

// StageUpdate describes one manifest transition. From is the expected current
// stage: the implementation must apply the update as a compare-and-swap so a
// concurrent writer that already moved the row causes entity.ErrDuplicateKey
// instead of a lost update.
type StageUpdate struct {
	From      entity.Stage
	To        entity.Stage
	Artifacts entity.ArtifactRefs
	Reason    string
}

type ManifestRepository interface {
	CreateBulk(ctx context.Context, items []*entity.SourceItem) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SourceItem, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceItem, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// AdvanceStage persists one transition for the (runId, sourceKey) row.
	// Returns entity.ErrSourceNotFound if the row does not exist and
	// entity.ErrDuplicateKey if the row's stage no longer equals upd.From.
	AdvanceStage(ctx context.Context, runId, sourceKey string, upd StageUpdate) error
}
