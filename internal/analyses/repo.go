package analyses

import "context"

// Repo defines persistence operations for analyses. All writes are
// last-writer-wins; no version token is modeled.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	List(ctx context.Context) ([]Analysis, error)
	UpdateStatus(ctx context.Context, analysisID, status string) (Analysis, error)
	UpdateVerdict(ctx context.Context, analysisID, verdict string) (Analysis, error)
	Delete(ctx context.Context, analysisID string) error
}
