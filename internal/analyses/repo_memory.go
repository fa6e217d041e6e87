package analyses

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis)}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// List returns all analyses, newest first.
func (r *MemoryRepo) List(ctx context.Context) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Analysis, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateStatus sets the status on an existing analysis.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, analysisID, status string) (Analysis, error) {
	return r.update(ctx, analysisID, func(a *Analysis) { a.Status = status })
}

// UpdateVerdict sets the verdict on an existing analysis.
func (r *MemoryRepo) UpdateVerdict(ctx context.Context, analysisID, verdict string) (Analysis, error) {
	return r.update(ctx, analysisID, func(a *Analysis) { a.Verdict = verdict })
}

func (r *MemoryRepo) update(ctx context.Context, analysisID string, apply func(*Analysis)) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	apply(&analysis)
	r.byID[analysisID] = analysis
	return analysis, nil
}

// Delete removes an analysis. Absent IDs report ErrNotFound.
func (r *MemoryRepo) Delete(ctx context.Context, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[analysisID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, analysisID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
