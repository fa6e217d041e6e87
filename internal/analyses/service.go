package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"desap-backend/internal/inference"
	"desap-backend/internal/shared/metrics"
	"desap-backend/internal/shared/storage/object"
	"desap-backend/internal/shared/telemetry"
)

// Renderer produces an annotated image from raw bytes and stored predictions.
type Renderer interface {
	Render(ctx context.Context, image []byte, pred inference.Prediction) ([]byte, error)
}

// Service contains the ingestion and review pipeline for analyses.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Inference inference.Client
	Renderer  Renderer
}

// Submit runs the ingestion pipeline: store the image, run detection, persist
// the record. The operation is all-or-nothing from the caller's perspective:
// a failure at any step leaves no record behind. An image stored before a
// failed detection is an accepted orphan; it is logged, not reaped.
func (s *Service) Submit(ctx context.Context, image []byte, fileName string, submitter Submitter) (Analysis, error) {
	if len(image) == 0 {
		return Analysis{}, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if submitter.ID == "" {
		return Analysis{}, fmt.Errorf("%w: submitter is required", ErrInvalidInput)
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "image.jpeg"
	}

	metrics.IncSubmissionStarted()

	imageKey, _, mimeType, err := s.Store.Save(ctx, submitter.ID, fileName, bytes.NewReader(image))
	if err != nil {
		metrics.IncSubmissionFailed()
		if errors.Is(err, object.ErrUnavailable) || ctx.Err() != nil {
			return Analysis{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	started := time.Now()
	pred, err := s.Inference.Detect(ctx, image, mimeType)
	metrics.ObserveInferenceDurationMs(float64(time.Since(started).Microseconds()) / 1000.0)
	if err != nil {
		metrics.IncSubmissionFailed()
		telemetry.Error("analysis.detect_failed", map[string]any{
			"image_key":    imageKey,
			"submitter_id": submitter.ID,
			"error":        err.Error(),
		})
		return Analysis{}, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	analysis := Analysis{
		ID:          uuid.NewString(),
		ImageKey:    imageKey,
		Predictions: pred,
		Status:      StatusPending,
		Verdict:     VerdictUnset,
		CreatedBy:   submitter,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		metrics.IncSubmissionFailed()
		s.releaseImage(imageKey)
		return Analysis{}, err
	}

	metrics.IncSubmissionCompleted()
	telemetry.Info("analysis.submitted", map[string]any{
		"analysis_id":  analysis.ID,
		"image_key":    imageKey,
		"submitter_id": submitter.ID,
		"larvae_count": analysis.LarvaeCount(),
		"detect_time":  pred.Time,
	})
	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, fmt.Errorf("%w: analysisID is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns all analyses ordered newest-first.
func (s *Service) List(ctx context.Context) ([]Analysis, error) {
	return s.Repo.List(ctx)
}

// MarkStatus applies a status transition. Redundant transitions are no-ops;
// the status axis never moves backwards.
func (s *Service) MarkStatus(ctx context.Context, analysisID, token string) (Analysis, error) {
	status, err := ParseStatus(token)
	if err != nil {
		return Analysis{}, err
	}

	current, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}

	next, err := NextStatus(current.Status, status)
	if err != nil {
		return Analysis{}, err
	}
	if next == current.Status {
		return current, nil
	}

	updated, err := s.Repo.UpdateStatus(ctx, analysisID, next)
	if err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.status", map[string]any{
		"analysis_id":       analysisID,
		"status":            next,
		"status_transition": current.Status + "->" + next,
	})
	return updated, nil
}

// SetVerdict records the infection verdict. Verdict changes never touch the
// status axis.
func (s *Service) SetVerdict(ctx context.Context, analysisID, token string) (Analysis, error) {
	verdict, err := ParseVerdict(token)
	if err != nil {
		return Analysis{}, err
	}

	updated, err := s.Repo.UpdateVerdict(ctx, analysisID, verdict)
	if err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.verdict", map[string]any{
		"analysis_id": analysisID,
		"verdict":     verdict,
	})
	return updated, nil
}

// Delete removes the record and releases its backing image best-effort.
func (s *Service) Delete(ctx context.Context, analysisID string) error {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, analysisID); err != nil {
		return err
	}
	s.releaseImage(analysis.ImageKey)
	telemetry.Info("analysis.deleted", map[string]any{
		"analysis_id": analysisID,
		"image_key":   analysis.ImageKey,
	})
	return nil
}

// Annotated fetches the stored image and renders the stored predictions over
// it. Detection is never re-run here; a render failure leaves the record
// untouched.
func (s *Service) Annotated(ctx context.Context, analysisID string) ([]byte, error) {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	body, err := s.Store.Open(ctx, analysis.ImageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	annotated, err := s.Renderer.Render(ctx, raw, analysis.Predictions)
	if err != nil {
		metrics.IncAnnotationFailed()
		return nil, fmt.Errorf("%w: %v", ErrAnnotationFailed, err)
	}
	return annotated, nil
}

// releaseImage deletes a stored object best-effort. Failures are logged and
// swallowed; a leaked object is preferable to failing the caller.
func (s *Service) releaseImage(imageKey string) {
	if imageKey == "" {
		return
	}
	if err := s.Store.Delete(context.Background(), imageKey); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Error("analysis.image_release_failed", map[string]any{
			"image_key": imageKey,
			"error":     err.Error(),
		})
	}
}
