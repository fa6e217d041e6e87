package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"desap-backend/internal/inference"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, image_key, predictions, status, verdict, submitter_id, submitter_name, submitter_email, created_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, image_key, predictions, status, verdict, submitter_id, submitter_name, submitter_email, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	predictions, err := json.Marshal(analysis.Predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.ImageKey,
		predictions,
		analysis.Status,
		analysis.Verdict,
		analysis.CreatedBy.ID,
		analysis.CreatedBy.UserName,
		analysis.CreatedBy.Email,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
}

// List returns all analyses, newest first.
func (r *PGRepo) List(ctx context.Context) ([]Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status and returns the updated analysis.
func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID, status string) (Analysis, error) {
	query := `UPDATE analyses SET status = $2 WHERE id = $1 RETURNING ` + analysisColumns
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, status))
}

// UpdateVerdict sets the verdict and returns the updated analysis.
func (r *PGRepo) UpdateVerdict(ctx context.Context, analysisID, verdict string) (Analysis, error) {
	query := `UPDATE analyses SET verdict = $2 WHERE id = $1 RETURNING ` + analysisColumns
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, verdict))
}

// Delete removes an analysis. Absent IDs report ErrNotFound.
func (r *PGRepo) Delete(ctx context.Context, analysisID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, analysisID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var predictions []byte
	err := row.Scan(
		&a.ID,
		&a.ImageKey,
		&predictions,
		&a.Status,
		&a.Verdict,
		&a.CreatedBy.ID,
		&a.CreatedBy.UserName,
		&a.CreatedBy.Email,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if len(predictions) > 0 {
		var pred inference.Prediction
		if err := json.Unmarshal(predictions, &pred); err != nil {
			return Analysis{}, fmt.Errorf("unmarshal predictions: %w", err)
		}
		a.Predictions = pred
	}
	return a, nil
}

var _ Repo = (*PGRepo)(nil)
