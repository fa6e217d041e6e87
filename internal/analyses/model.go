package analyses

import (
	"time"

	"desap-backend/internal/inference"
)

// Status of the council review, forward-only.
const (
	StatusPending = "PENDING"
	StatusChecked = "CHECKED"
)

// Verdict of the larvae-infection determination, independent of status.
const (
	VerdictUnset    = "UNSET"
	VerdictPositive = "POSITIVE"
	VerdictNegative = "NEGATIVE"
)

// Submitter identifies the community health worker who sent the image.
type Submitter struct {
	ID       string `json:"-"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

// Analysis is one submitted breeding-site image together with its detection
// results and review state. Predictions are a historical snapshot: only
// Status and Verdict change after creation.
type Analysis struct {
	ID          string               `json:"id"`
	ImageKey    string               `json:"imageKey"`
	Predictions inference.Prediction `json:"predictions"`
	Status      string               `json:"status"`
	Verdict     string               `json:"verdict"`
	CreatedBy   Submitter            `json:"createdBy"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// LarvaeCount returns the number of detections in the stored snapshot.
func (a Analysis) LarvaeCount() int {
	return len(a.Predictions.Detections)
}
