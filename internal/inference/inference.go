package inference

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts the remote larvae detection service.
type Client interface {
	// Detect runs object detection on the image and returns the validated
	// prediction payload. Failure is fatal to the ingestion attempt.
	Detect(ctx context.Context, image []byte, contentType string) (Prediction, error)
	// Annotate renders previously computed detections onto the image and
	// returns the annotated bytes. Failure is recoverable.
	Annotate(ctx context.Context, image []byte, contentType string, pred Prediction) ([]byte, error)
}

// ErrMalformedResponse indicates the detection service returned a payload
// that does not satisfy the prediction schema.
var ErrMalformedResponse = errors.New("malformed detection response")

// Dimensions describes the analyzed image size in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is a single bounding box returned by the detection service.
// Boxes are centre-anchored, matching the service's wire format.
type Detection struct {
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
	Confidence  float64 `json:"confidence"`
	DetectionID string  `json:"detection_id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// Prediction is the detection service's response payload. It is written once
// at ingestion and never mutated afterwards.
type Prediction struct {
	Image      Dimensions  `json:"image"`
	Detections []Detection `json:"predictions"`
	Time       float64     `json:"time"`
}

// Validate rejects payloads that are structurally unusable: missing image
// dimensions, confidences outside [0,1], or degenerate boxes.
func (p Prediction) Validate() error {
	if p.Image.Width <= 0 || p.Image.Height <= 0 {
		return fmt.Errorf("%w: missing image dimensions", ErrMalformedResponse)
	}
	for i, d := range p.Detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("%w: detection %d confidence %v out of range", ErrMalformedResponse, i, d.Confidence)
		}
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("%w: detection %d has empty bounding box", ErrMalformedResponse, i)
		}
	}
	return nil
}
