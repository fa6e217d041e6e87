package analyses

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInferenceFailed    = errors.New("inference failed")
	ErrAnnotationFailed   = errors.New("annotation failed")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidVerdict     = errors.New("invalid verdict")
)
