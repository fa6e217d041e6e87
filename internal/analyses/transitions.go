package analyses

import (
	"fmt"
	"strings"
)

// ParseStatus maps a boundary token to a status value.
func ParseStatus(token string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case StatusPending:
		return StatusPending, nil
	case StatusChecked:
		return StatusChecked, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, token)
	}
}

// ParseVerdict maps a boundary token ("positive"/"negative") to a verdict value.
func ParseVerdict(token string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "positive":
		return VerdictPositive, nil
	case "negative":
		return VerdictNegative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVerdict, token)
	}
}

// NextStatus applies the review transition rule. The status axis is
// forward-only: PENDING may move to CHECKED, repeating a transition is a
// no-op, and CHECKED never returns to PENDING.
func NextStatus(current, requested string) (string, error) {
	if current == requested {
		return current, nil
	}
	if current == StatusChecked && requested == StatusPending {
		return "", fmt.Errorf("%w: checked analyses cannot return to pending", ErrInvalidStatus)
	}
	return requested, nil
}
