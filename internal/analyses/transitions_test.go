package analyses

import (
	"errors"
	"testing"
)

func TestParseStatusTokens(t *testing.T) {
	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{token: "CHECKED", want: StatusChecked},
		{token: "checked", want: StatusChecked},
		{token: " pending ", want: StatusPending},
		{token: "done", wantErr: true},
		{token: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.token)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Fatalf("ParseStatus(%q): expected ErrInvalidStatus, got %v", tt.token, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", tt.token, err)
		}
		if got != tt.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestParseVerdictTokens(t *testing.T) {
	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{token: "positive", want: VerdictPositive},
		{token: "NEGATIVE", want: VerdictNegative},
		{token: "unset", wantErr: true},
		{token: "maybe", wantErr: true},
		{token: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseVerdict(tt.token)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidVerdict) {
				t.Fatalf("ParseVerdict(%q): expected ErrInvalidVerdict, got %v", tt.token, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseVerdict(%q): %v", tt.token, err)
		}
		if got != tt.want {
			t.Fatalf("ParseVerdict(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestNextStatusForwardOnly(t *testing.T) {
	got, err := NextStatus(StatusPending, StatusChecked)
	if err != nil || got != StatusChecked {
		t.Fatalf("pending->checked: got %q, %v", got, err)
	}

	// Redundant calls are tolerated.
	got, err = NextStatus(StatusChecked, StatusChecked)
	if err != nil || got != StatusChecked {
		t.Fatalf("checked->checked: got %q, %v", got, err)
	}
	got, err = NextStatus(StatusPending, StatusPending)
	if err != nil || got != StatusPending {
		t.Fatalf("pending->pending: got %q, %v", got, err)
	}

	// Never backwards.
	if _, err := NextStatus(StatusChecked, StatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("checked->pending: expected ErrInvalidStatus, got %v", err)
	}
}
