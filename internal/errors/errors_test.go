package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("set location: %w", NewValidationError("location_type", "無效的地點類型"))

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("validation error should match ErrInvalidInput")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Detail != "無效的地點類型" {
		t.Errorf("errors.As = %v, detail %q", ve != nil, ve.Detail)
	}
	if got := ve.Error(); got != "invalid location_type: 無效的地點類型" {
		t.Errorf("Error() = %q", got)
	}
}

func TestUpstreamError(t *testing.T) {
	refused := errors.New("connection refused")
	network := NewUpstreamError("line-verify", 0, refused)
	rejected := NewUpstreamError("line-verify", 400, errors.New("invalid_request"))

	tests := []struct {
		name        string
		err         *UpstreamError
		unavailable bool
		msg         string
	}{
		{"transport failure", network, true, "line-verify unreachable: connection refused"},
		{"http rejection", rejected, false, "line-verify returned 400: invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, ErrUpstreamUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(ErrUpstreamUnavailable) = %v, want %v", got, tt.unavailable)
			}
			if got := tt.err.Error(); got != tt.msg {
				t.Errorf("Error() = %q, want %q", got, tt.msg)
			}
		})
	}
	if !errors.Is(network, refused) {
		t.Error("cause should stay reachable through Unwrap")
	}
}
