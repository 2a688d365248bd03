package assist

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomyDistinct(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("pipeline: %w", &TransportError{Status: 503, Body: "upstream down"})

	var transport *TransportError
	if !errors.As(wrapped, &transport) {
		t.Fatal("TransportError not extractable through wrapping")
	}
	if transport.Status != 503 {
		t.Errorf("Status = %d, want 503", transport.Status)
	}

	var decoding *DecodingError
	if errors.As(wrapped, &decoding) {
		t.Error("TransportError matched as DecodingError")
	}
	var limited *RateLimited
	if errors.As(wrapped, &limited) {
		t.Error("TransportError matched as RateLimited")
	}
	var config *ConfigurationError
	if errors.As(wrapped, &config) {
		t.Error("TransportError matched as ConfigurationError")
	}
}

func TestDecodingErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("unexpected end of JSON input")
	err := &DecodingError{Stage: "payload", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("DecodingError does not unwrap to its cause")
	}
}

func TestPricing_Cost(t *testing.T) {
	t.Parallel()

	p := Pricing{InputPerMillionUSD: 2.5, OutputPerMillionUSD: 10}

	tests := []struct {
		prompt, completion int
		want               float64
	}{
		{0, 0, 0},
		{1_000_000, 0, 2.5},
		{0, 1_000_000, 10},
		{500_000, 250_000, 1.25 + 2.5},
	}

	for _, tt := range tests {
		got := p.Cost(tt.prompt, tt.completion)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Cost(%d, %d) = %v, want %v", tt.prompt, tt.completion, got, tt.want)
		}
	}
}
