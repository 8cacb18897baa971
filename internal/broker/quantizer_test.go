package broker

import (
	"errors"
	"math"
	"testing"
)

func fxSymbol() SymbolInfo {
	return SymbolInfo{
		Symbol:       "EURUSD",
		ContractSize: 100000,
		VolumeMin:    0.01,
		VolumeMax:    100,
		VolumeStep:   0.01,
	}
}

// 10500 notional units against a 100k contract is 0.105 raw lots, floored to 0.10.
func TestQuantize_ReferenceScenario(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())
	got := q.Quantize(10500)
	if got != 0.10 {
		t.Errorf("expected 0.10 lots, got %v", got)
	}
}

func TestNormalize_FloorsOnly(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())

	tests := []struct {
		raw  float64
		want float64
	}{
		{0.019, 0.01},
		{0.0199999, 0.01},
		{0.29, 0.29}, // exact step multiple despite binary representation
		{0.105, 0.10},
		{1.999, 1.99},
		{0.009, 0}, // below min
		{150, 100}, // clipped to max
		{0, 0},
		{-3, 0},
	}

	for _, tt := range tests {
		if got := q.Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize_NeverExceedsInput(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())
	for raw := 0.005; raw < 5; raw += 0.0137 {
		got := q.Normalize(raw)
		if got > raw+1e-9 {
			t.Fatalf("Normalize(%v) = %v rounded up", raw, got)
		}
		if got != 0 && (got < 0.01 || got > 100) {
			t.Fatalf("Normalize(%v) = %v outside [min, max]", raw, got)
		}
		// Step alignment: scaled by the step exponent it must be integral.
		if math.Abs(got*100-math.Round(got*100)) > 1e-6 {
			t.Fatalf("Normalize(%v) = %v not step aligned", raw, got)
		}
	}
}

func TestNormalize_CoarseStep(t *testing.T) {
	q := NewLotQuantizer(SymbolInfo{
		Symbol:       "XAUUSD",
		ContractSize: 100,
		VolumeMin:    1,
		VolumeMax:    0, // unbounded
		VolumeStep:   0.5,
	})

	tests := []struct {
		raw  float64
		want float64
	}{
		{1.49, 1.0},
		{1.5, 1.5},
		{2.74, 2.5},
		{0.9, 0},
		{100000, 100000},
	}
	for _, tt := range tests {
		if got := q.Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())
	for _, raw := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := q.Normalize(raw); got != 0 {
			t.Errorf("Normalize(%v) = %v, want 0", raw, got)
		}
	}
}

func TestValidate(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())

	tests := []struct {
		name    string
		lots    float64
		wantErr error
	}{
		{"valid", 0.10, nil},
		{"valid at min", 0.01, nil},
		{"valid at max", 100, nil},
		{"below min", 0.001, ErrLotBelowMin},
		{"above max", 100.01, ErrLotAboveMax},
		{"misaligned", 0.015, ErrLotMisstepped},
		{"nan", math.NaN(), ErrLotMisstepped},
	}

	for _, tt := range tests {
		err := q.Validate(tt.lots)
		if tt.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestRawLots(t *testing.T) {
	q := NewLotQuantizer(fxSymbol())
	if got := q.RawLots(10500); math.Abs(got-0.105) > 1e-12 {
		t.Errorf("RawLots(10500) = %v, want 0.105", got)
	}
	if got := q.RawLots(-5); got != 0 {
		t.Errorf("RawLots(-5) = %v, want 0", got)
	}

	zero := NewLotQuantizer(SymbolInfo{Symbol: "BAD", ContractSize: 0, VolumeStep: 0.01})
	if got := zero.RawLots(1000); got != 0 {
		t.Errorf("RawLots with zero contract size = %v, want 0", got)
	}
}
