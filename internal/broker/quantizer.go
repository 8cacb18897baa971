// Package broker converts notional position sizes into broker-legal lot
// counts. Quantization rounds down only, so a quantized order never risks more
// than the size the Kelly budget produced.
package broker

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors name the violated constraint so pre-flight checks can
// report exactly what the broker would reject.
var (
	ErrLotBelowMin   = errors.New("lot below volume_min")
	ErrLotAboveMax   = errors.New("lot above volume_max")
	ErrLotMisstepped = errors.New("lot not aligned to volume_step")
)

// LotQuantizer quantizes sizes against one symbol's constraints. Arithmetic is
// integer fixed-point scaled by the step's decimal exponent, so results carry
// no float drift and no locale-dependent string formatting.
type LotQuantizer struct {
	info  SymbolInfo
	scale float64 // 10^decimals of the step
	stepU int64   // step in fixed-point units
	minU  int64
	maxU  int64 // 0 means unbounded
}

// NewLotQuantizer builds a quantizer for a symbol's constraints.
func NewLotQuantizer(info SymbolInfo) *LotQuantizer {
	decimals := stepDecimals(info.VolumeStep)
	scale := math.Pow10(decimals)

	return &LotQuantizer{
		info:  info,
		scale: scale,
		stepU: int64(math.Round(info.VolumeStep * scale)),
		minU:  int64(math.Round(info.VolumeMin * scale)),
		maxU:  int64(math.Round(info.VolumeMax * scale)),
	}
}

// Info returns the symbol constraints this quantizer enforces.
func (q *LotQuantizer) Info() SymbolInfo {
	return q.info
}

// RawLots converts a notional unit size into an unquantized lot count.
func (q *LotQuantizer) RawLots(notionalUnits float64) float64 {
	if q.info.ContractSize <= 0 || notionalUnits <= 0 {
		return 0
	}
	return notionalUnits / q.info.ContractSize
}

// Normalize floors a raw lot count to the step grid and applies the min/max
// bounds. The result is 0 or a step-aligned value in [volume_min, volume_max].
func (q *LotQuantizer) Normalize(rawLots float64) float64 {
	if math.IsNaN(rawLots) || math.IsInf(rawLots, 0) || rawLots <= 0 || q.stepU <= 0 {
		return 0
	}

	// Small epsilon counters binary representation error before flooring;
	// 0.29*100 is 28.999999999999996 and must floor to 29 steps, not 28.
	rawU := int64(math.Floor(rawLots*q.scale + 1e-9))
	normU := (rawU / q.stepU) * q.stepU

	if normU < q.minU {
		return 0
	}
	if q.maxU > 0 && normU > q.maxU {
		normU = (q.maxU / q.stepU) * q.stepU
	}

	return float64(normU) / q.scale
}

// Quantize is the full path from notional units to a broker-legal lot count.
func (q *LotQuantizer) Quantize(notionalUnits float64) float64 {
	return q.Normalize(q.RawLots(notionalUnits))
}

// Validate pre-flights a lot count against the constraints. Violations are
// reported, never silently corrected.
func (q *LotQuantizer) Validate(lots float64) error {
	if math.IsNaN(lots) || math.IsInf(lots, 0) {
		return fmt.Errorf("%w: %v", ErrLotMisstepped, lots)
	}

	lotsU := int64(math.Round(lots * q.scale))
	if math.Abs(float64(lotsU)/q.scale-lots) > 1e-9 || (q.stepU > 0 && lotsU%q.stepU != 0) {
		return fmt.Errorf("%w: %.8f with step %.8f", ErrLotMisstepped, lots, q.info.VolumeStep)
	}
	if lotsU < q.minU {
		return fmt.Errorf("%w: %.8f < %.8f", ErrLotBelowMin, lots, q.info.VolumeMin)
	}
	if q.maxU > 0 && lotsU > q.maxU {
		return fmt.Errorf("%w: %.8f > %.8f", ErrLotAboveMax, lots, q.info.VolumeMax)
	}
	return nil
}

// stepDecimals derives the decimal exponent of a step size, capped at 8 places.
func stepDecimals(step float64) int {
	for d := 0; d <= 8; d++ {
		scaled := step * math.Pow10(d)
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			return d
		}
	}
	return 8
}
