package orchestrator

import (
	"time"

	"tradecore/internal/fusion"
)

// Decision is one sized, quantized trade decision for a symbol. Lots is
// broker-legal; a decision is only emitted when the full pipeline (fusion,
// risk gate, sizing, quantization) produced a placeable order.
type Decision struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	Signal        fusion.Direction `json:"signal"`
	Confidence    float64          `json:"confidence"`
	Price         float64          `json:"price"`
	NotionalUnits float64          `json:"notional_units"`
	Lots          float64          `json:"lots"`
	Reasoning     string           `json:"reasoning"`
	CreatedAt     time.Time        `json:"created_at"`
}

// DecisionHandler receives emitted decisions. Handlers run on the symbol's
// goroutine and should hand off quickly.
type DecisionHandler func(Decision)
