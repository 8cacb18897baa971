package database

import "time"

// DecisionRecord is a persisted trade decision
type DecisionRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Signal        string    `json:"signal"`
	Confidence    float64   `json:"confidence"`
	Price         float64   `json:"price"`
	NotionalUnits float64   `json:"notional_units"`
	Lots          float64   `json:"lots"`
	Reasoning     string    `json:"reasoning"`
	CreatedAt     time.Time `json:"created_at"`
}

// MetricsSnapshotRecord is a persisted aggregate metrics snapshot
type MetricsSnapshotRecord struct {
	ID            int64     `json:"id"`
	TotalTrades   int       `json:"total_trades"`
	TotalPnL      float64   `json:"total_pnl"`
	TotalExposure float64   `json:"total_exposure"`
	Symbols       []byte    `json:"symbols"` // JSON per-symbol breakdown
	CreatedAt     time.Time `json:"created_at"`
}

// Risk event types
const (
	RiskEventBreach         = "RISK_BREACH"
	RiskEventBreakerTripped = "BREAKER_TRIPPED"
	RiskEventBreakerReset   = "BREAKER_RESET"
)

// RiskEventRecord is a persisted risk gate breach or breaker transition
type RiskEventRecord struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
