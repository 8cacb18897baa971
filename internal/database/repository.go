package database

import (
	"context"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveDecision inserts an emitted decision
func (r *Repository) SaveDecision(ctx context.Context, d *DecisionRecord) error {
	query := `
		INSERT INTO decisions (id, symbol, signal, confidence, price, notional_units, lots, reasoning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		d.ID, d.Symbol, d.Signal, d.Confidence, d.Price, d.NotionalUnits, d.Lots, d.Reasoning, d.CreatedAt,
	)
	return err
}

// GetRecentDecisions retrieves the latest decisions for a symbol, newest first
func (r *Repository) GetRecentDecisions(ctx context.Context, symbol string, limit int) ([]*DecisionRecord, error) {
	query := `
		SELECT id, symbol, signal, confidence, price, notional_units, lots, reasoning, created_at
		FROM decisions
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*DecisionRecord
	for rows.Next() {
		d := &DecisionRecord{}
		if err := rows.Scan(
			&d.ID, &d.Symbol, &d.Signal, &d.Confidence, &d.Price,
			&d.NotionalUnits, &d.Lots, &d.Reasoning, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// SaveMetricsSnapshot inserts an aggregate metrics snapshot
func (r *Repository) SaveMetricsSnapshot(ctx context.Context, s *MetricsSnapshotRecord) error {
	query := `
		INSERT INTO metrics_snapshots (total_trades, total_pnl, total_exposure, symbols)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		s.TotalTrades, s.TotalPnL, s.TotalExposure, s.Symbols,
	).Scan(&s.ID, &s.CreatedAt)
}

// SaveRiskEvent inserts a risk gate breach or breaker transition
func (r *Repository) SaveRiskEvent(ctx context.Context, e *RiskEventRecord) error {
	query := `
		INSERT INTO risk_events (event_type, symbol, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(ctx, query, e.EventType, e.Symbol, e.Reason).Scan(&e.ID, &e.CreatedAt)
}

// GetRecentRiskEvents retrieves the latest risk events, newest first
func (r *Repository) GetRecentRiskEvents(ctx context.Context, limit int) ([]*RiskEventRecord, error) {
	query := `
		SELECT id, event_type, COALESCE(symbol, ''), COALESCE(reason, ''), created_at
		FROM risk_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RiskEventRecord
	for rows.Next() {
		e := &RiskEventRecord{}
		if err := rows.Scan(&e.ID, &e.EventType, &e.Symbol, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
