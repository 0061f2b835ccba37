package trust

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// EventLog is a durable outcome-event log, an alternative backend to the
// in-memory rolling window for deployments that want an audit trail or
// need to survive process restarts (spec §4.6 explicitly allows swapping
// the store; grounded on the same swap-the-backend posture as
// pkg/moat/idempotency and pkg/moat/capcache).
type EventLog interface {
	Insert(ctx context.Context, event *contracts.OutcomeEvent) error
	Since(ctx context.Context, capabilityID string, cutoff time.Time) ([]*contracts.OutcomeEvent, error)
}

// SQLEventLog persists outcome events to a SQL database via database/sql,
// compatible with either github.com/lib/pq (Postgres) or
// modernc.org/sqlite, since both speak database/sql and this store issues
// no driver-specific placeholder syntax beyond '?' (sqlite's native form;
// pass a Postgres *sql.DB opened through a rebinding layer if '$n'
// placeholders are required).
type SQLEventLog struct {
	db *sql.DB
}

// NewSQLEventLog wraps an already-opened *sql.DB. The caller owns the
// connection lifecycle (sql.Open("sqlite", ...) or sql.Open("postgres",
// ...)).
func NewSQLEventLog(db *sql.DB) *SQLEventLog {
	return &SQLEventLog{db: db}
}

// CreateTable issues the event log's DDL. Safe to call repeatedly.
func (s *SQLEventLog) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS moat_outcome_events (
	event_id      TEXT PRIMARY KEY,
	capability_id TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	receipt_id    TEXT NOT NULL,
	success       INTEGER NOT NULL,
	latency_ms    REAL NOT NULL,
	error_taxonomy TEXT,
	occurred_at   TIMESTAMP NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("trust: create event log table: %w", err)
	}
	return nil
}

// Insert appends one outcome event.
func (s *SQLEventLog) Insert(ctx context.Context, event *contracts.OutcomeEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO moat_outcome_events
	(event_id, capability_id, tenant_id, receipt_id, success, latency_ms, error_taxonomy, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.CapabilityID, event.TenantID, event.ReceiptID,
		event.Success, event.LatencyMS, string(event.ErrorTaxonomy), event.Timestamp)
	if err != nil {
		return fmt.Errorf("trust: insert event: %w", err)
	}
	return nil
}

// Since loads every event for capabilityID recorded at or after cutoff,
// oldest first — used to rehydrate Engine's in-memory window on startup.
func (s *SQLEventLog) Since(ctx context.Context, capabilityID string, cutoff time.Time) ([]*contracts.OutcomeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, capability_id, tenant_id, receipt_id, success, latency_ms, error_taxonomy, occurred_at
FROM moat_outcome_events
WHERE capability_id = ? AND occurred_at >= ?
ORDER BY occurred_at ASC`, capabilityID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("trust: query events: %w", err)
	}
	defer rows.Close()

	var out []*contracts.OutcomeEvent
	for rows.Next() {
		var ev contracts.OutcomeEvent
		var taxonomy sql.NullString
		if err := rows.Scan(&ev.ID, &ev.CapabilityID, &ev.TenantID, &ev.ReceiptID,
			&ev.Success, &ev.LatencyMS, &taxonomy, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("trust: scan event: %w", err)
		}
		ev.ErrorTaxonomy = contracts.ErrorTaxonomy(taxonomy.String)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// RecordDurable writes event to both the in-memory rolling window and, if
// store is non-nil, the durable log. Store write failures are non-fatal
// (logged by the caller) since the in-memory window remains the serving
// path for GetStats.
func (e *Engine) RecordDurable(ctx context.Context, store EventLog, event *contracts.OutcomeEvent) error {
	e.Record(event)
	if store == nil {
		return nil
	}
	return store.Insert(ctx, event)
}

// LoadFromStore rehydrates the in-memory rolling window for capabilityID
// from store, for use on process startup before serving GetStats.
func (e *Engine) LoadFromStore(ctx context.Context, store EventLog, capabilityID string) error {
	events, err := store.Since(ctx, capabilityID, time.Now().Add(-Window))
	if err != nil {
		return err
	}
	for _, ev := range events {
		e.Record(ev)
	}
	return nil
}
