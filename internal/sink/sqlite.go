package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"github.com/google/uuid"
)

// DefaultListLimit caps List results when the query sets no limit.
const DefaultListLimit = 100

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create decision log",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS decisions (
						id          TEXT PRIMARY KEY,
						ts          DATETIME NOT NULL,
						sensor      TEXT NOT NULL,
						actual      REAL NOT NULL,
						predicted   REAL NOT NULL,
						residual    REAL NOT NULL,
						threshold   REAL NOT NULL DEFAULT 0,
						anomaly     INTEGER NOT NULL DEFAULT 0,
						severity    TEXT NOT NULL DEFAULT '',
						model_fit   INTEGER NOT NULL DEFAULT 1,
						recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_decisions_sensor ON decisions(sensor)`,
					`CREATE INDEX IF NOT EXISTS idx_decisions_anomaly ON decisions(anomaly) WHERE anomaly = 1`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// DecisionQuery filters List results.
type DecisionQuery struct {
	SensorID      string
	AnomaliesOnly bool
	Limit         int
}

// SQLiteRecorder keeps the decision log in the shared SQLite store. Rows
// are returned in emit order; the store is owned by the caller and is not
// closed with the recorder.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder applies the decision log migrations and returns a
// recorder writing to store.
func NewSQLiteRecorder(ctx context.Context, store plugin.Store) (*SQLiteRecorder, error) {
	if err := store.Migrate(ctx, "sink", migrations()); err != nil {
		return nil, fmt.Errorf("migrate decision log: %w", err)
	}
	return &SQLiteRecorder{db: store.DB()}, nil
}

// Record implements Recorder.
func (r *SQLiteRecorder) Record(ctx context.Context, d analytics.Decision) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, ts, sensor, actual, predicted, residual,
			threshold, anomaly, severity, model_fit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), d.Timestamp.UTC(), d.SensorID,
		d.Actual, d.Predicted, d.Residual,
		d.Threshold, boolToInt(d.IsAnomaly), d.Severity, boolToInt(d.ModelFit),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Close implements Recorder.
func (r *SQLiteRecorder) Close() error {
	return nil
}

// List returns the most recent decisions matching q, newest first.
func (r *SQLiteRecorder) List(ctx context.Context, q DecisionQuery) ([]analytics.Decision, error) {
	var (
		where []string
		args  []any
	)
	if q.SensorID != "" {
		where = append(where, "sensor = ?")
		args = append(args, q.SensorID)
	}
	if q.AnomaliesOnly {
		where = append(where, "anomaly = 1")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ts, sensor, actual, predicted, residual, threshold, anomaly, severity, model_fit
		FROM decisions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]analytics.Decision, 0, limit)
	for rows.Next() {
		var (
			d                 analytics.Decision
			ts                time.Time
			anomaly, modelFit int
		)
		if err := rows.Scan(
			&ts, &d.SensorID, &d.Actual, &d.Predicted, &d.Residual,
			&d.Threshold, &anomaly, &d.Severity, &modelFit,
		); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.Timestamp = ts
		d.IsAnomaly = anomaly != 0
		d.ModelFit = modelFit != 0
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
