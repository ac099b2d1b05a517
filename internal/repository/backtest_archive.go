package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarkovCast/internal/domain/models"
	domrepo "MarkovCast/internal/domain/repository"
	pkgch "MarkovCast/pkg/clickhouse"
	applogger "MarkovCast/pkg/logger"
)

// CHBacktestArchive stores finished walk-forward reports in ClickHouse as
// JSON blobs keyed by job id.
type CHBacktestArchive struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBacktestArchive(ch *pkgch.Client) *CHBacktestArchive {
	return &CHBacktestArchive{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (a *CHBacktestArchive) SetLogger(l *applogger.Logger) { a.l = l }

func (a *CHBacktestArchive) SaveReport(ctx context.Context, report *models.BacktestResult) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("backtest report needs an id")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	const q = `
        INSERT INTO markovcast.backtest_reports (id, symbol, created_at, report)
        VALUES (?, ?, ?, ?)
    `
	if _, err := a.db.ExecContext(ctx, q, report.ID, report.Symbol, report.GeneratedAt, string(payload)); err != nil {
		if a.l != nil {
			a.l.Error("clickhouse save_report error",
				applogger.String("id", report.ID),
				applogger.String("symbol", report.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save backtest report: %w", err)
	}
	if a.l != nil {
		a.l.Info("clickhouse save_report ok",
			applogger.String("id", report.ID),
			applogger.String("symbol", report.Symbol),
		)
	}
	return nil
}

func (a *CHBacktestArchive) GetReport(ctx context.Context, id string) (*models.BacktestResult, error) {
	const q = `
        SELECT report FROM markovcast.backtest_reports
        WHERE id = ?
        ORDER BY created_at DESC
        LIMIT 1
    `
	start := time.Now()
	var payload string
	if err := a.db.QueryRowContext(ctx, q, id).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if a.l != nil {
			a.l.Error("clickhouse get_report error",
				applogger.String("id", id),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get backtest report: %w", err)
	}
	var report models.BacktestResult
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", id, err)
	}
	if a.l != nil {
		a.l.Debug("clickhouse get_report ok",
			applogger.String("id", id),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &report, nil
}

var _ domrepo.BacktestArchive = (*CHBacktestArchive)(nil)
