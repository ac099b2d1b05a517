package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarkovCast/internal/domain/models"
	domrepo "MarkovCast/internal/domain/repository"
	domsvc "MarkovCast/internal/domain/service"
	pkgcache "MarkovCast/pkg/cache"
	applogger "MarkovCast/pkg/logger"
	"MarkovCast/pkg/queue"
)

const (
	// BacktestJobType routes async backtest payloads through the queue.
	BacktestJobType = "backtest.run"

	backtestStatusTTL = 24 * time.Hour
	backtestLockTTL   = 30 * time.Minute
)

// BacktestJobPayload travels through the Redis queue.
type BacktestJobPayload struct {
	ID      string                 `json:"id"`
	Request models.BacktestRequest `json:"request"`
}

// BacktestUseCase runs walk-forward evaluations synchronously or through the
// Redis queue, archiving finished reports in ClickHouse.
type BacktestUseCase struct {
	loader  *PriceLoader
	svc     domsvc.Forecaster
	archive domrepo.BacktestArchive
	queue   queue.QueueService
	status  pkgcache.Service
	l       *applogger.Logger
}

func NewBacktestUseCase(
	loader *PriceLoader,
	svc domsvc.Forecaster,
	archive domrepo.BacktestArchive,
	q queue.QueueService,
	status pkgcache.Service,
	l *applogger.Logger,
) *BacktestUseCase {
	return &BacktestUseCase{loader: loader, svc: svc, archive: archive, queue: q, status: status, l: l}
}

// Run executes a walk-forward evaluation in the request's lifetime.
func (uc *BacktestUseCase) Run(ctx context.Context, req *models.BacktestRequest) (*models.BacktestResult, error) {
	prices, err := uc.loader.DailyCloses(ctx, req.Symbol, req.Lookback)
	if err != nil {
		return nil, err
	}
	res, err := uc.svc.Backtest(ctx, prices, req)
	if err != nil {
		return nil, err
	}
	if uc.l != nil {
		uc.l.Info("backtest finished",
			applogger.String("symbol", req.Symbol),
			applogger.Int("steps", res.Steps),
			applogger.Float64("direction_accuracy_pct", res.DirectionAccuracyPct),
			applogger.Bool("partial", res.Partial),
		)
	}
	return res, nil
}

// Enqueue schedules a walk-forward evaluation on the Redis queue and returns
// the job handle immediately.
func (uc *BacktestUseCase) Enqueue(ctx context.Context, req *models.BacktestRequest) (*models.BacktestJobStatus, error) {
	if uc.queue == nil {
		return nil, fmt.Errorf("async backtests disabled: no queue configured")
	}
	now := time.Now().UTC()
	st := &models.BacktestJobStatus{
		ID:        fmt.Sprintf("%s-%d", strings.ToLower(req.Symbol), now.UnixNano()),
		Symbol:    req.Symbol,
		Status:    "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.setStatus(ctx, st); err != nil {
		return nil, err
	}
	payload := BacktestJobPayload{ID: st.ID, Request: *req}
	if err := uc.queue.PublishMessage(ctx, BacktestJobType, payload); err != nil {
		return nil, fmt.Errorf("enqueue backtest: %w", err)
	}
	if uc.l != nil {
		uc.l.Info("backtest enqueued",
			applogger.String("id", st.ID),
			applogger.String("symbol", req.Symbol),
		)
	}
	return st, nil
}

// Get looks a job up: the archived report when finished, otherwise the queue
// status. Both are nil when the id is unknown.
func (uc *BacktestUseCase) Get(ctx context.Context, id string) (*models.BacktestResult, *models.BacktestJobStatus, error) {
	report, err := uc.archive.GetReport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if report != nil {
		return report, nil, nil
	}
	if uc.status != nil {
		var st models.BacktestJobStatus
		if err := uc.status.Get(ctx, statusKey(id), &st); err == nil {
			return nil, &st, nil
		}
	}
	return nil, nil, nil
}

// Execute runs an enqueued job: marks it running, evaluates, archives the
// report. Called from the queue worker.
func (uc *BacktestUseCase) Execute(ctx context.Context, payload *BacktestJobPayload) error {
	if uc.status != nil {
		// skip when another worker already picked the job up
		ok, err := uc.status.TryLock(ctx, lockKey(payload.ID), backtestLockTTL)
		if err == nil && !ok {
			if uc.l != nil {
				uc.l.Warn("backtest job already locked", applogger.String("id", payload.ID))
			}
			return nil
		}
		defer func() { _ = uc.status.Unlock(context.Background(), lockKey(payload.ID)) }()
	}

	uc.updateStatus(ctx, payload.ID, payload.Request.Symbol, "running", "")

	report, err := uc.Run(ctx, &payload.Request)
	if err != nil {
		uc.updateStatus(ctx, payload.ID, payload.Request.Symbol, "failed", err.Error())
		return fmt.Errorf("backtest job %s: %w", payload.ID, err)
	}
	report.ID = payload.ID
	if err := uc.archive.SaveReport(ctx, report); err != nil {
		uc.updateStatus(ctx, payload.ID, payload.Request.Symbol, "failed", err.Error())
		return err
	}
	uc.updateStatus(ctx, payload.ID, payload.Request.Symbol, "done", "")
	return nil
}

func (uc *BacktestUseCase) setStatus(ctx context.Context, st *models.BacktestJobStatus) error {
	if uc.status == nil {
		return nil
	}
	if err := uc.status.Set(ctx, statusKey(st.ID), st, backtestStatusTTL); err != nil {
		return fmt.Errorf("store job status: %w", err)
	}
	return nil
}

func (uc *BacktestUseCase) updateStatus(ctx context.Context, id, symbol, status, errMsg string) {
	st := &models.BacktestJobStatus{
		ID:        id,
		Symbol:    symbol,
		Status:    status,
		Error:     errMsg,
		UpdatedAt: time.Now().UTC(),
	}
	if err := uc.setStatus(ctx, st); err != nil && uc.l != nil {
		uc.l.Warn("job status update failed",
			applogger.String("id", id),
			applogger.String("status", status),
			applogger.Error(err),
		)
	}
}

func statusKey(id string) string { return "backtest:status:" + id }
func lockKey(id string) string   { return "backtest:lock:" + id }
