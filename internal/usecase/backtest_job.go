package usecase

import (
	"context"

	"MarkovCast/pkg/queue"
)

// BacktestJob adapts BacktestUseCase.Execute to the queue Job interface.
type BacktestJob struct {
	uc *BacktestUseCase
}

func NewBacktestJob(uc *BacktestUseCase) *BacktestJob {
	return &BacktestJob{uc: uc}
}

func (j *BacktestJob) Name() string { return "backtest-runner" }

func (j *BacktestJob) Type() string { return BacktestJobType }

func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[BacktestJobPayload](payload)
	if err != nil {
		return err
	}
	return j.uc.Execute(ctx, p)
}

var _ queue.Job = (*BacktestJob)(nil)
