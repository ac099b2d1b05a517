package forecast

import (
	"context"
	"time"

	"MarkovCast/internal/domain/models"
	domsvc "MarkovCast/internal/domain/service"
	"MarkovCast/internal/services/markov"
	applogger "MarkovCast/pkg/logger"
)

// Engine adapts the markov package to the domain Forecaster interface.
// It is stateless: every call trains a fresh session on the prices given.
type Engine struct {
	l *applogger.Logger
}

func NewEngine(l *applogger.Logger) *Engine {
	return &Engine{l: l}
}

func (e *Engine) Forecast(ctx context.Context, prices []float64, req *models.ForecastRequest) (*models.PredictionResult, error) {
	s, err := markov.Train(prices, markov.Config{
		States: req.States,
		Method: markov.Method(req.Method),
	})
	if err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	res, err := s.Predict(ctx, markov.SimConfig{
		HorizonDays: req.Horizon,
		Paths:       req.Paths,
		Seed:        seed,
	})
	if err != nil {
		return nil, err
	}
	if e.l != nil {
		e.l.Debug("forecast simulated",
			applogger.String("symbol", req.Symbol),
			applogger.Int("horizon", req.Horizon),
			applogger.Int("completed", res.Completed),
		)
	}

	out := &models.PredictionResult{
		Symbol:       req.Symbol,
		GeneratedAt:  time.Now().UTC(),
		HorizonDays:  req.Horizon,
		Paths:        res.Requested,
		Completed:    res.Completed,
		Partial:      res.Partial,
		States:       s.Config().States,
		Method:       string(s.Config().Method),
		Observations: s.Observations(),
		CurrentState: s.Discretizer().Label(s.CurrentState()),

		CurrentPrice:      res.CurrentPrice,
		ExpectedPrice:     res.ExpectedPrice,
		MedianPrice:       res.MedianPrice,
		PriceStd:          res.PriceStd,
		ExpectedReturnPct: res.ExpectedReturn * 100,
		ReturnStdPct:      res.ReturnStd * 100,
		CI68:              res.CI68,
		CI95:              res.CI95,

		VaR95Pct:      res.VaRReturn * 100,
		VaR95Loss:     res.VaRLoss,
		CVaR95Pct:     res.CVaRReturn * 100,
		CVaR95Loss:    res.CVaRLoss,
		MaxLossPct:    res.MaxLoss * 100,
		EnsembleOrder: s.Config().Orders,
		Weights:       s.Weights(),
	}
	if res.ProbUpDefined {
		up, down := res.ProbUp, res.ProbDown
		out.ProbUp = &up
		out.ProbDown = &down
	}
	for _, d := range res.Days {
		out.Daily = append(out.Daily, models.DailyForecast{
			Day:           d.Day,
			ExpectedPrice: d.ExpectedPrice,
			MedianPrice:   d.MedianPrice,
			CI68:          d.CI68,
			CI95:          d.CI95,
		})
	}
	rec := markov.Recommend(res)
	out.Recommendation = &models.Recommendation{
		Signal:             string(rec.Signal),
		Confidence:         rec.Confidence,
		ExpectedReturnPct:  rec.ExpectedReturnPct,
		ProbabilityUpPct:   rec.ProbabilityUpPct,
		RiskAdjustedReturn: rec.RiskAdjustedReturn,
		Reasoning:          rec.Reasoning,
	}
	return out, nil
}

func (e *Engine) States(ctx context.Context, prices []float64, req *models.StatesRequest) (*models.StateReport, error) {
	s, err := markov.Train(prices, markov.Config{
		States: req.States,
		Method: markov.Method(req.Method),
	})
	if err != nil {
		return nil, err
	}
	matrix, err := s.TransitionMatrix()
	if err != nil {
		return nil, err
	}

	stats := s.StateStats()
	infos := make([]models.StateInfo, 0, len(stats))
	for _, st := range stats {
		infos = append(infos, models.StateInfo{
			State:         st.State,
			Label:         st.Label,
			Count:         st.Count,
			FrequencyPct:  st.Frequency * 100,
			MeanReturnPct: st.MeanReturn * 100,
		})
	}

	return &models.StateReport{
		Symbol:           req.Symbol,
		GeneratedAt:      time.Now().UTC(),
		States:           s.Config().States,
		Method:           string(s.Config().Method),
		Observations:     s.Observations(),
		CurrentState:     s.Discretizer().Label(s.CurrentState()),
		Boundaries:       s.Discretizer().Boundaries(),
		Stats:            infos,
		TransitionMatrix: matrix,
	}, nil
}

func (e *Engine) Backtest(ctx context.Context, prices []float64, req *models.BacktestRequest) (*models.BacktestResult, error) {
	report, err := markov.Backtest(ctx, prices, markov.BacktestConfig{
		States:        req.States,
		Method:        markov.Method(req.Method),
		MinLookback:   req.MinLookback,
		RetrainEvery:  req.RetrainEvery,
		ProbThreshold: req.ProbThreshold,
	})
	if err != nil {
		return nil, err
	}
	if e.l != nil && report.Partial {
		e.l.Warn("backtest returned partial report",
			applogger.String("symbol", req.Symbol),
			applogger.Int("completed_windows", report.CompletedWindows),
			applogger.Int("windows", report.Windows),
		)
	}

	out := &models.BacktestResult{
		Symbol:       req.Symbol,
		GeneratedAt:  time.Now().UTC(),
		States:       req.States,
		Method:       req.Method,
		MinLookback:  report.MinLookback,
		RetrainEvery: report.RetrainEvery,

		Steps:                len(report.Steps),
		Windows:              report.Windows,
		CompletedWindows:     report.CompletedWindows,
		Partial:              report.Partial,
		DirectionAccuracyPct: report.DirectionAccuracy * 100,
		MAE:                  report.MAE,
		MAEPct:               report.MAEPct,
		RMSE:                 report.RMSE,
		RMSEPct:              report.RMSEPct,
		MAPE:                 report.MAPE,
		R2:                   report.R2,
		Correlation:          report.Correlation,
		ReturnMAE:            report.ReturnMAE,
	}
	if tr := report.Trading; tr != nil {
		out.Trading = &models.TradingStats{
			InitialCapital: tr.InitialCapital,
			FinalCapital:   tr.FinalCapital,
			TotalReturnPct: tr.TotalReturnPct,
			Trades:         tr.Trades,
			Wins:           tr.Wins,
			Losses:         tr.Losses,
			WinRatePct:     tr.WinRatePct,
			ProfitFactor:   tr.ProfitFactor,
			SharpeRatio:    tr.SharpeRatio,
			MaxDrawdownPct: tr.MaxDrawdownPct,
		}
	}
	if b := report.Baseline; b != nil {
		out.Baseline = &models.BaselineComparison{
			ModelAccuracy:    b.ModelAccuracy,
			RandomBaseline:   b.RandomBaseline,
			AlwaysUpBaseline: b.AlwaysUpBaseline,
			NaiveBaseline:    b.NaiveBaseline,
			EdgeOverRandom:   b.ImprovementOverRandom,
		}
	}
	return out, nil
}

func (e *Engine) OptimizeWeights(ctx context.Context, prices []float64, req *models.WeightsRequest) (*models.WeightReport, error) {
	s, err := markov.Train(prices, markov.Config{
		States: req.States,
		Method: markov.Method(req.Method),
	})
	if err != nil {
		return nil, err
	}
	obj, err := markov.ParseObjective(req.Objective)
	if err != nil {
		return nil, err
	}
	weights, score, err := s.OptimizeWeights(ctx, obj)
	if err != nil {
		return nil, err
	}
	return &models.WeightReport{
		Symbol:      req.Symbol,
		GeneratedAt: time.Now().UTC(),
		Objective:   string(obj),
		Orders:      s.Config().Orders,
		Weights:     weights,
		Score:       score,
	}, nil
}

var _ domsvc.Forecaster = (*Engine)(nil)
