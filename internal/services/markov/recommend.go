package markov

import (
	"fmt"
	"strings"
)

// Signal is a discrete trading recommendation.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG SELL"
)

// Recommendation is a trading signal derived from a simulation result.
type Recommendation struct {
	Signal             Signal
	Confidence         string
	ExpectedReturnPct  float64
	ProbabilityUpPct   float64
	RiskAdjustedReturn float64
	Reasoning          string
}

// Recommend maps simulated expected return and direction probability to a
// signal. A result without a defined direction (zero-day horizon) holds.
func Recommend(res *SimResult) Recommendation {
	if res == nil || !res.ProbUpDefined {
		return Recommendation{
			Signal:     SignalHold,
			Confidence: "Low",
			Reasoning:  "No forward horizon simulated",
		}
	}

	probUp := res.ProbUp
	expRet := res.ExpectedReturn
	retStd := res.ReturnStd

	riskAdjusted := 0.0
	if retStd > 0 {
		riskAdjusted = expRet / retStd
	}

	var signal Signal
	var confidence string
	switch {
	case probUp > 0.65 && expRet > 0.01:
		signal = SignalStrongBuy
		confidence = "High"
	case probUp > 0.55 && expRet > 0.005:
		signal = SignalBuy
		confidence = "Medium"
	case probUp < 0.35 && expRet < -0.01:
		signal = SignalStrongSell
		confidence = "High"
	case probUp < 0.45 && expRet < -0.005:
		signal = SignalSell
		confidence = "Medium"
	default:
		signal = SignalHold
		confidence = "Medium"
	}

	return Recommendation{
		Signal:             signal,
		Confidence:         confidence,
		ExpectedReturnPct:  expRet * 100,
		ProbabilityUpPct:   probUp * 100,
		RiskAdjustedReturn: riskAdjusted,
		Reasoning:          reasoning(signal, probUp, expRet, retStd),
	}
}

func reasoning(signal Signal, probUp, expRet, retStd float64) string {
	var parts []string

	switch signal {
	case SignalStrongBuy, SignalBuy:
		parts = append(parts,
			fmt.Sprintf("Probability of price increase: %.1f%%", probUp*100),
			fmt.Sprintf("Expected return: %.2f%%", expRet*100))
	case SignalStrongSell, SignalSell:
		parts = append(parts,
			fmt.Sprintf("Probability of price decrease: %.1f%%", (1-probUp)*100),
			fmt.Sprintf("Expected return: %.2f%%", expRet*100))
	default:
		parts = append(parts, fmt.Sprintf("Uncertain market direction (Up: %.1f%%)", probUp*100))
	}

	if retStd > 0.02 {
		parts = append(parts, fmt.Sprintf("High volatility expected (sigma=%.2f%%)", retStd*100))
	} else if retStd < 0.01 {
		parts = append(parts, fmt.Sprintf("Low volatility expected (sigma=%.2f%%)", retStd*100))
	}

	return strings.Join(parts, " | ")
}
