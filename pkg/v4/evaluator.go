package v4

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics 一组参数的回放评估结果。
type Metrics struct {
	SignalCount     int      `json:"signal_count"`
	WinRate1D       *float64 `json:"win_rate_1d"`
	WinRate3D       *float64 `json:"win_rate_3d"`
	WinRate5D       *float64 `json:"win_rate_5d"`
	WinRate10D      *float64 `json:"win_rate_10d"`
	AvgReturn5D     *float64 `json:"avg_return_5d"`
	ProfitLossRatio *float64 `json:"profit_loss_ratio"`
	MaxDrawdown     *float64 `json:"max_drawdown"`
	Sharpe          *float64 `json:"sharpe"`
	SignalsPerMonth *float64 `json:"signals_per_month"`
	Composite       *float64 `json:"composite"`
}

// Evaluate 聚合信号表现。综合得分 =
// 0.4·win_rate_5d + 0.3·min(盈亏比,5)/5 + 0.3·min(Sharpe,3)/3。
func Evaluate(signals []Signal, windowDays int) Metrics {
	m := Metrics{SignalCount: len(signals)}
	if len(signals) == 0 {
		return m
	}

	m.WinRate1D = winRate(signals, 1)
	m.WinRate3D = winRate(signals, 3)
	m.WinRate5D = winRate(signals, 5)
	m.WinRate10D = winRate(signals, 10)

	var r5 []float64
	for _, s := range signals {
		if r := s.Returns[5]; r != nil {
			r5 = append(r5, *r)
		}
	}
	if len(r5) > 0 {
		avg := stat.Mean(r5, nil)
		m.AvgReturn5D = &avg
		m.ProfitLossRatio = profitLossRatio(r5)
		if len(r5) > 1 {
			if sd := stat.StdDev(r5, nil); sd > 0 {
				// 5 日持有期年化
				sh := stat.Mean(r5, nil) / sd * math.Sqrt(252.0/5.0)
				m.Sharpe = &sh
			}
		}
	}

	mdd := maxPathDrawdown(signals)
	m.MaxDrawdown = &mdd

	if windowDays > 0 {
		spm := float64(len(signals)) / (float64(windowDays) / 21.0)
		m.SignalsPerMonth = &spm
	}

	m.Composite = composite(m)
	return m
}

func winRate(signals []Signal, horizon int) *float64 {
	wins, total := 0, 0
	for _, s := range signals {
		r := s.Returns[horizon]
		if r == nil {
			continue
		}
		total++
		if *r > 0 {
			wins++
		}
	}
	if total == 0 {
		return nil
	}
	wr := float64(wins) / float64(total)
	return &wr
}

// profitLossRatio |盈利均值 / 亏损均值|，无亏损样本时为 nil。
func profitLossRatio(returns []float64) *float64 {
	var wonSum, lostSum float64
	var won, lost int
	for _, r := range returns {
		if r > 0 {
			wonSum += r
			won++
		} else if r < 0 {
			lostSum += r
			lost++
		}
	}
	if won == 0 || lost == 0 {
		return nil
	}
	plr := math.Abs((wonSum / float64(won)) / (lostSum / float64(lost)))
	return &plr
}

// maxPathDrawdown 所有信号 10 日持有路径上的最大峰谷回撤。
func maxPathDrawdown(signals []Signal) float64 {
	worst := 0.0
	for _, s := range signals {
		peak := 0.0
		for _, r := range s.Path {
			if r > peak {
				peak = r
			}
			if dd := (1 + peak - (1 + r)) / (1 + peak); dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func composite(m Metrics) *float64 {
	wr5 := 0.0
	if m.WinRate5D != nil {
		wr5 = *m.WinRate5D
	}
	plr := 0.0
	if m.ProfitLossRatio != nil {
		plr = math.Min(*m.ProfitLossRatio, 5.0)
	}
	sh := 0.0
	if m.Sharpe != nil {
		sh = math.Min(*m.Sharpe, 3.0)
		if sh < 0 {
			sh = 0
		}
	}
	c := 0.4*wr5 + 0.3*plr/5.0 + 0.3*sh/3.0
	return &c
}
