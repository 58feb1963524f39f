package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Metrics 回测绩效指标。无法计算的指标为 nil，
// 对外序列化为 null。
type Metrics struct {
	TotalReturn  *float64 `json:"total_return"`
	AnnualReturn *float64 `json:"annual_return"`
	Sharpe       *float64 `json:"sharpe_ratio"`
	Sortino      *float64 `json:"sortino_ratio"`
	Calmar       *float64 `json:"calmar_ratio"`
	MaxDrawdown  *float64 `json:"max_drawdown"`
	Volatility   *float64 `json:"volatility"`
	WinRate      *float64 `json:"win_rate"`
	ProfitFactor *float64 `json:"profit_loss_ratio"`
	TradeCount   int      `json:"trade_count"`
}

// ExtractMetrics 从净值曲线与成交明细提取指标，
// 四舍五入到 4 位小数，NaN/Inf 置 nil。
func ExtractMetrics(equity []EquityPoint, trades []Trade, initialCapital float64) Metrics {
	var m Metrics
	if len(equity) == 0 || initialCapital <= 0 {
		return m
	}

	final := equity[len(equity)-1].Value
	total := final/initialCapital - 1
	m.TotalReturn = round4(total)

	n := len(equity)
	annual := math.Pow(1+total, tradingDaysPerYear/float64(n)) - 1
	m.AnnualReturn = round4(annual)

	returns := dailyReturns(equity)
	if len(returns) > 1 {
		mean := stat.Mean(returns, nil)
		sd := stat.StdDev(returns, nil)
		m.Volatility = round4(sd * math.Sqrt(tradingDaysPerYear))
		if sd > 0 {
			m.Sharpe = round4(mean / sd * math.Sqrt(tradingDaysPerYear))
		}
		if dsd := downsideStdDev(returns); dsd > 0 {
			m.Sortino = round4(mean / dsd * math.Sqrt(tradingDaysPerYear))
		}
	}

	mdd := maxDrawdown(equity)
	m.MaxDrawdown = round4(mdd)
	if mdd > 0 {
		m.Calmar = round4(annual / mdd)
	}

	m.fillTradeStats(trades)
	return m
}

func (m *Metrics) fillTradeStats(trades []Trade) {
	var won, lost int
	var wonPnl, lostPnl float64
	for _, t := range trades {
		if t.Direction != "sell" {
			continue
		}
		m.TradeCount++
		if t.Pnl > 0 {
			won++
			wonPnl += t.Pnl
		} else {
			lost++
			lostPnl += t.Pnl
		}
	}
	if m.TradeCount > 0 {
		m.WinRate = round4(float64(won) / float64(m.TradeCount))
	}
	if won > 0 && lost > 0 && lostPnl != 0 {
		avgWon := wonPnl / float64(won)
		avgLost := lostPnl / float64(lost)
		m.ProfitFactor = round4(math.Abs(avgWon / avgLost))
	}
}

func dailyReturns(equity []EquityPoint) []float64 {
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}

// maxDrawdown 峰谷最大回撤，返回比例（0.25 表示 25%）。
func maxDrawdown(equity []EquityPoint) float64 {
	peak := equity[0].Value
	mdd := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > mdd {
				mdd = dd
			}
		}
	}
	return mdd
}

func downsideStdDev(returns []float64) float64 {
	var neg []float64
	for _, r := range returns {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	if len(neg) < 2 {
		return 0
	}
	return stat.StdDev(neg, nil)
}

// round4 保留 4 位小数，非有限值置 nil。
func round4(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := math.Round(v*10000) / 10000
	return &r
}
