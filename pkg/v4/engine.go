package v4

import (
	"math"
	"time"

	"stockpick/pkg/market"
	"stockpick/pkg/strategy"
)

// Signal 一次企稳触发信号，附前瞻收益。
type Signal struct {
	TsCode       string    `json:"ts_code"`
	T0Date       time.Time `json:"t0_date"`
	TriggerDate  time.Time `json:"trigger_date"`
	TriggerPrice float64   `json:"trigger_price"`
	WashoutDays  int       `json:"washout_days"`
	// Returns 前瞻 1/3/5/10 日收益，窗口不足为 nil
	Returns map[int]*float64 `json:"returns"`
	// Path 触发后至多 10 个交易日的逐日累计收益
	Path []float64 `json:"path,omitempty"`
}

// ReturnHorizons 前瞻收益的评估窗口（交易日）。
var ReturnHorizons = []int{1, 3, 5, 10}

// watchEntry 内存观察池条目。
type watchEntry struct {
	t0Idx       int
	t0Open      float64
	t0Volume    float64
	washoutDays int
	minVol      float64
	minLow      float64
}

// Engine 基于预加载数据的回放引擎。同一个 Engine 可被多组参数
// 复用，T0 候选缓存按阈值键共享。
type Engine struct {
	data    *Dataset
	t0Cache T0Cache
}

// NewEngine Dataset 须已 Finalize。
func NewEngine(data *Dataset) *Engine {
	return &Engine{data: data}
}

// Replay 以一组参数回放整个窗口，返回触发信号（含前瞻收益）。
// 空头交易日整体跳过，与实盘评估口径一致。
func (e *Engine) Replay(params strategy.Params) []Signal {
	minPct := params.Get("min_t0_pct_chg", 6.0)
	minVR := params.Get("min_t0_vol_ratio", 2.5)
	accumDays := params.GetInt("accumulation_days", 60)
	maxRange := params.Get("max_accumulation_range", 0.20)
	minWashout := params.GetInt("min_washout_days", 3)
	maxWashout := params.GetInt("max_washout_days", 8)
	maxShrink := params.Get("max_vol_shrink_ratio", 0.40)
	maxAmplitude := params.Get("max_tk_amplitude", 3.0)
	maTolerance := params.Get("ma_support_tolerance", 0.015)
	marketFilter := params.GetBool("enable_market_filter", true)

	t0ByDate := e.t0Cache.candidates(e.data, t0Key{
		minPctChg:   minPct,
		minVolRatio: minVR,
		accumDays:   accumDays,
		maxRange:    maxRange,
	})

	pool := map[string]*watchEntry{}
	var signals []Signal

	for i, day := range e.data.Dates {
		dk := market.DateKey(day)
		if marketFilter && e.data.StateAt(dk) == strategy.MarketBearish {
			continue
		}

		// 先推进既有条目，再纳入当日新 T0
		for code, entry := range pool {
			row, ok := e.data.RowAt(dk, code)
			if !ok || row.Vol <= 0 {
				continue
			}
			if row.Low < entry.t0Open {
				delete(pool, code)
				continue
			}
			if entry.washoutDays+1 > maxWashout {
				delete(pool, code)
				continue
			}
			entry.washoutDays++
			entry.minVol = math.Min(entry.minVol, row.Vol)
			entry.minLow = math.Min(entry.minLow, row.Low)

			if entry.washoutDays >= minWashout &&
				stabilized(row, entry, maxAmplitude, maxShrink, maTolerance) {
				signals = append(signals, Signal{
					TsCode:       code,
					T0Date:       e.data.Dates[entry.t0Idx],
					TriggerDate:  day,
					TriggerPrice: row.Close,
					WashoutDays:  entry.washoutDays,
					Returns:      e.forwardReturns(i, code, row.Close),
					Path:         e.equityPath(i, code, row.Close, 10),
				})
				delete(pool, code)
			}
		}

		for _, code := range t0ByDate[dk] {
			if _, watching := pool[code]; watching {
				continue
			}
			row, ok := e.data.RowAt(dk, code)
			if !ok {
				continue
			}
			pool[code] = &watchEntry{
				t0Idx:    i,
				t0Open:   row.Open,
				t0Volume: row.Vol,
				minVol:   row.Vol,
				minLow:   row.Low,
			}
		}
	}
	return signals
}

// stabilized Tk 企稳判定：收盘守住 T0 开盘、小振幅、
// 对 T0 缩量、最低价贴合 MA10 或 MA20。
func stabilized(row Row, entry *watchEntry, maxAmplitude, maxShrink, maTolerance float64) bool {
	if row.Close <= entry.t0Open || row.Close <= 0 || entry.t0Volume <= 0 {
		return false
	}
	if (row.High-row.Low)/row.Close*100 > maxAmplitude {
		return false
	}
	if row.Vol/entry.t0Volume > maxShrink {
		return false
	}
	return nearMA(row.Low, row.MA10, maTolerance) || nearMA(row.Low, row.MA20, maTolerance)
}

func nearMA(low float64, ma *float64, tolerance float64) bool {
	if ma == nil || *ma <= 0 {
		return false
	}
	return math.Abs(low / *ma-1) <= tolerance
}

// forwardReturns 触发日后 1/3/5/10 个交易日的收盘涨跌幅。
func (e *Engine) forwardReturns(triggerIdx int, tsCode string, base float64) map[int]*float64 {
	out := make(map[int]*float64, len(ReturnHorizons))
	for _, h := range ReturnHorizons {
		idx := triggerIdx + h
		if base <= 0 || idx >= len(e.data.Dates) {
			out[h] = nil
			continue
		}
		row, ok := e.data.RowAt(market.DateKey(e.data.Dates[idx]), tsCode)
		if !ok || row.Close <= 0 {
			out[h] = nil
			continue
		}
		r := row.Close/base - 1
		out[h] = &r
	}
	return out
}

// equityPath 触发后 n 日的逐日收益序列，用于回撤评估。
func (e *Engine) equityPath(triggerIdx int, tsCode string, base float64, n int) []float64 {
	var out []float64
	for i := 1; i <= n; i++ {
		idx := triggerIdx + i
		if idx >= len(e.data.Dates) {
			break
		}
		row, ok := e.data.RowAt(market.DateKey(e.data.Dates[idx]), tsCode)
		if !ok || row.Close <= 0 || base <= 0 {
			break
		}
		out = append(out, row.Close/base-1)
	}
	return out
}
