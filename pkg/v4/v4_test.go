package v4

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpick/pkg/market"
	"stockpick/pkg/strategy"
)

func fp(v float64) *float64 { return &v }

func mkDates(n int) []time.Time {
	out := make([]time.Time, n)
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

// scenarioDataset 构造一个完整触发剧本：
// 5 日蓄势 → 第 5 日 T0 放量大涨 → 3 日缩量洗盘 → 第 8 日企稳触发。
func scenarioDataset() *Dataset {
	const code = "000001.SZ"
	dates := mkDates(20)
	d := &Dataset{
		Dates:  dates,
		Rows:   map[string]map[string]Row{},
		States: map[string]strategy.MarketState{},
	}
	put := func(i int, r Row) {
		dk := market.DateKey(dates[i])
		if d.Rows[dk] == nil {
			d.Rows[dk] = map[string]Row{}
		}
		d.Rows[dk][code] = r
	}

	// 蓄势期：窄幅横盘
	for i := 0; i < 5; i++ {
		put(i, Row{Open: 10.0, High: 10.2, Low: 9.8, Close: 10.0, PctChg: 0.1, Vol: 100})
	}
	// T0：涨幅 7%，量比 3
	put(5, Row{Open: 10.0, High: 10.8, Low: 10.0, Close: 10.7, PctChg: 7.0, Vol: 300, VolRatio: fp(3.0)})
	// 洗盘：低点守住 T0 开盘，量能收缩
	put(6, Row{Open: 10.6, High: 10.7, Low: 10.3, Close: 10.5, PctChg: -1.9, Vol: 150})
	put(7, Row{Open: 10.5, High: 10.6, Low: 10.35, Close: 10.55, PctChg: 0.5, Vol: 130})
	// Tk 企稳：小振幅、对 T0 缩量、低点贴 MA10
	put(8, Row{Open: 10.5, High: 10.65, Low: 10.45, Close: 10.6, PctChg: 0.5, Vol: 100,
		MA10: fp(10.5), MA20: fp(10.2)})
	// 触发后走势
	closes := []float64{10.8, 11.0, 10.9, 11.2, 11.5, 11.4, 11.6, 11.8, 12.0, 12.2, 12.1}
	for i, c := range closes {
		put(9+i, Row{Open: c, High: c + 0.1, Low: c - 0.1, Close: c, PctChg: 1.0, Vol: 120})
	}
	d.Finalize()
	return d
}

func scenarioParams() strategy.Params {
	meta, _ := strategy.GetMeta(strategy.NameVolumePricePattern)
	return strategy.Merge(meta.DefaultParams, strategy.Params{"accumulation_days": 5})
}

func TestReplayTriggerScenario(t *testing.T) {
	data := scenarioDataset()
	engine := NewEngine(data)

	signals := engine.Replay(scenarioParams())
	require.Len(t, signals, 1, "完整剧本应产生且仅产生一个信号")

	sig := signals[0]
	assert.Equal(t, "000001.SZ", sig.TsCode)
	assert.Equal(t, data.Dates[5], sig.T0Date, "T0 应为放量大涨日")
	assert.Equal(t, data.Dates[8], sig.TriggerDate, "触发应在企稳日")
	assert.InDelta(t, 10.6, sig.TriggerPrice, 1e-9, "触发价为企稳日收盘")
	assert.Equal(t, 3, sig.WashoutDays)

	require.NotNil(t, sig.Returns[1])
	assert.InDelta(t, 10.8/10.6-1, *sig.Returns[1], 1e-9)
	require.NotNil(t, sig.Returns[5])
	assert.InDelta(t, 11.5/10.6-1, *sig.Returns[5], 1e-9)
	require.NotNil(t, sig.Returns[10])
	assert.Len(t, sig.Path, 10)
}

func TestReplayBearishDaySkipsT0(t *testing.T) {
	data := scenarioDataset()
	data.States[market.DateKey(data.Dates[5])] = strategy.MarketBearish
	engine := NewEngine(data)

	signals := engine.Replay(scenarioParams())
	assert.Empty(t, signals, "空头日不纳入新 T0，整个剧本失效")
}

func TestReplayStopOnBreakdown(t *testing.T) {
	data := scenarioDataset()
	const code = "000001.SZ"
	// 洗盘第二日跌破 T0 开盘价
	dk := market.DateKey(data.Dates[7])
	r := data.Rows[dk][code]
	r.Low = 9.9
	data.Rows[dk][code] = r
	engine := NewEngine(data)

	signals := engine.Replay(scenarioParams())
	assert.Empty(t, signals, "跌破 T0 开盘价应触发止损出池")
}

func TestReplayWashoutExpiry(t *testing.T) {
	data := scenarioDataset()
	engine := NewEngine(data)

	params := strategy.Merge(scenarioParams(), strategy.Params{
		// 企稳条件收紧到不可能达成，洗盘计满后过期出池
		"max_vol_shrink_ratio": 0.01,
		"max_washout_days":     4,
	})
	signals := engine.Replay(params)
	assert.Empty(t, signals)
}

func TestT0CacheSharedAcrossParams(t *testing.T) {
	data := scenarioDataset()
	engine := NewEngine(data)

	p := scenarioParams()
	engine.Replay(p)
	require.Equal(t, 1, engine.t0Cache.size())

	// 探测阈值不变时复用同一份候选
	engine.Replay(strategy.Merge(p, strategy.Params{"max_washout_days": 10}))
	assert.Equal(t, 1, engine.t0Cache.size())

	// 阈值变化则新建缓存项
	engine.Replay(strategy.Merge(p, strategy.Params{"min_t0_pct_chg": 8.0}))
	assert.Equal(t, 2, engine.t0Cache.size())
}

func TestReplayConcurrentParams(t *testing.T) {
	data := scenarioDataset()
	engine := NewEngine(data)

	// 同一引擎被多组阈值并发回放，-race 下验证候选缓存的并发安全
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				p := strategy.Merge(scenarioParams(), strategy.Params{
					"min_t0_pct_chg": 5.0 + float64((g+i)%8)*0.5,
				})
				engine.Replay(p)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8, engine.t0Cache.size(), "每组阈值只构建一次候选")
}

func TestEvaluateMetrics(t *testing.T) {
	r := func(v float64) *float64 { return &v }
	signals := []Signal{
		{Returns: map[int]*float64{1: r(0.01), 3: r(0.02), 5: r(0.04), 10: r(0.06)}, Path: []float64{0.01, 0.03, 0.02, 0.04}},
		{Returns: map[int]*float64{1: r(-0.01), 3: r(0.01), 5: r(0.02), 10: r(0.03)}, Path: []float64{-0.01, 0.01, 0.02, 0.02}},
		{Returns: map[int]*float64{1: r(0.02), 3: r(-0.01), 5: r(-0.02), 10: nil}, Path: []float64{0.02, -0.01, -0.02}},
	}
	m := Evaluate(signals, 63)

	assert.Equal(t, 3, m.SignalCount)
	require.NotNil(t, m.WinRate1D)
	assert.InDelta(t, 2.0/3.0, *m.WinRate1D, 1e-9)
	require.NotNil(t, m.WinRate5D)
	assert.InDelta(t, 2.0/3.0, *m.WinRate5D, 1e-9)
	require.NotNil(t, m.WinRate10D, "10 日窗口不足的样本不计入分母")
	assert.InDelta(t, 1.0, *m.WinRate10D, 1e-9)

	require.NotNil(t, m.AvgReturn5D)
	assert.InDelta(t, (0.04+0.02-0.02)/3.0, *m.AvgReturn5D, 1e-9)
	require.NotNil(t, m.ProfitLossRatio)
	assert.InDelta(t, 0.03/0.02, *m.ProfitLossRatio, 1e-9)

	require.NotNil(t, m.MaxDrawdown)
	// 第三条路径 0.02 → -0.02
	assert.InDelta(t, (1.02-0.98)/1.02, *m.MaxDrawdown, 1e-9)

	require.NotNil(t, m.SignalsPerMonth)
	assert.InDelta(t, 1.0, *m.SignalsPerMonth, 1e-9)

	require.NotNil(t, m.Composite)
	assert.Greater(t, *m.Composite, 0.0)
	assert.LessOrEqual(t, *m.Composite, 1.0)
}

func TestEvaluateNoLosses(t *testing.T) {
	r := func(v float64) *float64 { return &v }
	signals := []Signal{
		{Returns: map[int]*float64{5: r(0.03)}},
		{Returns: map[int]*float64{5: r(0.05)}},
	}
	m := Evaluate(signals, 63)
	assert.Nil(t, m.ProfitLossRatio, "无亏损样本时盈亏比无定义")
	require.NotNil(t, m.WinRate5D)
	assert.InDelta(t, 1.0, *m.WinRate5D, 1e-9)
}

func TestEvaluateEmpty(t *testing.T) {
	m := Evaluate(nil, 120)
	assert.Equal(t, 0, m.SignalCount)
	assert.Nil(t, m.WinRate5D)
	assert.Nil(t, m.Composite)
}

func TestSortByComposite(t *testing.T) {
	c := func(v *float64, fpKey float64) Candidate {
		return Candidate{
			Params:  strategy.Params{"x": fpKey},
			Metrics: Metrics{Composite: v},
		}
	}
	v1, v2 := 0.8, 0.3
	cands := []Candidate{c(nil, 1), c(&v2, 2), c(&v1, 3)}
	SortByComposite(cands)

	require.NotNil(t, cands[0].Metrics.Composite)
	assert.InDelta(t, 0.8, *cands[0].Metrics.Composite, 1e-9)
	assert.InDelta(t, 0.3, *cands[1].Metrics.Composite, 1e-9)
	assert.Nil(t, cands[2].Metrics.Composite, "无得分的候选排末尾")
}
