package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpick/pkg/market"
)

func fp(v float64) *float64 { return &v }

// snapOf 把若干行包成单日快照
func snapOf(rows ...market.SnapshotRow) *market.Snapshot {
	return &market.Snapshot{
		TargetDate: market.Date(2024, 6, 14),
		PrevDate:   market.Date(2024, 6, 13),
		Rows:       rows,
	}
}

func runOne(t *testing.T, name string, overrides Params, row market.SnapshotRow) bool {
	t.Helper()
	s, err := New(name, overrides)
	require.NoError(t, err, "构造策略失败")
	got, err := s.FilterBatch(context.Background(), snapOf(row), &Env{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0]
}

func TestRegistryCatalog(t *testing.T) {
	names := Names()
	assert.Len(t, names, 35, "注册策略数量")
	assert.Contains(t, names, "ma-cross")
	assert.Contains(t, names, "quality-score")
	assert.Contains(t, names, NameVolumePricePattern)

	tech := NamesByCategory(CategoryTechnical)
	fund := NamesByCategory(CategoryFundamental)
	assert.Len(t, fund, 12, "基本面策略数量")
	assert.Equal(t, len(names), len(tech)+len(fund))

	_, err := New("no-such-strategy", nil)
	assert.Error(t, err)

	metas := AllMetas()
	require.Len(t, metas, len(names))
	assert.Equal(t, names[0], metas[0].Name, "元信息按名称升序")
}

func TestParamsMerge(t *testing.T) {
	merged := Merge(Params{"a": 1, "b": 2}, Params{"b": 9})
	assert.Equal(t, 1.0, merged.Get("a", 0))
	assert.Equal(t, 9.0, merged.Get("b", 0))
	assert.Equal(t, 7, merged.GetInt("missing", 7))
	assert.True(t, Params{"flag": 1}.GetBool("flag", false))
}

func TestMACross(t *testing.T) {
	row := market.SnapshotRow{
		TsCode: "600000.SH", Close: 11.0, Vol: 200000, PctChg: 3.0,
		Ind: market.IndicatorRow{
			MA5: fp(10.5), MA20: fp(10.4), VolRatio: fp(1.8),
		},
		MA5Prev: fp(10.2), MA20Prev: fp(10.3),
	}
	assert.True(t, runOne(t, "ma-cross", nil, row), "快线上穿慢线且放量应命中")

	noVol := row
	noVol.Ind.VolRatio = fp(1.2)
	assert.False(t, runOne(t, "ma-cross", nil, noVol), "量比不足不命中")

	suspended := row
	suspended.Vol = 0
	assert.False(t, runOne(t, "ma-cross", nil, suspended), "停牌行必须为 false")

	relaxed := row
	relaxed.Ind.VolRatio = fp(1.2)
	assert.True(t, runOne(t, "ma-cross", Params{"vol_ratio": 1.0}, relaxed), "参数覆盖生效")
}

func TestRSIOversoldFill(t *testing.T) {
	// rsi6 缺失按 50 回填，50 不满足前值 <= 20
	row := market.SnapshotRow{TsCode: "000001.SZ", Close: 10, Vol: 1000,
		Ind: market.IndicatorRow{RSI6: fp(35)}}
	assert.False(t, runOne(t, "rsi-oversold", nil, row))

	row.RSI6Prev = fp(18)
	assert.True(t, runOne(t, "rsi-oversold", nil, row), "前值 18 当前 35 应命中")

	row.Ind.RSI6 = fp(25)
	assert.False(t, runOne(t, "rsi-oversold", nil, row), "当前未站上 30")
}

func TestDonchianBreakout(t *testing.T) {
	row := market.SnapshotRow{TsCode: "600519.SH", Close: 105, Vol: 5000,
		Ind:       market.IndicatorRow{DonchianUpper: fp(104)},
		ClosePrev: fp(103), DonchianUpperPrev: fp(103.5),
	}
	assert.True(t, runOne(t, "donchian-breakout", nil, row))

	row.ClosePrev = fp(104) // 昨日已突破
	assert.False(t, runOne(t, "donchian-breakout", nil, row))
}

func TestQualityScore(t *testing.T) {
	fund := market.Fundamental{
		ROE: fp(22), ProfitYoY: fp(35), DebtRatio: fp(25), PeTTM: fp(8),
	}
	row := market.SnapshotRow{TsCode: "600036.SH", Close: 30, Vol: 9000, Fund: &fund}
	// 100*0.30 + 100*0.25 + 100*0.25 + 100*0.20 = 100 >= 60
	assert.True(t, runOne(t, "quality-score", nil, row))

	weak := fund
	weak.ROE = fp(4)
	weak.ProfitYoY = fp(-5)
	weak.DebtRatio = fp(70)
	weak.PeTTM = fp(50)
	row.Fund = &weak
	// 四个维度全部落入兜底 20 分，总分 20 < 60
	assert.False(t, runOne(t, "quality-score", nil, row))

	partial := fund
	partial.ROE = nil
	row.Fund = &partial
	assert.False(t, runOne(t, "quality-score", nil, row), "任一维度缺失不打分")
}

func TestLowPeHighRoe(t *testing.T) {
	fund := market.Fundamental{PeTTM: fp(12), ROE: fp(18), ProfitYoY: fp(25)}
	row := market.SnapshotRow{TsCode: "601318.SH", Close: 45, Vol: 8000, Fund: &fund}
	assert.True(t, runOne(t, "low-pe-high-roe", nil, row))

	negPe := fund
	negPe.PeTTM = fp(-5)
	row.Fund = &negPe
	assert.False(t, runOne(t, "low-pe-high-roe", nil, row), "亏损股 PE 为负不命中")

	row.Fund = nil
	assert.False(t, runOne(t, "low-pe-high-roe", nil, row), "无基本面数据不命中")
}

type fakeIndexSource struct {
	snap  IndexSnapshot
	found bool
}

func (f *fakeIndexSource) IndexOnDate(_ context.Context, _ string, _ time.Time) (IndexSnapshot, bool, error) {
	return f.snap, f.found, nil
}

func TestEvaluateMarket(t *testing.T) {
	day := market.Date(2024, 6, 14)
	cases := []struct {
		name  string
		snap  IndexSnapshot
		found bool
		want  MarketState
	}{
		{"多头", IndexSnapshot{Close: 3500, MA20: fp(3450), MA60: fp(3400), MACDDif: fp(5)}, true, MarketBullish},
		{"站上MA20但DIF为负", IndexSnapshot{Close: 3500, MA20: fp(3450), MA60: fp(3400), MACDDif: fp(-2)}, true, MarketNeutral},
		{"仅站上MA60", IndexSnapshot{Close: 3420, MA20: fp(3450), MA60: fp(3400), MACDDif: fp(5)}, true, MarketNeutral},
		{"空头", IndexSnapshot{Close: 3300, MA20: fp(3450), MA60: fp(3400), MACDDif: fp(-8)}, true, MarketBearish},
		{"数据缺失", IndexSnapshot{}, false, MarketNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvaluateMarket(context.Background(), &fakeIndexSource{snap: tc.snap, found: tc.found}, day, DefaultMarketIndex)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// fakeWatchPool 记录调用并返回预置结果
type fakeWatchPool struct {
	verified     map[string]struct{}
	triggered    []string
	inserted     []T0Entry
	sectorScores map[string]float64
	advanced     bool
}

func (f *fakeWatchPool) VerifyAccumulation(_ context.Context, codes []string, _ time.Time, _ int, _ float64) (map[string]struct{}, error) {
	return f.verified, nil
}

func (f *fakeWatchPool) InsertT0Batch(_ context.Context, entries []T0Entry) (int, error) {
	f.inserted = append(f.inserted, entries...)
	return len(entries), nil
}

func (f *fakeWatchPool) Advance(_ context.Context, _ time.Time, _ int) (WatchStats, error) {
	f.advanced = true
	return WatchStats{Updated: 1}, nil
}

func (f *fakeWatchPool) CheckStabilization(_ context.Context, _ time.Time, p StabilizationParams) ([]string, error) {
	return f.triggered, nil
}

func (f *fakeWatchPool) SetSectorScores(_ context.Context, _ time.Time, scores map[string]float64) error {
	f.sectorScores = scores
	return nil
}

func TestVolumePricePattern(t *testing.T) {
	t0Row := market.SnapshotRow{ // 当日放量大涨，满足 T0 条件
		TsCode: "300001.SZ", Open: 10.0, High: 10.8, Low: 9.9, Close: 10.7,
		PctChg: 7.0, Vol: 50000,
		Ind: market.IndicatorRow{VolRatio: fp(3.0)},
	}
	quiet := market.SnapshotRow{
		TsCode: "600000.SH", Open: 8.0, High: 8.1, Low: 7.9, Close: 8.0,
		PctChg: 0.2, Vol: 20000,
		Ind: market.IndicatorRow{VolRatio: fp(0.9)},
	}
	triggered := market.SnapshotRow{ // 池内已企稳的标的
		TsCode: "002415.SZ", Open: 20.0, High: 20.3, Low: 19.9, Close: 20.2,
		PctChg: 1.0, Vol: 30000,
		Ind: market.IndicatorRow{VolRatio: fp(0.35)},
	}
	snap := snapOf(t0Row, quiet, triggered)

	pool := &fakeWatchPool{
		verified:  map[string]struct{}{"300001.SZ": {}},
		triggered: []string{"002415.SZ"},
	}
	env := &Env{
		TargetDate:    market.Date(2024, 6, 14),
		MarketState:   MarketBullish,
		StrongSectors: map[string]struct{}{"002415.SZ": {}},
		WatchPool:     pool,
	}

	s, err := New(NameVolumePricePattern, nil)
	require.NoError(t, err)
	got, err := s.FilterBatch(context.Background(), snap, env)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, true}, got, "仅企稳触发标的入选")
	assert.True(t, pool.advanced, "每日必须先推进观察池")
	require.Len(t, pool.inserted, 1, "仅蓄势校验通过的候选入池")
	entry := pool.inserted[0]
	assert.Equal(t, "300001.SZ", entry.TsCode)
	assert.Equal(t, 10.0, entry.T0Open)
	assert.Equal(t, 50000.0, entry.T0Volume)
	require.NotNil(t, entry.MarketScore)
	assert.Equal(t, 1.0, *entry.MarketScore)
	assert.Equal(t, map[string]float64{"002415.SZ": 1.0}, pool.sectorScores)
}

func TestVolumePricePatternBearishSkip(t *testing.T) {
	pool := &fakeWatchPool{triggered: []string{"300001.SZ"}}
	env := &Env{
		TargetDate:  market.Date(2024, 6, 14),
		MarketState: MarketBearish,
		WatchPool:   pool,
	}
	row := market.SnapshotRow{TsCode: "300001.SZ", Close: 10, PctChg: 8, Vol: 1000,
		Ind: market.IndicatorRow{VolRatio: fp(3.0)}}

	s, err := New(NameVolumePricePattern, nil)
	require.NoError(t, err)
	got, err := s.FilterBatch(context.Background(), snapOf(row), env)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, got, "空头市跳过评估")
	assert.False(t, pool.advanced, "空头市不推进观察池")

	_, err = s.FilterBatch(context.Background(), snapOf(row), &Env{MarketState: MarketBullish})
	assert.Error(t, err, "缺少观察池应报错")
}
