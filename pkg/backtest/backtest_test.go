package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpick/pkg/config"
	apperr "stockpick/pkg/error"
	"stockpick/pkg/market"
	"stockpick/pkg/store"
)

func TestCostModel(t *testing.T) {
	c := DefaultCostModel()
	assert.Equal(t, 5.0, c.Buy(1000*10), "小额买入触发最低佣金")
	assert.Equal(t, 250.0, c.Buy(10000*100))
	assert.Equal(t, 1250.0, c.Sell(10000*100), "卖出加收印花税")
	assert.Equal(t, 6.0, c.Sell(100*10))
}

func TestLimitPct(t *testing.T) {
	assert.Equal(t, 0.10, LimitPct("600519.SH", "贵州茅台"))
	assert.Equal(t, 0.20, LimitPct("300750.SZ", "宁德时代"))
	assert.Equal(t, 0.20, LimitPct("688001.SH", "华兴源创"))
	assert.Equal(t, 0.05, LimitPct("000001.SZ", "ST某"))
	assert.Equal(t, 0.05, LimitPct("000002.SZ", "*st 某"))
}

func TestIsLimitUpDown(t *testing.T) {
	assert.True(t, IsLimitUp(11.00, 10.00, 0.10))
	assert.True(t, IsLimitUp(10.99, 10.00, 0.10), "1 分钱余量内算涨停")
	assert.False(t, IsLimitUp(10.50, 10.00, 0.10))

	assert.True(t, IsLimitDown(9.00, 10.00, 0.10))
	assert.True(t, IsLimitDown(9.01, 10.00, 0.10))
	assert.False(t, IsLimitDown(9.50, 10.00, 0.10))
}

func TestCalcEqualWeightShares(t *testing.T) {
	assert.Equal(t, 30300, CalcEqualWeightShares(1_000_000, 1, 33.0))
	assert.Equal(t, 0, CalcEqualWeightShares(500, 1, 100.0))
	assert.Equal(t, 0, CalcEqualWeightShares(1_000_000, 0, 33.0))
}

func bar(d time.Time, open, high, low, close, preClose, vol float64) market.DailyBar {
	return market.DailyBar{
		TradeDate: d, Open: open, High: high, Low: low, Close: close,
		PreClose: preClose, Vol: vol,
	}
}

func TestEngineBuyAndHoldExit(t *testing.T) {
	days := make([]time.Time, 6)
	for i := range days {
		days[i] = market.Date(2024, 6, 10+i)
	}
	bars := []market.DailyBar{
		bar(days[0], 10.0, 10.2, 9.9, 10.0, 9.9, 1000),
		bar(days[1], 10.0, 10.5, 9.9, 10.4, 10.0, 1200), // 信号日收盘
		bar(days[2], 10.5, 10.8, 10.4, 10.7, 10.4, 1300), // 次日开盘买入
		bar(days[3], 10.8, 11.0, 10.6, 10.9, 10.7, 1100),
		bar(days[4], 11.0, 11.3, 10.9, 11.2, 10.9, 1000), // 持有到期卖出
		bar(days[5], 11.2, 11.4, 11.1, 11.3, 11.2, 900),
	}
	signals := []bool{false, true, false, false, false, false}

	e := &Engine{Cost: DefaultCostModel(), Slippage: 0} // 零滑点便于核对
	res, err := e.Run(RunInput{
		TsCode: "600000.SH", Name: "浦发银行",
		Bars: bars, Signals: signals,
		InitialCapital: 100000, HoldDays: 2,
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	buy, sell := res.Trades[0], res.Trades[1]
	assert.Equal(t, "buy", buy.Direction)
	assert.Equal(t, days[2], buy.Date, "信号次日开盘成交")
	assert.Equal(t, 10.5, buy.Price)
	assert.Equal(t, 9500, buy.Size, "整手买入")

	assert.Equal(t, "sell", sell.Direction)
	assert.Equal(t, days[4], sell.Date, "持有 2 根 K 线后开盘卖出")
	assert.Equal(t, 11.0, sell.Price)
	assert.Greater(t, sell.Pnl, 0.0)

	assert.Len(t, res.Equity, len(bars), "净值曲线与行情等长")
	assert.Greater(t, res.FinalEquity, 100000.0)
}

func TestEngineLimitUpSuppressesBuy(t *testing.T) {
	days := []time.Time{market.Date(2024, 6, 10), market.Date(2024, 6, 11), market.Date(2024, 6, 12)}
	bars := []market.DailyBar{
		bar(days[0], 10.0, 10.2, 9.9, 10.0, 9.9, 1000),
		bar(days[1], 10.0, 11.0, 10.0, 11.0, 10.0, 1200), // 一字涨停
		bar(days[2], 11.5, 11.8, 11.4, 11.6, 11.0, 1300),
	}
	e := NewEngine()
	res, err := e.Run(RunInput{
		TsCode: "600000.SH", Bars: bars,
		Signals: []bool{true, true, false}, InitialCapital: 100000,
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1, "涨停日买入被压制，次日才成交")
	assert.Equal(t, days[2], res.Trades[0].Date)
}

func TestEngineStopLoss(t *testing.T) {
	days := make([]time.Time, 4)
	for i := range days {
		days[i] = market.Date(2024, 6, 10+i)
	}
	bars := []market.DailyBar{
		bar(days[0], 10.0, 10.2, 9.9, 10.0, 9.9, 1000),
		bar(days[1], 10.0, 10.1, 9.9, 10.0, 10.0, 1200),
		bar(days[2], 9.0, 9.3, 9.0, 9.2, 10.0, 1300), // 低开触发止损
		bar(days[3], 9.2, 9.3, 9.0, 9.1, 9.2, 1100),
	}
	e := &Engine{Cost: DefaultCostModel(), Slippage: 0}
	res, err := e.Run(RunInput{
		TsCode: "600000.SH", Bars: bars,
		Signals:        []bool{true, false, false, false},
		InitialCapital: 100000, StopLossPct: 0.08,
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "sell", res.Trades[1].Direction)
	assert.Equal(t, days[2], res.Trades[1].Date)
	assert.Less(t, res.Trades[1].Pnl, 0.0)
}

func TestExtractMetrics(t *testing.T) {
	days := make([]time.Time, 5)
	for i := range days {
		days[i] = market.Date(2024, 6, 10+i)
	}
	equity := []EquityPoint{
		{days[0], 100000}, {days[1], 102000}, {days[2], 99000},
		{days[3], 103000}, {days[4], 105000},
	}
	trades := []Trade{
		{Direction: "buy", Pnl: 0},
		{Direction: "sell", Pnl: 1500},
		{Direction: "sell", Pnl: -500},
	}
	m := ExtractMetrics(equity, trades, 100000)

	require.NotNil(t, m.TotalReturn)
	assert.Equal(t, 0.05, *m.TotalReturn)
	require.NotNil(t, m.MaxDrawdown)
	assert.InDelta(t, (102000.0-99000.0)/102000.0, *m.MaxDrawdown, 1e-4)
	require.NotNil(t, m.WinRate)
	assert.Equal(t, 0.5, *m.WinRate, "买入腿不计入交易统计")
	require.NotNil(t, m.ProfitFactor)
	assert.Equal(t, 3.0, *m.ProfitFactor)
	assert.Equal(t, 2, m.TradeCount)
	require.NotNil(t, m.Calmar)
}

func TestExtractMetricsDegenerate(t *testing.T) {
	m := ExtractMetrics(nil, nil, 100000)
	assert.Nil(t, m.TotalReturn)

	flat := []EquityPoint{
		{market.Date(2024, 6, 10), 100000},
		{market.Date(2024, 6, 11), 100000},
		{market.Date(2024, 6, 12), 100000},
	}
	m = ExtractMetrics(flat, nil, 100000)
	require.NotNil(t, m.TotalReturn)
	assert.Zero(t, *m.TotalReturn)
	assert.Nil(t, m.Sharpe, "零波动 Sharpe 不可计算")
	assert.Nil(t, m.Calmar, "零回撤 Calmar 不可计算")
	assert.Nil(t, m.WinRate, "无交易胜率为 null")
}

func TestRound4(t *testing.T) {
	require.NotNil(t, round4(0.123456))
	assert.Equal(t, 0.1235, *round4(0.123456))
	assert.Nil(t, round4(math.NaN()))
	assert.Nil(t, round4(math.Inf(1)))
}

func TestMergeEquity(t *testing.T) {
	d1, d2, d3 := market.Date(2024, 6, 10), market.Date(2024, 6, 11), market.Date(2024, 6, 12)
	a := []EquityPoint{{d1, 100}, {d2, 110}, {d3, 120}}
	b := []EquityPoint{{d1, 200}, {d3, 180}} // d2 停牌

	merged := MergeEquity([][]EquityPoint{a, b})
	require.Len(t, merged, 3)
	assert.Equal(t, 300.0, merged[0].Value)
	assert.Equal(t, 310.0, merged[1].Value, "缺日沿用最近净值")
	assert.Equal(t, 300.0, merged[2].Value)
}

func TestRunnerRejectsEmptyCodes(t *testing.T) {
	r := NewRunner(store.New(nil), config.BacktestConfig{}, nil)

	_, err := r.Evaluate(context.Background(), Request{
		StrategyName:   "ma-cross",
		InitialCapital: 1_000_000,
		Start:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err, "空股票池应在装载行情前被拒绝")
	var be *apperr.BaseError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrEmptyCodes, be.Code)
}
