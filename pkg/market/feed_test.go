package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBarSource struct {
	bars  map[string][]DailyBar
	cross map[string][]DailyBar
	names map[string]string
}

func (f *fakeBarSource) BarsByRange(_ context.Context, tsCode string, start, end time.Time) ([]DailyBar, error) {
	var out []DailyBar
	for _, b := range f.bars[tsCode] {
		if !b.TradeDate.Before(start) && !b.TradeDate.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarSource) BarsOnDate(_ context.Context, date time.Time) ([]DailyBar, map[string]string, error) {
	return f.cross[DateKey(date)], f.names, nil
}

func fp(v float64) *float64 { return &v }

// TestLoadForwardAdjustment 前复权消除除权跳空
func TestLoadForwardAdjustment(t *testing.T) {
	d1 := Date(2025, 3, 13)
	d2 := Date(2025, 3, 14)
	src := &fakeBarSource{bars: map[string][]DailyBar{
		"600519.SH": {
			{TsCode: "600519.SH", TradeDate: d1, Open: 104, High: 106, Low: 102, Close: 104, Vol: 1000, AdjFactor: fp(1.0)},
			{TsCode: "600519.SH", TradeDate: d2, Open: 52, High: 53, Low: 51, Close: 52, Vol: 1200, AdjFactor: fp(2.0)},
		},
	}}

	loader := NewFeedLoader(src)
	feed, err := loader.Load(context.Background(), "600519.SH", d1, d2)
	require.NoError(t, err)
	require.Len(t, feed.Bars, 2)

	// 复权因子 [1.0, 2.0]，原始收盘 [104, 52] → 复权后 [52, 52]
	assert.InDelta(t, 52.0, feed.Bars[0].Close, 1e-9)
	assert.InDelta(t, 52.0, feed.Bars[1].Close, 1e-9)
	// 最新一根的复权价等于原始价
	assert.Equal(t, 52.0, feed.Bars[1].Close)
	// 原始复权因子列保留
	require.NotNil(t, feed.AdjFactors[0])
	assert.Equal(t, 1.0, *feed.AdjFactors[0])
}

// TestLoadUniformFactorPassthrough 复权因子恒定时价格不变
func TestLoadUniformFactorPassthrough(t *testing.T) {
	d1 := Date(2025, 3, 13)
	d2 := Date(2025, 3, 14)
	src := &fakeBarSource{bars: map[string][]DailyBar{
		"000001.SZ": {
			{TsCode: "000001.SZ", TradeDate: d1, Open: 10, High: 11, Low: 9.8, Close: 10.5, Vol: 500, AdjFactor: fp(3.0)},
			{TsCode: "000001.SZ", TradeDate: d2, Open: 10.5, High: 10.8, Low: 10.2, Close: 10.6, Vol: 600, AdjFactor: fp(3.0)},
		},
	}}

	loader := NewFeedLoader(src)
	feed, err := loader.Load(context.Background(), "000001.SZ", d1, d2)
	require.NoError(t, err)

	assert.Equal(t, 10.5, feed.Bars[0].Close)
	assert.Equal(t, 10.6, feed.Bars[1].Close)
	assert.Equal(t, 10.0, feed.Bars[0].Open)
}

// TestLoadMissingFactorPassthrough 复权因子全缺失时原样返回
func TestLoadMissingFactorPassthrough(t *testing.T) {
	d1 := Date(2025, 3, 13)
	src := &fakeBarSource{bars: map[string][]DailyBar{
		"000002.SZ": {
			{TsCode: "000002.SZ", TradeDate: d1, Open: 20, High: 21, Low: 19, Close: 20.5, Vol: 300},
		},
	}}

	loader := NewFeedLoader(src)
	feed, err := loader.Load(context.Background(), "000002.SZ", d1, d1)
	require.NoError(t, err)
	assert.Equal(t, 20.5, feed.Bars[0].Close)
	assert.Nil(t, feed.AdjFactors[0])
}

// TestLoadNoBars 区间无数据返回数据缺口错误
func TestLoadNoBars(t *testing.T) {
	src := &fakeBarSource{bars: map[string][]DailyBar{}}
	loader := NewFeedLoader(src)
	_, err := loader.Load(context.Background(), "600000.SH", Date(2025, 1, 1), Date(2025, 1, 31))
	require.Error(t, err)

	var merr *MarketError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ErrNoBars, merr.Code)
}

// TestLoadInvalidRange 起止倒置直接拒绝
func TestLoadInvalidRange(t *testing.T) {
	src := &fakeBarSource{}
	loader := NewFeedLoader(src)
	_, err := loader.Load(context.Background(), "600000.SH", Date(2025, 2, 1), Date(2025, 1, 1))
	require.Error(t, err)
}
