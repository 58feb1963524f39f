package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndicatorSource struct {
	byDate map[string]map[string]IndicatorRow
}

func (f *fakeIndicatorSource) IndicatorsOnDate(_ context.Context, date time.Time) (map[string]IndicatorRow, error) {
	return f.byDate[DateKey(date)], nil
}

type fakeFundamentalSource struct {
	funds map[string]Fundamental
}

func (f *fakeFundamentalSource) LatestFundamentals(_ context.Context, _ time.Time) (map[string]Fundamental, error) {
	return f.funds, nil
}

type fakeCalendar struct {
	days []time.Time
}

func (f *fakeCalendar) PrevOpenDay(_ context.Context, date time.Time) (time.Time, error) {
	for i := len(f.days) - 1; i >= 0; i-- {
		if f.days[i].Before(date) {
			return f.days[i], nil
		}
	}
	return time.Time{}, NewMarketError(ErrNoPrevDay, "no prev open day")
}

func (f *fakeCalendar) NextOpenDay(_ context.Context, date time.Time) (time.Time, error) {
	for _, d := range f.days {
		if d.After(date) {
			return d, nil
		}
	}
	return time.Time{}, NewMarketError(ErrNoPrevDay, "no next open day")
}

func (f *fakeCalendar) OpenDaysBetween(_ context.Context, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range f.days {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCalendar) OpenDayOffset(_ context.Context, ref time.Time, offset int) (time.Time, error) {
	idx := -1
	for i := len(f.days) - 1; i >= 0; i-- {
		if !f.days[i].After(ref) {
			idx = i
			break
		}
	}
	if idx < 0 || idx-offset < 0 {
		return time.Time{}, NewMarketError(ErrNoPrevDay, "offset out of calendar")
	}
	return f.days[idx-offset], nil
}

func snapshotFixture() (*SnapshotBuilder, time.Time) {
	prev := Date(2025, 3, 13)
	target := Date(2025, 3, 14)

	bars := &fakeBarSource{
		cross: map[string][]DailyBar{
			DateKey(target): {
				{TsCode: "000001.SZ", TradeDate: target, Open: 10, High: 10.6, Low: 9.9, Close: 10.5, PctChg: 2.9, Vol: 1500, TurnoverRate: fp(1.2)},
				{TsCode: "600519.SH", TradeDate: target, Open: 1500, High: 1530, Low: 1490, Close: 1520, PctChg: 1.5, Vol: 800, TurnoverRate: fp(0.4)},
				{TsCode: "600666.SH", TradeDate: target, Open: 5, High: 5, Low: 5, Close: 5, PctChg: 0, Vol: 0}, // 停牌
				{TsCode: "002099.SZ", TradeDate: target, Open: 6, High: 6.3, Low: 5.9, Close: 6.2, PctChg: 3.1, Vol: 900, TurnoverRate: fp(2.0)}, // ST
			},
			DateKey(prev): {
				{TsCode: "000001.SZ", TradeDate: prev, Open: 10.1, High: 10.3, Low: 10.0, Close: 10.2, PctChg: -0.5, Vol: 1000},
				{TsCode: "600519.SH", TradeDate: prev, Open: 1490, High: 1505, Low: 1480, Close: 1498, PctChg: 0.3, Vol: 700},
			},
		},
		names: map[string]string{
			"000001.SZ": "平安银行",
			"600519.SH": "贵州茅台",
			"600666.SH": "奥瑞德",
			"002099.SZ": "ST海翔",
		},
	}
	inds := &fakeIndicatorSource{byDate: map[string]map[string]IndicatorRow{
		DateKey(target): {
			"000001.SZ": {TsCode: "000001.SZ", TradeDate: target, MA5: fp(10.3), MA10: fp(10.1), VolRatio: fp(2.0)},
			"600519.SH": {TsCode: "600519.SH", TradeDate: target, MA5: fp(1500), MA10: fp(1495)},
		},
		DateKey(prev): {
			"000001.SZ": {TsCode: "000001.SZ", TradeDate: prev, MA5: fp(10.0), MA10: fp(10.05)},
			"600519.SH": {TsCode: "600519.SH", TradeDate: prev, MA5: fp(1492), MA10: fp(1490)},
		},
	}}
	funds := &fakeFundamentalSource{funds: map[string]Fundamental{
		"600519.SH": {TsCode: "600519.SH", ROE: fp(28.0), PeTTM: fp(25.0)},
	}}
	cal := &fakeCalendar{days: []time.Time{Date(2025, 3, 12), prev, target, Date(2025, 3, 17)}}

	return NewSnapshotBuilder(bars, inds, funds, cal), target
}

// TestBuildSnapshot 快照行、_prev 列与财务联结
func TestBuildSnapshot(t *testing.T) {
	b, target := snapshotFixture()
	snap, err := b.Build(context.Background(), target, nil)
	require.NoError(t, err)

	// 停牌与 ST 被剔除，剩两只，按 ts_code 升序
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "000001.SZ", snap.Rows[0].TsCode)
	assert.Equal(t, "600519.SH", snap.Rows[1].TsCode)
	assert.Equal(t, Date(2025, 3, 13), snap.PrevDate)

	r := snap.Rows[0]
	require.NotNil(t, r.ClosePrev)
	assert.Equal(t, 10.2, *r.ClosePrev)
	require.NotNil(t, r.MA5Prev)
	assert.Equal(t, 10.0, *r.MA5Prev)
	require.NotNil(t, r.Ind.MA5)
	assert.Equal(t, 10.3, *r.Ind.MA5)

	// 财务数据仅茅台有
	assert.Nil(t, snap.Rows[0].Fund)
	require.NotNil(t, snap.Rows[1].Fund)
	assert.Equal(t, 28.0, *snap.Rows[1].Fund.ROE)
}

// TestBuildSnapshotCache 缓存命中不重复构建
func TestBuildSnapshotCache(t *testing.T) {
	b, target := snapshotFixture()
	cache := make(SnapshotCache)

	first, err := b.Build(context.Background(), target, cache)
	require.NoError(t, err)
	require.Contains(t, cache, DateKey(target))

	second, err := b.Build(context.Background(), target, cache)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// TestSnapshotRowAccessors 周期访问辅助
func TestSnapshotRowAccessors(t *testing.T) {
	row := SnapshotRow{
		Ind:     IndicatorRow{MA5: fp(1), MA10: fp(2), RSI6: fp(25)},
		MA5Prev: fp(0.9),
	}
	require.NotNil(t, row.MA(5))
	assert.Equal(t, 1.0, *row.MA(5))
	require.NotNil(t, row.MAPrev(5))
	assert.Equal(t, 0.9, *row.MAPrev(5))
	assert.Nil(t, row.MA(120))
	require.NotNil(t, row.RSI(6))
	assert.Nil(t, row.RSIPrev(12))
}
