package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFixture(n int) []DailyBar {
	bars := make([]DailyBar, n)
	price := 10.0
	for i := 0; i < n; i++ {
		// 缓慢上涨并带轻微波动的序列
		price += 0.1 * math.Sin(float64(i)/3.0)
		if price < 1 {
			price = 1
		}
		bars[i] = DailyBar{
			TsCode:    "000001.SZ",
			TradeDate: Date(2025, 1, 1).AddDate(0, 0, i),
			Open:      price * 0.99,
			High:      price * 1.02,
			Low:       price * 0.98,
			Close:     price,
			Vol:       1000 + float64(i%7)*100,
		}
	}
	return bars
}

// TestComputeWarmup 窗口未满的位置为 nil
func TestComputeWarmup(t *testing.T) {
	rows := NewIndicatorBuilder().Compute(barsFixture(30))

	assert.Nil(t, rows[3].MA5)
	require.NotNil(t, rows[4].MA5)
	assert.Nil(t, rows[18].BollMid)
	require.NotNil(t, rows[19].BollMid)
	assert.Nil(t, rows[29].MA60)
	assert.Nil(t, rows[7].KdjK)
	require.NotNil(t, rows[8].KdjK)
	assert.Nil(t, rows[19].DonchianUpper)
	require.NotNil(t, rows[20].DonchianUpper)
}

// TestComputeMA MA 即窗口均值
func TestComputeMA(t *testing.T) {
	bars := barsFixture(10)
	rows := NewIndicatorBuilder().Compute(bars)

	sum := 0.0
	for i := 5; i < 10; i++ {
		sum += bars[i].Close
	}
	require.NotNil(t, rows[9].MA5)
	assert.InDelta(t, sum/5.0, *rows[9].MA5, 1e-9)
}

// TestComputeVolRatio 量比 = 当日量 / 5 日均量
func TestComputeVolRatio(t *testing.T) {
	bars := barsFixture(10)
	rows := NewIndicatorBuilder().Compute(bars)

	require.NotNil(t, rows[9].VolMA5)
	require.NotNil(t, rows[9].VolRatio)
	assert.InDelta(t, bars[9].Vol / *rows[9].VolMA5, *rows[9].VolRatio, 1e-9)
}

// TestComputeKDJBounds KDJ K/D 落在 [0, 100]
func TestComputeKDJBounds(t *testing.T) {
	rows := NewIndicatorBuilder().Compute(barsFixture(60))
	for i := 8; i < 60; i++ {
		require.NotNil(t, rows[i].KdjK)
		assert.GreaterOrEqual(t, *rows[i].KdjK, 0.0)
		assert.LessOrEqual(t, *rows[i].KdjK, 100.0)
	}
}

// TestComputeDonchianExcludesToday 唐奇安上轨不含当日，突破可被观察到
func TestComputeDonchianExcludesToday(t *testing.T) {
	bars := barsFixture(30)
	// 最后一日大幅拉升创新高
	bars[29].Close = 100
	bars[29].High = 101
	rows := NewIndicatorBuilder().Compute(bars)

	require.NotNil(t, rows[29].DonchianUpper)
	assert.Less(t, *rows[29].DonchianUpper, bars[29].Close)
}

// TestComputeBias BIAS = (close - MA20) / MA20 * 100
func TestComputeBias(t *testing.T) {
	bars := barsFixture(25)
	rows := NewIndicatorBuilder().Compute(bars)

	require.NotNil(t, rows[24].BIAS)
	require.NotNil(t, rows[24].MA20)
	expect := (bars[24].Close - *rows[24].MA20) / *rows[24].MA20 * 100.0
	assert.InDelta(t, expect, *rows[24].BIAS, 1e-9)
}
