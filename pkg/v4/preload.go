package v4

import (
	"context"
	"time"

	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
)

// 回放窗口默认值
const (
	DefaultWindowDays = 250
	DefaultIndexCode  = "000300.SH"
)

// Preload 把回放窗口内的行情、指标与大盘状态一次性装入内存。
// 之后的参数寻优只触碰 Dataset，不再发起任何查询。
func Preload(ctx context.Context, st *store.Store, endDate time.Time, windowDays int, indexCode string) (*Dataset, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if indexCode == "" {
		indexCode = DefaultIndexCode
	}
	log := logger.WithComponent("v4.preload")

	days, err := st.Calendar.LastOpenDays(ctx, endDate, windowDays)
	if err != nil {
		return nil, err
	}

	data := &Dataset{
		Dates:  days,
		Rows:   make(map[string]map[string]Row, len(days)),
		States: make(map[string]strategy.MarketState, len(days)),
	}

	started := time.Now()
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, _, err := st.Bars.BarsOnDate(ctx, day)
		if err != nil {
			return nil, err
		}
		inds, err := st.Indicators.IndicatorsOnDate(ctx, day)
		if err != nil {
			return nil, err
		}

		dk := market.DateKey(day)
		rows := make(map[string]Row, len(bars))
		for _, b := range bars {
			r := Row{
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				PctChg: b.PctChg,
				Vol:    b.Vol,
			}
			if ind, ok := inds[b.TsCode]; ok {
				r.VolRatio = ind.VolRatio
				r.MA10 = ind.MA10
				r.MA20 = ind.MA20
			}
			rows[b.TsCode] = r
		}
		data.Rows[dk] = rows

		state, err := strategy.EvaluateMarket(ctx, st.Index, day, indexCode)
		if err != nil {
			log.WithField("date", dk).WithError(err).Warn("大盘状态评估失败，按中性处理")
			state = strategy.MarketNeutral
		}
		data.States[dk] = state
	}
	data.Finalize()

	log.WithField("days", len(days)).
		WithField("elapsed", time.Since(started).String()).
		Info("回放数据预加载完成")
	return data, nil
}
