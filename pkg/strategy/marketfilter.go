package strategy

import (
	"context"
	"time"

	"stockpick/pkg/logger"
)

// DefaultMarketIndex 大盘环境默认参照指数（沪深300）
const DefaultMarketIndex = "000300.SH"

// IndexSnapshot 指数某日的收盘价与关键指标
type IndexSnapshot struct {
	Close   float64
	MA20    *float64
	MA60    *float64
	MACDDif *float64
}

// IndexSource 指数行情与指标数据源
type IndexSource interface {
	// IndexOnDate 返回指数某日快照；当日无数据时 found 为 false
	IndexOnDate(ctx context.Context, indexCode string, date time.Time) (snap IndexSnapshot, found bool, err error)
}

// EvaluateMarket 评估大盘环境。
// 收盘 > MA20 且 MACD DIF > 0 → bullish；收盘 > MA60 → neutral；
// 否则 bearish。指数数据缺失时按 neutral 处理。
func EvaluateMarket(ctx context.Context, src IndexSource, targetDate time.Time, indexCode string) (MarketState, error) {
	if indexCode == "" {
		indexCode = DefaultMarketIndex
	}
	snap, found, err := src.IndexOnDate(ctx, indexCode, targetDate)
	if err != nil {
		return MarketNeutral, err
	}
	if !found {
		logger.WithComponent("market_filter").
			WithField("index", indexCode).
			Warn("指数数据缺失，按中性处理")
		return MarketNeutral, nil
	}

	ma20 := fv(snap.MA20, 0)
	ma60 := fv(snap.MA60, 0)
	dif := fv(snap.MACDDif, 0)

	switch {
	case ma20 > 0 && snap.Close > ma20 && dif > 0:
		return MarketBullish, nil
	case ma60 > 0 && snap.Close > ma60:
		return MarketNeutral, nil
	default:
		return MarketBearish, nil
	}
}
