package market

import (
	"context"
	"fmt"
	"time"

	"stockpick/pkg/logger"
)

// FeedLoader 单只股票日线加载器，负责前复权换算。
type FeedLoader struct {
	bars BarSource
	log  *logger.Entry
}

// NewFeedLoader 创建日线加载器
func NewFeedLoader(bars BarSource) *FeedLoader {
	return &FeedLoader{
		bars: bars,
		log:  logger.WithComponent("feed_loader"),
	}
}

// Load 加载 [start, end] 区间内的前复权日线序列。
//
// 前复权规则：以区间内最新一根日线的复权因子 f_latest 为基准，
// 每根日线的 OHLC 乘以 adj_factor / f_latest。成交量、成交额、
// 换手率不做复权。区间内复权因子全部缺失时价格原样返回并记录
// 数据质量告警。
func (l *FeedLoader) Load(ctx context.Context, tsCode string, start, end time.Time) (*Feed, error) {
	if end.Before(start) {
		return nil, NewMarketError(ErrInvalidRange,
			fmt.Sprintf("invalid range [%s, %s]", DateKey(start), DateKey(end)))
	}

	bars, err := l.bars.BarsByRange(ctx, tsCode, start, end)
	if err != nil {
		return nil, WrapMarketError(ErrNoBars,
			fmt.Sprintf("load bars for %s", tsCode), err)
	}
	if len(bars) == 0 {
		return nil, NewMarketError(ErrNoBars,
			fmt.Sprintf("no bars for %s in [%s, %s]", tsCode, DateKey(start), DateKey(end)))
	}

	feed := &Feed{
		TsCode:     tsCode,
		Bars:       make([]DailyBar, len(bars)),
		AdjFactors: make([]*float64, len(bars)),
	}
	for i := range bars {
		feed.AdjFactors[i] = bars[i].AdjFactor
	}

	latest := latestAdjFactor(bars)
	if latest == nil {
		l.log.WithField("ts_code", tsCode).Warn("复权因子缺失，价格未复权")
		copy(feed.Bars, bars)
		return feed, nil
	}

	fLatest := *latest
	for i, b := range bars {
		adj := b
		if b.AdjFactor != nil && fLatest > 0 {
			ratio := *b.AdjFactor / fLatest
			adj.Open = b.Open * ratio
			adj.High = b.High * ratio
			adj.Low = b.Low * ratio
			adj.Close = b.Close * ratio
			adj.PreClose = b.PreClose * ratio
		}
		feed.Bars[i] = adj
	}

	return feed, nil
}

// latestAdjFactor 区间内最新一根带复权因子日线的因子值
func latestAdjFactor(bars []DailyBar) *float64 {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].AdjFactor != nil {
			return bars[i].AdjFactor
		}
	}
	return nil
}
