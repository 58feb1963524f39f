package market

import (
	"context"
	"time"
)

// BarSource 日线行情数据源
type BarSource interface {
	// BarsByRange 返回区间内按日期升序的日线
	BarsByRange(ctx context.Context, tsCode string, start, end time.Time) ([]DailyBar, error)
	// BarsOnDate 返回某日全市场有成交的日线（含股票名称）
	BarsOnDate(ctx context.Context, date time.Time) ([]DailyBar, map[string]string, error)
}

// IndicatorSource 技术指标数据源
type IndicatorSource interface {
	// IndicatorsOnDate 返回某日全市场指标，按 ts_code 索引
	IndicatorsOnDate(ctx context.Context, date time.Time) (map[string]IndicatorRow, error)
}

// FundamentalSource 财务指标数据源
type FundamentalSource interface {
	// LatestFundamentals 返回每只股票截至 target_date 最新一期已披露财务指标
	LatestFundamentals(ctx context.Context, targetDate time.Time) (map[string]Fundamental, error)
}

// Calendar 交易日历
type Calendar interface {
	// PrevOpenDay 严格早于 date 的最近交易日
	PrevOpenDay(ctx context.Context, date time.Time) (time.Time, error)
	// NextOpenDay 严格晚于 date 的最近交易日
	NextOpenDay(ctx context.Context, date time.Time) (time.Time, error)
	// OpenDaysBetween [start, end] 内的交易日，升序
	OpenDaysBetween(ctx context.Context, start, end time.Time) ([]time.Time, error)
	// OpenDayOffset 从 ref 起回退 offset 个交易日（offset=0 为 ref 当日或之前最近交易日）
	OpenDayOffset(ctx context.Context, ref time.Time, offset int) (time.Time, error)
}
