package strategy

import (
	"context"
	"time"
)

// WatchState 观察池条目状态
type WatchState string

const (
	WatchWatching  WatchState = "watching"
	WatchTriggered WatchState = "triggered"
	WatchStopped   WatchState = "stopped"
	WatchExpired   WatchState = "expired"
)

// T0Entry 放量突破日（T0）入池记录
type T0Entry struct {
	TsCode       string    `json:"ts_code"`
	StrategyName string    `json:"strategy_name"`
	T0Date       time.Time `json:"t0_date"`
	T0Close      float64   `json:"t0_close"`
	T0Open       float64   `json:"t0_open"`
	T0Low        float64   `json:"t0_low"`
	T0Volume     float64   `json:"t0_volume"`
	T0PctChg     float64   `json:"t0_pct_chg"`
	SectorScore  *float64  `json:"sector_score,omitempty"`
	MarketScore  *float64  `json:"market_score,omitempty"`
}

// WatchStats 单日观察池推进统计
type WatchStats struct {
	Stopped int `json:"stopped"`
	Expired int `json:"expired"`
	Updated int `json:"updated"`
}

// StabilizationParams Tk 企稳判定参数
type StabilizationParams struct {
	MinWashoutDays     int     // 至少洗盘天数
	MaxTkAmplitude     float64 // 当日振幅上限（%）
	MaxVolShrinkRatio  float64 // 当日量 / T0 量上限
	MASupportTolerance float64 // 最低价贴合 MA10/MA20 的容差
}

// WatchPool 观察池持久层：strategy_watchpool 表的状态机操作。
// 同一 (ts_code, t0_date, strategy_name) 至多一条记录。
type WatchPool interface {
	// VerifyAccumulation 校验候选在 T0 前 accumDays 个交易日窗口内
	// (max(high)-min(low))/min(low) <= maxRange，返回通过的代码集合
	VerifyAccumulation(ctx context.Context, codes []string, targetDate time.Time, accumDays int, maxRange float64) (map[string]struct{}, error)

	// InsertT0Batch 批量写入新 T0 事件，冲突忽略，返回写入条数
	InsertT0Batch(ctx context.Context, entries []T0Entry) (int, error)

	// Advance 推进 watching 条目一天：跌破 T0 开盘价转 stopped，
	// 洗盘超期转 expired，其余累加 washout_days 并更新运行最小量价
	Advance(ctx context.Context, targetDate time.Time, maxWashoutDays int) (WatchStats, error)

	// CheckStabilization 检测企稳并将命中条目转 triggered，
	// 返回触发的 ts_code 列表
	CheckStabilization(ctx context.Context, targetDate time.Time, p StabilizationParams) ([]string, error)

	// SetSectorScores 为当日触发条目记录板块共振得分
	SetSectorScores(ctx context.Context, targetDate time.Time, scores map[string]float64) error
}
