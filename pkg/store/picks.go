package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PickRecord strategy_picks 一行：某日某策略组合的一只入选股票。
type PickRecord struct {
	TradeDate    time.Time `json:"trade_date"`
	TsCode       string    `json:"ts_code"`
	Name         string    `json:"name"`
	Score        float64   `json:"score"`
	Close        float64   `json:"close"`
	PctChg       float64   `json:"pct_chg"`
	HitStrategies []string `json:"hit_strategies"`
}

// PlanRecord trade_plans 一行：一只入选股票的买卖计划。
type PlanRecord struct {
	PlanDate       time.Time `json:"plan_date"`
	ValidDate      time.Time `json:"valid_date"`
	TsCode         string    `json:"ts_code"`
	Name           string    `json:"name"`
	SourceStrategy string    `json:"source_strategy"`
	PlanType       string    `json:"plan_type"` // breakout | reversal | value | volume_signal | stabilization
	Direction      string    `json:"direction"` // buy
	TriggerPrice   float64   `json:"trigger_price"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     *float64  `json:"take_profit,omitempty"`
}

// PickRepo strategy_picks 表仓储。
type PickRepo struct {
	pool PgxPool
}

// InsertPicks 批量写入当日入选，重复 (trade_date, ts_code) 忽略，单事务。
func (r *PickRepo) InsertPicks(ctx context.Context, picks []PickRecord) error {
	if len(picks) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapWrite("strategy_picks", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, p := range picks {
		b.Queue(`
			INSERT INTO strategy_picks
				(trade_date, ts_code, name, score, close, pct_chg, hit_strategies)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (trade_date, ts_code) DO NOTHING`,
			day(p.TradeDate), p.TsCode, p.Name, p.Score, p.Close, p.PctChg, p.HitStrategies)
	}
	br := tx.SendBatch(ctx, b)
	for range picks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return wrapWrite("strategy_picks", err)
		}
	}
	if err := br.Close(); err != nil {
		return wrapWrite("strategy_picks", err)
	}
	return tx.Commit(ctx)
}

// PlanRepo trade_plans 表仓储。
type PlanRepo struct {
	pool PgxPool
}

// InsertPlans 批量写入交易计划，重复 (ts_code, plan_date, source_strategy)
// 忽略，单事务。
func (r *PlanRepo) InsertPlans(ctx context.Context, plans []PlanRecord) error {
	if len(plans) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapWrite("trade_plans", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, p := range plans {
		b.Queue(`
			INSERT INTO trade_plans
				(plan_date, valid_date, ts_code, name, source_strategy,
				 plan_type, direction, trigger_price, stop_loss, take_profit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (ts_code, plan_date, source_strategy) DO NOTHING`,
			day(p.PlanDate), day(p.ValidDate), p.TsCode, p.Name, p.SourceStrategy,
			p.PlanType, p.Direction, p.TriggerPrice, p.StopLoss, p.TakeProfit)
	}
	br := tx.SendBatch(ctx, b)
	for range plans {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return wrapWrite("trade_plans", err)
		}
	}
	if err := br.Close(); err != nil {
		return wrapWrite("trade_plans", err)
	}
	return tx.Commit(ctx)
}
