package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"stockpick/pkg/logger"
	"stockpick/pkg/strategy"
)

// WatchpoolRepo strategy_watchpool 表仓储，实现 strategy.WatchPool。
// 状态机推进全部在 SQL 内完成，stopped 判定先于 expired。
type WatchpoolRepo struct {
	pool PgxPool
}

// VerifyAccumulation 校验候选 T0 前的蓄势区间：目标日之前
// accumDays 个交易日窗口内 (max(high)-min(low))/min(low) <= maxRange。
func (r *WatchpoolRepo) VerifyAccumulation(ctx context.Context, codes []string, targetDate time.Time, accumDays int, maxRange float64) (map[string]struct{}, error) {
	if len(codes) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		WITH win AS (
			SELECT cal_date FROM trade_calendar
			WHERE is_open AND cal_date < $2
			ORDER BY cal_date DESC LIMIT $3
		)
		SELECT d.ts_code
		FROM stock_daily d
		JOIN win w ON w.cal_date = d.trade_date
		WHERE d.ts_code = ANY($1) AND d.vol > 0
		GROUP BY d.ts_code
		HAVING MIN(d.low) > 0
		   AND (MAX(d.high) - MIN(d.low)) / MIN(d.low) <= $4`,
		codes, day(targetDate), accumDays, maxRange)
	if err != nil {
		return nil, wrapQuery("strategy_watchpool 蓄势校验", err)
	}
	defer rows.Close()

	out := make(map[string]struct{}, len(codes))
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, wrapQuery("strategy_watchpool 蓄势校验扫描", err)
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

// InsertT0Batch 批量入池，唯一键 (ts_code, t0_date, strategy_name) 冲突忽略。
func (r *WatchpoolRepo) InsertT0Batch(ctx context.Context, entries []strategy.T0Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(`
			INSERT INTO strategy_watchpool
				(ts_code, strategy_name, t0_date, t0_close, t0_open, t0_low,
				 t0_volume, t0_pct_chg, status, washout_days,
				 sector_score, market_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'watching', 0, $9, $10)
			ON CONFLICT (ts_code, t0_date, strategy_name) DO NOTHING`,
			e.TsCode, e.StrategyName, day(e.T0Date), e.T0Close, e.T0Open, e.T0Low,
			e.T0Volume, e.T0PctChg, e.SectorScore, e.MarketScore)
	}
	br := r.pool.SendBatch(ctx, b)
	defer br.Close()

	inserted := 0
	for range entries {
		tag, err := br.Exec()
		if err != nil {
			return inserted, wrapWrite("strategy_watchpool 入池", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Advance 以目标日行情推进 watching 条目：
// 最低价跌破 T0 开盘价转 stopped，洗盘超期转 expired，
// 其余洗盘天数 +1 并更新运行最小量价。
func (r *WatchpoolRepo) Advance(ctx context.Context, targetDate time.Time, maxWashoutDays int) (strategy.WatchStats, error) {
	var stats strategy.WatchStats

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return stats, wrapWrite("strategy_watchpool 推进", err)
	}
	defer tx.Rollback(ctx)

	td := day(targetDate)

	tag, err := tx.Exec(ctx, `
		UPDATE strategy_watchpool wp
		SET status = 'stopped', updated_at = now()
		FROM stock_daily d
		WHERE wp.status = 'watching' AND wp.t0_date < $1
		  AND d.ts_code = wp.ts_code AND d.trade_date = $1
		  AND d.low < wp.t0_open`, td)
	if err != nil {
		return stats, wrapWrite("strategy_watchpool 止损", err)
	}
	stats.Stopped = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `
		UPDATE strategy_watchpool wp
		SET status = 'expired', updated_at = now()
		FROM stock_daily d
		WHERE wp.status = 'watching' AND wp.t0_date < $1
		  AND d.ts_code = wp.ts_code AND d.trade_date = $1
		  AND wp.washout_days + 1 > $2`, td, maxWashoutDays)
	if err != nil {
		return stats, wrapWrite("strategy_watchpool 过期", err)
	}
	stats.Expired = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `
		UPDATE strategy_watchpool wp
		SET washout_days = wp.washout_days + 1,
		    min_washout_vol = LEAST(COALESCE(wp.min_washout_vol, d.vol), d.vol),
		    min_washout_low = LEAST(COALESCE(wp.min_washout_low, d.low), d.low),
		    updated_at = now()
		FROM stock_daily d
		WHERE wp.status = 'watching' AND wp.t0_date < $1
		  AND d.ts_code = wp.ts_code AND d.trade_date = $1`, td)
	if err != nil {
		return stats, wrapWrite("strategy_watchpool 洗盘更新", err)
	}
	stats.Updated = int(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return stats, wrapWrite("strategy_watchpool 推进提交", err)
	}
	logger.WithComponent("watchpool").WithFields(map[string]interface{}{
		"date":    targetDate.Format(dateLayout),
		"stopped": stats.Stopped,
		"expired": stats.Expired,
		"updated": stats.Updated,
	}).Debug("观察池状态推进")
	return stats, nil
}

// CheckStabilization 企稳判定：洗盘天数达标、收盘守住 T0 开盘价、
// 当日缩量小振幅、最低价贴合 MA10 或 MA20，命中转 triggered。
func (r *WatchpoolRepo) CheckStabilization(ctx context.Context, targetDate time.Time, p strategy.StabilizationParams) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE strategy_watchpool wp
		SET status = 'triggered', trigger_date = $1, trigger_price = d.close,
		    updated_at = now()
		FROM stock_daily d
		LEFT JOIN technical_daily t
		  ON t.ts_code = d.ts_code AND t.trade_date = d.trade_date
		WHERE wp.status = 'watching'
		  AND d.ts_code = wp.ts_code AND d.trade_date = $1
		  AND wp.washout_days >= $2
		  AND d.close > wp.t0_open
		  AND d.close > 0
		  AND (d.high - d.low) / d.close * 100 <= $3
		  AND wp.t0_volume > 0
		  AND d.vol / wp.t0_volume <= $4
		  AND ((t.ma10 IS NOT NULL AND t.ma10 > 0 AND ABS(d.low / t.ma10 - 1) <= $5)
		    OR (t.ma20 IS NOT NULL AND t.ma20 > 0 AND ABS(d.low / t.ma20 - 1) <= $5))
		RETURNING wp.ts_code`,
		day(targetDate), p.MinWashoutDays, p.MaxTkAmplitude, p.MaxVolShrinkRatio, p.MASupportTolerance)
	if err != nil {
		return nil, wrapWrite("strategy_watchpool 企稳判定", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, wrapWrite("strategy_watchpool 企稳扫描", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// SetSectorScores 为当日触发条目记录板块共振得分。
func (r *WatchpoolRepo) SetSectorScores(ctx context.Context, targetDate time.Time, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	n := 0
	for code, score := range scores {
		b.Queue(`
			UPDATE strategy_watchpool
			SET sector_score = $3, updated_at = now()
			WHERE ts_code = $1 AND trigger_date = $2 AND status = 'triggered'`,
			code, day(targetDate), score)
		n++
	}
	br := r.pool.SendBatch(ctx, b)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return wrapWrite("strategy_watchpool 板块得分", err)
		}
	}
	return nil
}

// TriggeredOn 某日触发的条目，供交易计划生成取 T0 低点。
func (r *WatchpoolRepo) TriggeredOn(ctx context.Context, targetDate time.Time, strategyName string) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, t0_low FROM strategy_watchpool
		WHERE trigger_date = $1 AND strategy_name = $2 AND status = 'triggered'`,
		day(targetDate), strategyName)
	if err != nil {
		return nil, wrapQuery("strategy_watchpool 触发查询", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var code string
		var t0Low float64
		if err := rows.Scan(&code, &t0Low); err != nil {
			return nil, wrapQuery("strategy_watchpool 触发扫描", err)
		}
		out[code] = t0Low
	}
	return out, rows.Err()
}
