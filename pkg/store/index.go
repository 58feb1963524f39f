package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"stockpick/pkg/strategy"
)

// IndexRepo 指数行情与指标仓储，实现 strategy.IndexSource。
type IndexRepo struct {
	pool PgxPool
}

// IndexOnDate 指数某日收盘价与大盘过滤所需指标。
func (r *IndexRepo) IndexOnDate(ctx context.Context, indexCode string, date time.Time) (strategy.IndexSnapshot, bool, error) {
	var snap strategy.IndexSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT d.close, t.ma20, t.ma60, t.macd_dif
		FROM index_daily d
		LEFT JOIN index_technical_daily t
		  ON t.ts_code = d.ts_code AND t.trade_date = d.trade_date
		WHERE d.ts_code = $1 AND d.trade_date = $2`,
		indexCode, day(date)).Scan(&snap.Close, &snap.MA20, &snap.MA60, &snap.MACDDif)
	if errors.Is(err, pgx.ErrNoRows) {
		return strategy.IndexSnapshot{}, false, nil
	}
	if err != nil {
		return strategy.IndexSnapshot{}, false, wrapQuery("index_daily", err)
	}
	return snap, true, nil
}
