package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"stockpick/pkg/market"
)

// BarRepo stock_daily 表仓储，实现 market.BarSource。
type BarRepo struct {
	pool PgxPool
}

const barColumns = `ts_code, trade_date, open, high, low, close, pre_close,
	pct_chg, vol, amount, turnover_rate, adj_factor`

// BarsByRange 区间日线，按日期升序。
func (r *BarRepo) BarsByRange(ctx context.Context, tsCode string, start, end time.Time) ([]market.DailyBar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM stock_daily
		WHERE ts_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC`,
		tsCode, day(start), day(end))
	if err != nil {
		return nil, wrapQuery("stock_daily 区间", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// BarsOnDate 某日全市场有成交的日线，连 stocks 取名称，排除退市。
func (r *BarRepo) BarsOnDate(ctx context.Context, date time.Time) ([]market.DailyBar, map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.ts_code, d.trade_date, d.open, d.high, d.low, d.close, d.pre_close,
		       d.pct_chg, d.vol, d.amount, d.turnover_rate, d.adj_factor, s.name
		FROM stock_daily d
		JOIN stocks s ON s.ts_code = d.ts_code
		WHERE d.trade_date = $1 AND d.vol > 0 AND s.list_status = 'L'
		ORDER BY d.ts_code ASC`,
		day(date))
	if err != nil {
		return nil, nil, wrapQuery("stock_daily 截面", err)
	}
	defer rows.Close()

	var bars []market.DailyBar
	names := make(map[string]string)
	for rows.Next() {
		var b market.DailyBar
		var name string
		if err := rows.Scan(&b.TsCode, &b.TradeDate, &b.Open, &b.High, &b.Low,
			&b.Close, &b.PreClose, &b.PctChg, &b.Vol, &b.Amount,
			&b.TurnoverRate, &b.AdjFactor, &name); err != nil {
			return nil, nil, wrapQuery("stock_daily 截面扫描", err)
		}
		bars = append(bars, b)
		names[b.TsCode] = name
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapQuery("stock_daily 截面", err)
	}
	return bars, names, nil
}

// StockNames 批量取股票名称。
func (r *BarRepo) StockNames(ctx context.Context, codes []string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ts_code, name FROM stocks WHERE ts_code = ANY($1)`, codes)
	if err != nil {
		return nil, wrapQuery("stocks", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(codes))
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, wrapQuery("stocks 扫描", err)
		}
		out[code] = name
	}
	return out, rows.Err()
}

// RecentExtremes 截至 date（含）最近 n 个交易日的最高价与最低价。
func (r *BarRepo) RecentExtremes(ctx context.Context, tsCode string, date time.Time, n int) (high, low float64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(high), 0), COALESCE(MIN(low), 0)
		FROM (
			SELECT high, low FROM stock_daily
			WHERE ts_code = $1 AND trade_date <= $2 AND vol > 0
			ORDER BY trade_date DESC LIMIT $3
		) w`,
		tsCode, day(date), n).Scan(&high, &low)
	if err != nil {
		return 0, 0, wrapQuery("stock_daily 高低点", err)
	}
	return high, low, nil
}

// ForwardCloses 自 date 之后（不含）的前 n 个交易日收盘价，升序。
// 用于前瞻收益评估。
func (r *BarRepo) ForwardCloses(ctx context.Context, tsCode string, date time.Time, n int) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT close FROM stock_daily
		WHERE ts_code = $1 AND trade_date > $2 AND vol > 0
		ORDER BY trade_date ASC LIMIT $3`,
		tsCode, day(date), n)
	if err != nil {
		return nil, wrapQuery("stock_daily 前瞻收盘", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, wrapQuery("stock_daily 前瞻收盘扫描", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBars(rows pgx.Rows) ([]market.DailyBar, error) {
	var out []market.DailyBar
	for rows.Next() {
		var b market.DailyBar
		if err := rows.Scan(&b.TsCode, &b.TradeDate, &b.Open, &b.High, &b.Low,
			&b.Close, &b.PreClose, &b.PctChg, &b.Vol, &b.Amount,
			&b.TurnoverRate, &b.AdjFactor); err != nil {
			return nil, wrapQuery("stock_daily 扫描", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
