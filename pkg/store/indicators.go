package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"stockpick/pkg/market"
)

// IndicatorRepo technical_daily 表仓储，实现 market.IndicatorSource。
type IndicatorRepo struct {
	pool PgxPool
}

const indicatorColumns = `ts_code, trade_date,
	ma5, ma10, ma20, ma60, ma120, ma250,
	macd_dif, macd_dea, macd_hist,
	kdj_k, kdj_d, kdj_j,
	rsi6, rsi12, rsi24,
	boll_upper, boll_mid, boll_lower,
	vol_ma5, vol_ma10, vol_ratio,
	atr14, cci, wr, bias, obv,
	donchian_upper, donchian_lower`

// IndicatorsOnDate 某日全市场指标截面。
func (r *IndicatorRepo) IndicatorsOnDate(ctx context.Context, date time.Time) (map[string]market.IndicatorRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+indicatorColumns+`
		FROM technical_daily WHERE trade_date = $1`,
		day(date))
	if err != nil {
		return nil, wrapQuery("technical_daily 截面", err)
	}
	defer rows.Close()

	out := make(map[string]market.IndicatorRow)
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out[ind.TsCode] = ind
	}
	return out, rows.Err()
}

// IndicatorsByRange 单只股票区间指标，按日期升序。
func (r *IndicatorRepo) IndicatorsByRange(ctx context.Context, tsCode string, start, end time.Time) ([]market.IndicatorRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+indicatorColumns+`
		FROM technical_daily
		WHERE ts_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC`,
		tsCode, day(start), day(end))
	if err != nil {
		return nil, wrapQuery("technical_daily 区间", err)
	}
	defer rows.Close()

	var out []market.IndicatorRow
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func scanIndicator(rows pgx.Rows) (market.IndicatorRow, error) {
	var ind market.IndicatorRow
	err := rows.Scan(&ind.TsCode, &ind.TradeDate,
		&ind.MA5, &ind.MA10, &ind.MA20, &ind.MA60, &ind.MA120, &ind.MA250,
		&ind.MACDDif, &ind.MACDDea, &ind.MACDHist,
		&ind.KdjK, &ind.KdjD, &ind.KdjJ,
		&ind.RSI6, &ind.RSI12, &ind.RSI24,
		&ind.BollUpper, &ind.BollMid, &ind.BollLower,
		&ind.VolMA5, &ind.VolMA10, &ind.VolRatio,
		&ind.ATR14, &ind.CCI, &ind.WR, &ind.BIAS, &ind.OBV,
		&ind.DonchianUpper, &ind.DonchianLower)
	if err != nil {
		return market.IndicatorRow{}, wrapQuery("technical_daily 扫描", err)
	}
	return ind, nil
}
