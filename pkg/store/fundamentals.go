package store

import (
	"context"
	"time"

	"stockpick/pkg/market"
)

// FundamentalRepo 财务指标与每日估值仓储，实现 market.FundamentalSource。
type FundamentalRepo struct {
	pool PgxPool
}

// LatestFundamentals 每只股票截至 targetDate 最新一期已披露的财务指标，
// 公告日严格早于目标日以避免前视；其上叠加当日 daily_basic 估值，
// 估值仅回填缺失列。
func (r *FundamentalRepo) LatestFundamentals(ctx context.Context, targetDate time.Time) (map[string]market.Fundamental, error) {
	out := make(map[string]market.Fundamental)

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (ts_code)
		       ts_code, end_date, ann_date,
		       roe, eps, revenue_yoy, profit_yoy,
		       current_ratio, quick_ratio, debt_ratio,
		       gross_margin, net_margin, ocf_per_share
		FROM finance_indicator
		WHERE ann_date < $1
		ORDER BY ts_code, end_date DESC, ann_date DESC`,
		day(targetDate))
	if err != nil {
		return nil, wrapQuery("finance_indicator", err)
	}
	for rows.Next() {
		var f market.Fundamental
		if err := rows.Scan(&f.TsCode, &f.EndDate, &f.AnnDate,
			&f.ROE, &f.EPS, &f.RevenueYoY, &f.ProfitYoY,
			&f.CurrentRatio, &f.QuickRatio, &f.DebtRatio,
			&f.GrossMargin, &f.NetMargin, &f.OCFPerShare); err != nil {
			rows.Close()
			return nil, wrapQuery("finance_indicator 扫描", err)
		}
		out[f.TsCode] = f
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("finance_indicator", err)
	}

	vrows, err := r.pool.Query(ctx, `
		SELECT ts_code, pe_ttm, pb, ps_ttm, dv_ttm, total_mv, circ_mv
		FROM daily_basic WHERE trade_date = $1`,
		day(targetDate))
	if err != nil {
		return nil, wrapQuery("daily_basic", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var tsCode string
		var pe, pb, ps, dv, totalMV, circMV *float64
		if err := vrows.Scan(&tsCode, &pe, &pb, &ps, &dv, &totalMV, &circMV); err != nil {
			return nil, wrapQuery("daily_basic 扫描", err)
		}
		f := out[tsCode]
		f.TsCode = tsCode
		fillIfNil(&f.PeTTM, pe)
		fillIfNil(&f.PB, pb)
		fillIfNil(&f.PsTTM, ps)
		fillIfNil(&f.DividendYield, dv)
		fillIfNil(&f.TotalMV, totalMV)
		fillIfNil(&f.CircMV, circMV)
		out[tsCode] = f
	}
	return out, vrows.Err()
}

func fillIfNil(dst **float64, v *float64) {
	if *dst == nil && v != nil {
		*dst = v
	}
}
