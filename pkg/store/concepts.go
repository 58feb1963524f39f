package store

import (
	"context"
	"time"
)

// ConceptRepo 概念板块仓储，实现 strategy.ConceptSource。
type ConceptRepo struct {
	pool PgxPool
}

// StrongSectors 取动量窗口内累计涨幅排名前 topPct 的概念板块，
// 展开为成分股 ts_code 集合。排名用 PERCENT_RANK，窗口为截至
// targetDate（含）的 momentumDays 个交易日。
func (r *ConceptRepo) StrongSectors(ctx context.Context, targetDate time.Time, topPct float64, momentumDays int) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		WITH win AS (
			SELECT cal_date FROM trade_calendar
			WHERE is_open AND cal_date <= $1
			ORDER BY cal_date DESC LIMIT $2
		),
		momentum AS (
			SELECT c.ts_code, SUM(c.pct_chg) AS cum_chg
			FROM concept_daily c
			JOIN win w ON w.cal_date = c.trade_date
			GROUP BY c.ts_code
		),
		ranked AS (
			SELECT ts_code,
			       PERCENT_RANK() OVER (ORDER BY cum_chg DESC) AS pr
			FROM momentum
		)
		SELECT DISTINCT m.con_code
		FROM ranked r
		JOIN concept_members m ON m.concept_code = r.ts_code
		WHERE r.pr <= $3`,
		day(targetDate), momentumDays, topPct)
	if err != nil {
		return nil, wrapQuery("concept_daily 强势板块", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, wrapQuery("concept_daily 强势板块扫描", err)
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}
