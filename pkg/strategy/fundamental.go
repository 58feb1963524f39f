package strategy

import "stockpick/pkg/market"

// 基本面策略：估值、成长、财务安全、现金流、综合评分。
// 统一消费快照上联结的最新一期财务指标；缺失值按中性填充后判否。

func init() {
	registerRow(Meta{
		Name:          "low-pe-high-roe",
		DisplayName:   "低估值高成长",
		Category:      CategoryFundamental,
		Description:   "市盈率低于30，ROE高于15%，利润同比增长超20%",
		DefaultParams: Params{"pe_max": 30, "roe_min": 15, "profit_growth_min": 20},
	}, lowPEHighROE)

	registerRow(Meta{
		Name:          "high-dividend",
		DisplayName:   "高股息",
		Category:      CategoryFundamental,
		Description:   "股息率高于3%，市盈率低于20",
		DefaultParams: Params{"min_dividend_yield": 3.0, "pe_max": 20},
	}, highDividend)

	registerRow(Meta{
		Name:          "pb-value",
		DisplayName:   "PB低估值",
		Category:      CategoryFundamental,
		Description:   "市净率低于2倍，适合重资产行业价值投资",
		DefaultParams: Params{"pb_max": 2.0},
	}, pbValue)

	registerRow(Meta{
		Name:          "peg-value",
		DisplayName:   "PEG估值",
		Category:      CategoryFundamental,
		Description:   "PEG低于1，成长性被低估",
		DefaultParams: Params{"peg_max": 1.0},
	}, pegValue)

	registerRow(Meta{
		Name:          "ps-value",
		DisplayName:   "市销率低估值",
		Category:      CategoryFundamental,
		Description:   "市销率低于3倍，适合高成长公司",
		DefaultParams: Params{"ps_max": 3.0},
	}, psValue)

	registerRow(Meta{
		Name:          "growth-stock",
		DisplayName:   "成长股",
		Category:      CategoryFundamental,
		Description:   "营收和利润同比增长均超过20%",
		DefaultParams: Params{"revenue_growth_min": 20, "profit_growth_min": 20},
	}, growthStock)

	registerRow(Meta{
		Name:          "financial-safety",
		DisplayName:   "财务安全",
		Category:      CategoryFundamental,
		Description:   "资产负债率低于60%，流动比率高于1.5",
		DefaultParams: Params{"debt_ratio_max": 60, "current_ratio_min": 1.5},
	}, financialSafety)

	registerRow(Meta{
		Name:          "gross-margin-up",
		DisplayName:   "毛利率提升",
		Category:      CategoryFundamental,
		Description:   "毛利率高于30%，盈利能力强",
		DefaultParams: Params{"gross_margin_min": 30.0},
	}, grossMarginUp)

	registerRow(Meta{
		Name:          "cashflow-quality",
		DisplayName:   "现金流质量",
		Category:      CategoryFundamental,
		Description:   "每股经营现金流大于每股收益，现金流质量高",
		DefaultParams: Params{"ocf_eps_ratio_min": 1.0},
	}, cashflowQuality)

	registerRow(Meta{
		Name:          "cashflow-coverage",
		DisplayName:   "经营现金流覆盖",
		Category:      CategoryFundamental,
		Description:   "经营现金流充裕且流动比率达标",
		DefaultParams: Params{"ocf_min": 0.5, "current_ratio_min": 1.0},
	}, cashflowCoverage)

	registerRow(Meta{
		Name:          "profit-continuous-growth",
		DisplayName:   "净利润连续增长",
		Category:      CategoryFundamental,
		Description:   "利润同比增长率持续为正，成长性好",
		DefaultParams: Params{"profit_growth_min": 5.0},
	}, profitContinuousGrowth)

	registerRow(Meta{
		Name:          "quality-score",
		DisplayName:   "综合质量评分",
		Category:      CategoryFundamental,
		Description:   "ROE+成长+安全+估值多因子加权评分",
		DefaultParams: Params{"score_min": 60.0},
	}, qualityScore)
}

// fund 财务字段取值，整行缺失时按传入默认值处理
func fund(r *market.SnapshotRow, pick func(f *market.Fundamental) *float64, def float64) float64 {
	if r.Fund == nil {
		return def
	}
	return fv(pick(r.Fund), def)
}

func lowPEHighROE(r *market.SnapshotRow, p Params) bool {
	pe := fund(r, func(f *market.Fundamental) *float64 { return f.PeTTM }, -1)
	roe := fund(r, func(f *market.Fundamental) *float64 { return f.ROE }, 0)
	profitYoY := fund(r, func(f *market.Fundamental) *float64 { return f.ProfitYoY }, 0)

	return pe > 0 && pe < p.Get("pe_max", 30) &&
		roe >= p.Get("roe_min", 15) &&
		profitYoY >= p.Get("profit_growth_min", 20)
}

func highDividend(r *market.SnapshotRow, p Params) bool {
	yield := fund(r, func(f *market.Fundamental) *float64 { return f.DividendYield }, 0)
	pe := fund(r, func(f *market.Fundamental) *float64 { return f.PeTTM }, -1)
	return yield >= p.Get("min_dividend_yield", 3.0) &&
		pe > 0 && pe < p.Get("pe_max", 20)
}

func pbValue(r *market.SnapshotRow, p Params) bool {
	pb := fund(r, func(f *market.Fundamental) *float64 { return f.PB }, -1)
	return pb > 0 && pb < p.Get("pb_max", 2.0)
}

func pegValue(r *market.SnapshotRow, p Params) bool {
	pe := fund(r, func(f *market.Fundamental) *float64 { return f.PeTTM }, -1)
	profitYoY := fund(r, func(f *market.Fundamental) *float64 { return f.ProfitYoY }, -1)
	if pe <= 0 || profitYoY <= 0 {
		return false
	}
	return pe/profitYoY < p.Get("peg_max", 1.0)
}

func psValue(r *market.SnapshotRow, p Params) bool {
	ps := fund(r, func(f *market.Fundamental) *float64 { return f.PsTTM }, -1)
	return ps > 0 && ps < p.Get("ps_max", 3.0)
}

func growthStock(r *market.SnapshotRow, p Params) bool {
	revYoY := fund(r, func(f *market.Fundamental) *float64 { return f.RevenueYoY }, 0)
	profitYoY := fund(r, func(f *market.Fundamental) *float64 { return f.ProfitYoY }, 0)
	return revYoY >= p.Get("revenue_growth_min", 20) &&
		profitYoY >= p.Get("profit_growth_min", 20)
}

func financialSafety(r *market.SnapshotRow, p Params) bool {
	debtRatio := fund(r, func(f *market.Fundamental) *float64 { return f.DebtRatio }, 100)
	currentRatio := fund(r, func(f *market.Fundamental) *float64 { return f.CurrentRatio }, 0)
	return debtRatio < p.Get("debt_ratio_max", 60) &&
		currentRatio >= p.Get("current_ratio_min", 1.5)
}

func grossMarginUp(r *market.SnapshotRow, p Params) bool {
	gm := fund(r, func(f *market.Fundamental) *float64 { return f.GrossMargin }, 0)
	return gm >= p.Get("gross_margin_min", 30.0)
}

func cashflowQuality(r *market.SnapshotRow, p Params) bool {
	ocf := fund(r, func(f *market.Fundamental) *float64 { return f.OCFPerShare }, 0)
	eps := fund(r, func(f *market.Fundamental) *float64 { return f.EPS }, 0)
	if eps <= 0 || ocf <= 0 {
		return false
	}
	return ocf/eps >= p.Get("ocf_eps_ratio_min", 1.0)
}

func cashflowCoverage(r *market.SnapshotRow, p Params) bool {
	ocf := fund(r, func(f *market.Fundamental) *float64 { return f.OCFPerShare }, 0)
	cr := fund(r, func(f *market.Fundamental) *float64 { return f.CurrentRatio }, 0)
	return ocf >= p.Get("ocf_min", 0.5) && cr >= p.Get("current_ratio_min", 1.0)
}

func profitContinuousGrowth(r *market.SnapshotRow, p Params) bool {
	profitYoY := fund(r, func(f *market.Fundamental) *float64 { return f.ProfitYoY }, -999)
	return profitYoY >= p.Get("profit_growth_min", 5.0)
}

// qualityScore 多因子加权：ROE 30% + 成长 25% + 安全 25% + 估值 20%。
// 任一关键因子缺失或 PE 非正时不评分。
func qualityScore(r *market.SnapshotRow, p Params) bool {
	if r.Fund == nil ||
		r.Fund.ROE == nil || r.Fund.ProfitYoY == nil ||
		r.Fund.DebtRatio == nil || r.Fund.PeTTM == nil || *r.Fund.PeTTM <= 0 {
		return false
	}

	total := scoreBand(*r.Fund.ROE, []band{{20, 100}, {15, 80}, {10, 60}, {5, 40}}, true)*0.30 +
		scoreBand(*r.Fund.ProfitYoY, []band{{30, 100}, {20, 80}, {10, 60}, {0, 40}}, true)*0.25 +
		scoreBand(*r.Fund.DebtRatio, []band{{30, 100}, {40, 80}, {50, 60}, {60, 40}}, false)*0.25 +
		scoreBand(*r.Fund.PeTTM, []band{{10, 100}, {15, 80}, {20, 60}, {30, 40}}, false)*0.20

	return total >= p.Get("score_min", 60.0)
}

type band struct {
	threshold float64
	score     float64
}

// scoreBand 分段打分：gte 模式取首个 value >= threshold 的分值，
// 否则取首个 value <= threshold 的分值，兜底 20 分。
func scoreBand(value float64, bands []band, gte bool) float64 {
	for _, b := range bands {
		if gte && value >= b.threshold {
			return b.score
		}
		if !gte && value <= b.threshold {
			return b.score
		}
	}
	return 20.0
}
