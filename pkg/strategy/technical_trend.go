package strategy

import "stockpick/pkg/market"

// 趋势类技术策略：均线金叉、MACD 金叉、均线多头排列、MACD 底背离。

func init() {
	registerRow(Meta{
		Name:          "ma-cross",
		DisplayName:   "均线金叉",
		Category:      CategoryTechnical,
		Description:   "短期均线上穿长期均线，且成交量放大",
		DefaultParams: Params{"fast": 5, "slow": 10, "vol_ratio": 1.5},
		ParamSpace: map[string]ParamSpec{
			"fast":      {Type: "int", Min: 5, Max: 10, Step: 5},
			"slow":      {Type: "int", Min: 10, Max: 60, Step: 10},
			"vol_ratio": {Type: "float", Min: 1.0, Max: 3.0, Step: 0.5},
		},
	}, maCross)

	registerRow(Meta{
		Name:          "macd-golden",
		DisplayName:   "MACD金叉",
		Category:      CategoryTechnical,
		Description:   "MACD DIF 线上穿 DEA 线，发出买入信号",
		DefaultParams: Params{},
	}, macdGolden)

	registerRow(Meta{
		Name:          "ma-long-arrange",
		DisplayName:   "均线多头排列",
		Category:      CategoryTechnical,
		Description:   "MA5 > MA10 > MA20 > MA60，强势上涨趋势",
		DefaultParams: Params{},
	}, maLongArrange)

	registerRow(Meta{
		Name:          "macd-divergence",
		DisplayName:   "MACD底背离",
		Category:      CategoryTechnical,
		Description:   "价格创近期新低但MACD DIF未创新低，下跌动能减弱",
		DefaultParams: Params{"lookback": 20},
	}, macdDivergence)
}

// maCross 金叉：昨日短期 <= 长期，今日短期 > 长期，且放量。
func maCross(r *market.SnapshotRow, p Params) bool {
	fast := p.GetInt("fast", 5)
	slow := p.GetInt("slow", 10)
	minVolRatio := p.Get("vol_ratio", 1.5)

	cross := fv(r.MAPrev(fast), 0) <= fv(r.MAPrev(slow), 0) &&
		fv(r.MA(fast), 0) > fv(r.MA(slow), 0)
	volumeOK := fv(r.Ind.VolRatio, 0) >= minVolRatio
	return cross && volumeOK
}

func macdGolden(r *market.SnapshotRow, _ Params) bool {
	return fv(r.MACDDifPrev, 0) <= fv(r.MACDDeaPrev, 0) &&
		fv(r.Ind.MACDDif, 0) > fv(r.Ind.MACDDea, 0)
}

func maLongArrange(r *market.SnapshotRow, _ Params) bool {
	ma5 := fv(r.Ind.MA5, 0)
	ma10 := fv(r.Ind.MA10, 0)
	ma20 := fv(r.Ind.MA20, 0)
	ma60 := fv(r.Ind.MA60, 0)
	return ma5 > ma10 && ma10 > ma20 && ma20 > ma60 && ma60 > 0
}

// macdDivergence 简化判定：收盘不高于前期低点而 DIF 走高。
func macdDivergence(r *market.SnapshotRow, _ Params) bool {
	prevCloseMin := fv(r.ClosePrev, inf)
	prevDifMin := fv(r.MACDDifPrev, 0)
	return r.Close <= prevCloseMin && fv(r.Ind.MACDDif, 0) > prevDifMin
}
