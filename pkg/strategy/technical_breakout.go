package strategy

import "stockpick/pkg/market"

// 突破类技术策略：放量突破、唐奇安通道、ATR 波动带、OBV 能量潮。

func init() {
	registerRow(Meta{
		Name:          "volume-breakout",
		DisplayName:   "放量突破",
		Category:      CategoryTechnical,
		Description:   "价格创近期新高且成交量显著放大",
		DefaultParams: Params{"high_period": 20, "min_vol_ratio": 2.0},
		ParamSpace: map[string]ParamSpec{
			"min_vol_ratio": {Type: "float", Min: 1.5, Max: 3.0, Step: 0.5},
		},
	}, volumeBreakout)

	registerRow(Meta{
		Name:          "donchian-breakout",
		DisplayName:   "唐奇安通道突破",
		Category:      CategoryTechnical,
		Description:   "价格突破 20 日唐奇安通道上轨",
		DefaultParams: Params{"period": 20},
	}, donchianBreakout)

	registerRow(Meta{
		Name:          "atr-breakout",
		DisplayName:   "ATR波动率突破",
		Category:      CategoryTechnical,
		Description:   "价格突破 MA20 + ATR14 波动带上轨",
		DefaultParams: Params{"atr_multiplier": 1.5},
	}, atrBreakout)

	registerRow(Meta{
		Name:          "obv-breakthrough",
		DisplayName:   "OBV能量潮突破",
		Category:      CategoryTechnical,
		Description:   "OBV 突破近期高点且价格上涨确认",
		DefaultParams: Params{"lookback": 20},
	}, obvBreakthrough)
}

// volumeBreakout 无 20 日高点列时退化为收盘高出 MA20 5% 的近似判定。
func volumeBreakout(r *market.SnapshotRow, p Params) bool {
	minVolRatio := p.Get("min_vol_ratio", 2.0)
	ma20 := fv(r.Ind.MA20, 0)
	priceBreakout := ma20 > 0 && r.Close > ma20*1.05
	return priceBreakout && fv(r.Ind.VolRatio, 0) >= minVolRatio
}

func donchianBreakout(r *market.SnapshotRow, _ Params) bool {
	upper := fv(r.Ind.DonchianUpper, 0)
	breakout := fv(r.ClosePrev, 0) <= fv(r.DonchianUpperPrev, 0) && r.Close > upper
	return breakout && upper > 0
}

func atrBreakout(r *market.SnapshotRow, p Params) bool {
	mult := p.Get("atr_multiplier", 1.5)
	ma20 := fv(r.Ind.MA20, 0)
	atr := fv(r.Ind.ATR14, 0)
	upper := ma20 + atr*mult
	prevUpper := fv(r.MA20Prev, 0) + fv(r.ATR14Prev, 0)*mult
	breakout := r.Close > upper && fv(r.ClosePrev, 0) <= prevUpper
	return breakout && ma20 > 0 && atr > 0
}

func obvBreakthrough(r *market.SnapshotRow, _ Params) bool {
	return fv(r.Ind.OBV, 0) > fv(r.OBVPrev, 0) && r.Close > fv(r.ClosePrev, 0)
}
