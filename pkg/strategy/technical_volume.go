package strategy

import (
	"math"

	"stockpick/pkg/market"
)

// 量价形态类技术策略：缩量回调、量价背离、缩量上涨、量缩价稳、
// 首阴反包、地量见底、后量超前量、回调半分位。

func init() {
	registerRow(Meta{
		Name:          "volume-contraction-pullback",
		DisplayName:   "缩量回调",
		Category:      CategoryTechnical,
		Description:   "上升趋势中缩量回调至 MA20 支撑位",
		DefaultParams: Params{"max_vol_ratio": 0.6, "ma_tolerance": 0.02},
	}, volumeContractionPullback)

	registerRow(Meta{
		Name:          "volume-price-divergence",
		DisplayName:   "量价背离",
		Category:      CategoryTechnical,
		Description:   "价格接近近期低点但成交量显著萎缩",
		DefaultParams: Params{"lookback": 20},
	}, volumePriceDivergence)

	registerRow(Meta{
		Name:          "shrink-volume-rise",
		DisplayName:   "缩量上涨",
		Category:      CategoryTechnical,
		Description:   "上升趋势中缩量上涨，筹码锁定良好",
		DefaultParams: Params{"max_vol_ratio": 0.8, "min_pct_chg": 0.5},
	}, shrinkVolumeRise)

	registerRow(Meta{
		Name:          "volume-price-stable",
		DisplayName:   "量缩价稳",
		Category:      CategoryTechnical,
		Description:   "量缩价稳，抛压耗尽的底部企稳信号",
		DefaultParams: Params{"max_vol_ratio": 0.5, "max_pct_chg": 2.0, "ma_position": 1.02},
	}, volumePriceStable)

	registerRow(Meta{
		Name:          "first-negative-reversal",
		DisplayName:   "首阴反包",
		Category:      CategoryTechnical,
		Description:   "强势股首阴后阳线反包，多头重新占优",
		DefaultParams: Params{"min_pct_chg": 2.0, "min_vol_ratio": 1.0},
	}, firstNegativeReversal)

	registerRow(Meta{
		Name:          "extreme-shrink-bottom",
		DisplayName:   "地量见底",
		Category:      CategoryTechnical,
		Description:   "极端缩量+低换手率，阶段性底部信号",
		DefaultParams: Params{"extreme_ratio": 0.3, "max_turnover": 1.0},
	}, extremeShrinkBottom)

	registerRow(Meta{
		Name:          "volume-surge-continuation",
		DisplayName:   "后量超前量",
		Category:      CategoryTechnical,
		Description:   "资金加速流入，量能持续放大的趋势加速信号",
		DefaultParams: Params{"surge_ratio": 2.0, "vol_ma_ratio": 1.2, "min_pct_chg": 1.0},
	}, volumeSurgeContinuation)

	registerRow(Meta{
		Name:          "pullback-half-rule",
		DisplayName:   "回调半分位",
		Category:      CategoryTechnical,
		Description:   "多头排列中小幅回调不超半分位，多头力量仍强",
		DefaultParams: Params{"max_pullback_pct": 3.0, "max_vol_ratio": 0.8},
	}, pullbackHalfRule)
}

func volumeContractionPullback(r *market.SnapshotRow, p Params) bool {
	maxVolRatio := p.Get("max_vol_ratio", 0.6)
	tol := p.Get("ma_tolerance", 0.02)

	ma5 := fv(r.Ind.MA5, 0)
	ma20 := fv(r.Ind.MA20, 0)
	uptrend := ma5 > ma20
	nearMA20 := r.Close >= ma20*(1-tol) && r.Close <= ma20*(1+tol)
	lowVolume := fv(r.Ind.VolRatio, 0) <= maxVolRatio
	return uptrend && nearMA20 && lowVolume && ma20 > 0
}

func volumePriceDivergence(r *market.SnapshotRow, _ Params) bool {
	lower := fv(r.Ind.DonchianLower, 0)
	nearLow := r.Close <= lower*1.02 && lower > 0
	return nearLow && fv(r.Ind.VolRatio, 0) < 0.7
}

func shrinkVolumeRise(r *market.SnapshotRow, p Params) bool {
	maxVolRatio := p.Get("max_vol_ratio", 0.8)
	minPctChg := p.Get("min_pct_chg", 0.5)

	ma5 := fv(r.Ind.MA5, 0)
	ma20 := fv(r.Ind.MA20, 0)
	uptrend := r.Close > ma20 && ma5 > ma20
	bullish := r.Close > r.Open
	gain := r.PctChg >= minPctChg
	shrink := fv(r.Ind.VolRatio, 0) < maxVolRatio
	return uptrend && bullish && gain && shrink
}

func volumePriceStable(r *market.SnapshotRow, p Params) bool {
	maxVolRatio := p.Get("max_vol_ratio", 0.5)
	maxPctChg := p.Get("max_pct_chg", 2.0)
	maPosition := p.Get("ma_position", 1.02)

	ma20 := fv(r.Ind.MA20, 0)
	shrink := fv(r.Ind.VolRatio, 0) < maxVolRatio
	stable := math.Abs(r.PctChg) < maxPctChg
	adjusted := ma20 > 0 && r.Close <= ma20*maPosition
	notLimitDown := r.PctChg > -9.5
	return shrink && stable && adjusted && notLimitDown
}

func firstNegativeReversal(r *market.SnapshotRow, p Params) bool {
	minPctChg := p.Get("min_pct_chg", 2.0)
	minVolRatio := p.Get("min_vol_ratio", 1.0)

	closePrev := fv(r.ClosePrev, 0)
	var prevNegative bool
	switch {
	case r.OpenPrev != nil:
		prevNegative = closePrev > 0 && closePrev < *r.OpenPrev
	case r.PctChgPrev != nil:
		prevNegative = *r.PctChgPrev < 0
	default:
		// 无前日数据，条件宽松处理
		prevNegative = true
	}

	ma20 := fv(r.Ind.MA20, 0)
	uptrend := r.Close > ma20 && ma20 > 0
	bullishToday := r.Close > r.Open && r.PctChg >= minPctChg
	reversal := closePrev > 0 && r.Close > closePrev
	volumeOK := fv(r.Ind.VolRatio, 0) >= minVolRatio
	return uptrend && prevNegative && bullishToday && reversal && volumeOK
}

func extremeShrinkBottom(r *market.SnapshotRow, p Params) bool {
	extremeRatio := p.Get("extreme_ratio", 0.3)
	maxTurnover := p.Get("max_turnover", 1.0)

	extremeShrink := fv(r.Ind.VolRatio, 0) < extremeRatio
	lowTurnover := fv(r.TurnoverRate, 0) < maxTurnover
	notDoji := r.High > r.Low
	notLimitDown := r.PctChg > -9.5
	return extremeShrink && lowTurnover && notDoji && notLimitDown
}

func volumeSurgeContinuation(r *market.SnapshotRow, p Params) bool {
	surgeRatio := p.Get("surge_ratio", 2.0)
	volMARatio := p.Get("vol_ma_ratio", 1.2)
	minPctChg := p.Get("min_pct_chg", 1.0)

	volMA5 := fv(r.Ind.VolMA5, 0)
	volMA10 := fv(r.Ind.VolMA10, 0)
	surge := fv(r.Ind.VolRatio, 0) >= surgeRatio
	volAcceleration := volMA10 > 0 && volMA5/volMA10 >= volMARatio
	gain := r.PctChg >= minPctChg
	ma5 := fv(r.Ind.MA5, 0)
	ma20 := fv(r.Ind.MA20, 0)
	uptrend := ma5 > ma20 && ma20 > 0
	return surge && volAcceleration && gain && uptrend
}

func pullbackHalfRule(r *market.SnapshotRow, p Params) bool {
	maxPullback := p.Get("max_pullback_pct", 3.0)
	maxVolRatio := p.Get("max_vol_ratio", 0.8)

	ma5 := fv(r.Ind.MA5, 0)
	ma20 := fv(r.Ind.MA20, 0)
	ma60 := fv(r.Ind.MA60, 0)
	bullArrange := ma5 > ma20 && ma20 > ma60 && ma60 > 0
	pullback := r.PctChg > -maxPullback && r.PctChg < 0
	aboveMA20 := r.Close > ma20
	aboveHalf := r.Close > (ma5+ma20)/2
	shrink := fv(r.Ind.VolRatio, 0) < maxVolRatio
	return bullArrange && pullback && aboveMA20 && aboveHalf && shrink
}
