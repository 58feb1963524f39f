package strategy

import (
	"math"

	"stockpick/pkg/market"
)

// 超跌反弹类技术策略：RSI、KDJ、布林带、CCI、Williams %R、BIAS。

var inf = math.Inf(1)

func init() {
	registerRow(Meta{
		Name:          "rsi-oversold",
		DisplayName:   "RSI超卖反弹",
		Category:      CategoryTechnical,
		Description:   "RSI 从超卖区域回升，发出反弹买入信号",
		DefaultParams: Params{"period": 6, "oversold": 20, "bounce": 30},
		ParamSpace: map[string]ParamSpec{
			"oversold": {Type: "int", Min: 15, Max: 30, Step: 5},
			"bounce":   {Type: "int", Min: 25, Max: 40, Step: 5},
		},
	}, rsiOversold)

	registerRow(Meta{
		Name:          "kdj-golden",
		DisplayName:   "KDJ金叉",
		Category:      CategoryTechnical,
		Description:   "KDJ K线上穿D线，且J值处于超卖区域",
		DefaultParams: Params{"oversold_j": 20},
	}, kdjGolden)

	registerRow(Meta{
		Name:          "boll-breakthrough",
		DisplayName:   "布林带突破",
		Category:      CategoryTechnical,
		Description:   "价格从布林带下轨下方回升，发出超跌反弹信号",
		DefaultParams: Params{},
	}, bollBreakthrough)

	registerRow(Meta{
		Name:          "cci-oversold",
		DisplayName:   "CCI超买超卖",
		Category:      CategoryTechnical,
		Description:   "CCI 从超卖区（<-100）反弹至 -80 以上",
		DefaultParams: Params{"oversold": -100, "bounce": -80},
	}, cciOversold)

	registerRow(Meta{
		Name:          "williams-r",
		DisplayName:   "Williams %R超卖反弹",
		Category:      CategoryTechnical,
		Description:   "Williams %R 从超卖区（<-80）反弹至 -50 以上",
		DefaultParams: Params{"oversold": -80, "bounce": -50},
	}, williamsR)

	registerRow(Meta{
		Name:          "bias-oversold",
		DisplayName:   "BIAS乖离率",
		Category:      CategoryTechnical,
		Description:   "BIAS 乖离率达到超卖极值（<-6%），预期均值回归",
		DefaultParams: Params{"oversold_bias": -6.0},
	}, biasOversold)
}

func rsiOversold(r *market.SnapshotRow, p Params) bool {
	period := p.GetInt("period", 6)
	oversold := p.Get("oversold", 20)
	bounce := p.Get("bounce", 30)

	cur := fv(r.RSI(period), 50)
	prev := fv(r.RSIPrev(period), 50)
	return prev <= oversold && cur > bounce
}

func kdjGolden(r *market.SnapshotRow, p Params) bool {
	oversoldJ := p.Get("oversold_j", 20)
	cross := fv(r.KdjKPrev, 50) <= fv(r.KdjDPrev, 50) &&
		fv(r.Ind.KdjK, 50) > fv(r.Ind.KdjD, 50)
	return cross && fv(r.Ind.KdjJ, 50) < oversoldJ
}

func bollBreakthrough(r *market.SnapshotRow, _ Params) bool {
	return fv(r.ClosePrev, 0) <= fv(r.BollLowerPrev, 0) &&
		r.Close > fv(r.Ind.BollLower, 0)
}

func cciOversold(r *market.SnapshotRow, p Params) bool {
	oversold := p.Get("oversold", -100)
	bounce := p.Get("bounce", -80)
	return fv(r.CCIPrev, 0) <= oversold && fv(r.Ind.CCI, 0) > bounce
}

func williamsR(r *market.SnapshotRow, p Params) bool {
	oversold := p.Get("oversold", -80)
	bounce := p.Get("bounce", -50)
	return fv(r.WRPrev, 0) <= oversold && fv(r.Ind.WR, 0) > bounce
}

func biasOversold(r *market.SnapshotRow, p Params) bool {
	return fv(r.Ind.BIAS, 0) <= p.Get("oversold_bias", -6.0)
}
