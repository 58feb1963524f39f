package pipeline

import (
	"context"
	"time"

	"stockpick/pkg/market"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
)

// 计划类型：主策略决定买点与止损的计算规则。
const (
	PlanBreakout      = "breakout"
	PlanReversal      = "reversal"
	PlanValue         = "value"
	PlanVolumeSignal  = "volume_signal"
	PlanStabilization = "stabilization"
)

var planTypeOf = map[string]string{
	"ma-long-arrange":    PlanBreakout,
	"boll-breakthrough":  PlanBreakout,
	"donchian-breakout":  PlanBreakout,
	"volume-breakout":    PlanBreakout,

	"rsi-oversold":               PlanReversal,
	"volume-contraction-pullback": PlanReversal,
	"first-negative-reversal":     PlanReversal,

	"low-pe-high-roe":  PlanValue,
	"high-dividend":    PlanValue,
	"pb-value":         PlanValue,
	"financial-safety": PlanValue,

	"shrink-volume-rise":        PlanVolumeSignal,
	"volume-price-stable":       PlanVolumeSignal,
	"extreme-shrink-bottom":     PlanVolumeSignal,
	"volume-surge-continuation": PlanVolumeSignal,
	"pullback-half-rule":        PlanVolumeSignal,

	strategy.NameVolumePricePattern: PlanStabilization,
}

// classifyPlan 以第一个有明确归类的命中策略为主策略，默认突破型。
func classifyPlan(hitStrategies []string) (source, planType string) {
	for _, name := range hitStrategies {
		if t, ok := planTypeOf[name]; ok {
			return name, t
		}
	}
	if len(hitStrategies) > 0 {
		return hitStrategies[0], PlanBreakout
	}
	return "", PlanBreakout
}

// buildPlans 为每只入选股票生成买卖计划，生效日为下一交易日。
func (p *Pipeline) buildPlans(ctx context.Context, targetDate time.Time, picks []Pick, snap *market.Snapshot) ([]store.PlanRecord, error) {
	if len(picks) == 0 {
		return nil, nil
	}
	validDate, err := p.store.Calendar.NextOpenDay(ctx, targetDate)
	if err != nil {
		return nil, err
	}

	rowByCode := make(map[string]*market.SnapshotRow, len(snap.Rows))
	for i := range snap.Rows {
		rowByCode[snap.Rows[i].TsCode] = &snap.Rows[i]
	}

	var t0Lows map[string]float64
	plans := make([]store.PlanRecord, 0, len(picks))

	for _, pk := range picks {
		row, ok := rowByCode[pk.TsCode]
		if !ok {
			continue
		}
		source, planType := classifyPlan(pk.Strategies)

		var trigger, stop float64
		switch planType {
		case PlanBreakout:
			high20, _, err := p.store.Bars.RecentExtremes(ctx, pk.TsCode, targetDate, 20)
			if err != nil {
				return nil, err
			}
			trigger = max3(high20, pf(row.Ind.BollUpper), pf(row.Ind.DonchianUpper))
			stop = max2(pf(row.Ind.MA20), pf(row.Ind.BollMid))

		case PlanReversal:
			_, low20, err := p.store.Bars.RecentExtremes(ctx, pk.TsCode, targetDate, 20)
			if err != nil {
				return nil, err
			}
			trigger = row.Close
			stop = low20

		case PlanValue:
			trigger = row.Close * 0.98
			stop = row.Close * 0.95

		case PlanVolumeSignal:
			trigger = row.Close
			stop = pf(row.Ind.MA20)

		case PlanStabilization:
			if t0Lows == nil {
				t0Lows, err = p.store.Watchpool.TriggeredOn(ctx, targetDate, strategy.NameVolumePricePattern)
				if err != nil {
					return nil, err
				}
			}
			trigger = row.Close
			stop = t0Lows[pk.TsCode]
		}

		if trigger <= 0 {
			continue
		}
		plan := store.PlanRecord{
			PlanDate:       targetDate,
			ValidDate:      validDate,
			TsCode:         pk.TsCode,
			Name:           pk.Name,
			SourceStrategy: source,
			PlanType:       planType,
			Direction:      "buy",
			TriggerPrice:   trigger,
			StopLoss:       stop,
		}
		if trigger > stop && stop > 0 {
			tp := trigger + 2.0*(trigger-stop)
			plan.TakeProfit = &tp
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func pf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c float64) float64 {
	return max2(a, max2(b, c))
}
