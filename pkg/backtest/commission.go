// Package backtest 实现单标的日线级回测引擎：
// 次日开盘成交、A 股摩擦成本与涨跌停约束、指标抽取。
package backtest

import "stockpick/pkg/config"

// CostModel A 股交易成本：双边佣金（有最低收费）加卖出印花税。
type CostModel struct {
	CommissionRate float64
	MinCommission  float64
	StampDutyRate  float64
}

// DefaultCostModel 万 2.5 佣金、5 元起收、千 1 印花税。
func DefaultCostModel() CostModel {
	return CostModel{
		CommissionRate: 0.00025,
		MinCommission:  5.0,
		StampDutyRate:  0.001,
	}
}

// CostModelFromConfig 从配置读取成本参数。
func CostModelFromConfig(cfg config.BacktestConfig) CostModel {
	return CostModel{
		CommissionRate: cfg.CommissionRate,
		MinCommission:  cfg.MinCommission,
		StampDutyRate:  cfg.StampDutyRate,
	}
}

// Buy 买入成本：max(成交额 × 佣金率, 最低佣金)。
func (c CostModel) Buy(turnover float64) float64 {
	fee := turnover * c.CommissionRate
	if fee < c.MinCommission {
		fee = c.MinCommission
	}
	return fee
}

// Sell 卖出成本：买入佣金口径再加印花税。
func (c CostModel) Sell(turnover float64) float64 {
	return c.Buy(turnover) + turnover*c.StampDutyRate
}
