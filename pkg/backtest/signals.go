package backtest

import (
	"context"

	"stockpick/pkg/market"
	"stockpick/pkg/strategy"
)

// BuildSignals 把选股策略回放到单只股票的历史序列上，
// 返回与 bars 等长的信号序列。第 i 位为真表示第 i 根 K 线
// 收盘后策略命中（买点在 i+1 开盘）。
// 首根 K 线没有前日数据，恒为 false。
func BuildSignals(ctx context.Context, strat strategy.Strategy, tsCode, name string,
	bars []market.DailyBar, inds []market.IndicatorRow, fund *market.Fundamental) ([]bool, error) {

	out := make([]bool, len(bars))
	env := &strategy.Env{MarketState: strategy.MarketNeutral}

	for i := 1; i < len(bars); i++ {
		row := rowAt(tsCode, name, bars, inds, fund, i)
		snap := &market.Snapshot{
			TargetDate: bars[i].TradeDate,
			PrevDate:   bars[i-1].TradeDate,
			Rows:       []market.SnapshotRow{row},
		}
		env.TargetDate = bars[i].TradeDate
		hits, err := strat.FilterBatch(ctx, snap, env)
		if err != nil {
			return nil, err
		}
		out[i] = hits[0]
	}
	return out, nil
}

// rowAt 以第 i 根 K 线与其前一根拼出快照行。
func rowAt(tsCode, name string, bars []market.DailyBar, inds []market.IndicatorRow,
	fund *market.Fundamental, i int) market.SnapshotRow {

	cur, prev := bars[i], bars[i-1]
	row := market.SnapshotRow{
		TsCode:       tsCode,
		Name:         name,
		Open:         cur.Open,
		High:         cur.High,
		Low:          cur.Low,
		Close:        cur.Close,
		PctChg:       cur.PctChg,
		Vol:          cur.Vol,
		Amount:       cur.Amount,
		TurnoverRate: cur.TurnoverRate,
		ClosePrev:    &prev.Close,
		OpenPrev:     &prev.Open,
		PctChgPrev:   &prev.PctChg,
		Fund:         fund,
	}
	if i < len(inds) {
		row.Ind = inds[i]
	}
	if i-1 < len(inds) {
		p := inds[i-1]
		row.MA5Prev = p.MA5
		row.MA10Prev = p.MA10
		row.MA20Prev = p.MA20
		row.MA60Prev = p.MA60
		row.MACDDifPrev = p.MACDDif
		row.MACDDeaPrev = p.MACDDea
		row.KdjKPrev = p.KdjK
		row.KdjDPrev = p.KdjD
		row.RSI6Prev = p.RSI6
		row.RSI12Prev = p.RSI12
		row.BollLowerPrev = p.BollLower
		row.CCIPrev = p.CCI
		row.WRPrev = p.WR
		row.OBVPrev = p.OBV
		row.ATR14Prev = p.ATR14
		row.DonchianUpperPrev = p.DonchianUpper
	}
	return row
}
