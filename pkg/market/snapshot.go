package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockpick/pkg/logger"
)

// SnapshotCache 以目标日为键的快照缓存，由调用方持有。
type SnapshotCache map[string]*Snapshot

// SnapshotBuilder 横截面快照构建器。
//
// 对给定目标日：解析前一交易日，联结当日行情与指标、前日行情与
// 指标（Prev 后缀）、最新一期财务指标，剔除停牌股票。
type SnapshotBuilder struct {
	bars  BarSource
	inds  IndicatorSource
	funds FundamentalSource
	cal   Calendar
	log   *logger.Entry

	// ExcludeST 剔除名称含 ST 的股票（基础粗筛）
	ExcludeST bool
	// MinTurnoverRate 最低换手率（基础粗筛）
	MinTurnoverRate float64
}

// NewSnapshotBuilder 创建快照构建器
func NewSnapshotBuilder(bars BarSource, inds IndicatorSource, funds FundamentalSource, cal Calendar) *SnapshotBuilder {
	return &SnapshotBuilder{
		bars:            bars,
		inds:            inds,
		funds:           funds,
		cal:             cal,
		log:             logger.WithComponent("snapshot"),
		ExcludeST:       true,
		MinTurnoverRate: 0.001,
	}
}

// Build 构建 targetDate 的市场快照。cache 非 nil 时命中直接返回，
// 未命中则构建后回填。
func (b *SnapshotBuilder) Build(ctx context.Context, targetDate time.Time, cache SnapshotCache) (*Snapshot, error) {
	key := DateKey(targetDate)
	if cache != nil {
		if snap, ok := cache[key]; ok {
			return snap, nil
		}
	}

	prevDate, err := b.cal.PrevOpenDay(ctx, targetDate)
	if err != nil {
		return nil, WrapMarketError(ErrNoPrevDay,
			fmt.Sprintf("resolve prev open day of %s", key), err)
	}

	curBars, names, err := b.bars.BarsOnDate(ctx, targetDate)
	if err != nil {
		return nil, WrapMarketError(ErrEmptySnapshot,
			fmt.Sprintf("load bars on %s", key), err)
	}
	prevBars, _, err := b.bars.BarsOnDate(ctx, prevDate)
	if err != nil {
		return nil, WrapMarketError(ErrEmptySnapshot,
			fmt.Sprintf("load bars on %s", DateKey(prevDate)), err)
	}
	curInds, err := b.inds.IndicatorsOnDate(ctx, targetDate)
	if err != nil {
		return nil, WrapMarketError(ErrEmptySnapshot,
			fmt.Sprintf("load indicators on %s", key), err)
	}
	prevInds, err := b.inds.IndicatorsOnDate(ctx, prevDate)
	if err != nil {
		return nil, WrapMarketError(ErrEmptySnapshot,
			fmt.Sprintf("load indicators on %s", DateKey(prevDate)), err)
	}
	funds, err := b.funds.LatestFundamentals(ctx, targetDate)
	if err != nil {
		return nil, WrapMarketError(ErrEmptySnapshot,
			fmt.Sprintf("load fundamentals on %s", key), err)
	}

	prevByCode := make(map[string]DailyBar, len(prevBars))
	for _, pb := range prevBars {
		prevByCode[pb.TsCode] = pb
	}

	snap := &Snapshot{
		TargetDate: targetDate,
		PrevDate:   prevDate,
		Rows:       make([]SnapshotRow, 0, len(curBars)),
	}

	for _, bar := range curBars {
		if bar.Vol <= 0 {
			continue
		}
		name := names[bar.TsCode]
		if b.ExcludeST && strings.Contains(strings.ToUpper(name), "ST") {
			continue
		}
		if b.MinTurnoverRate > 0 && bar.TurnoverRate != nil && *bar.TurnoverRate < b.MinTurnoverRate {
			continue
		}

		row := SnapshotRow{
			TsCode:       bar.TsCode,
			Name:         name,
			Open:         bar.Open,
			High:         bar.High,
			Low:          bar.Low,
			Close:        bar.Close,
			PctChg:       bar.PctChg,
			Vol:          bar.Vol,
			Amount:       bar.Amount,
			TurnoverRate: bar.TurnoverRate,
		}
		if ind, ok := curInds[bar.TsCode]; ok {
			row.Ind = ind
		}
		if pb, ok := prevByCode[bar.TsCode]; ok {
			row.ClosePrev = ptr(pb.Close)
			row.OpenPrev = ptr(pb.Open)
			row.PctChgPrev = ptr(pb.PctChg)
		}
		if pi, ok := prevInds[bar.TsCode]; ok {
			row.MA5Prev = pi.MA5
			row.MA10Prev = pi.MA10
			row.MA20Prev = pi.MA20
			row.MA60Prev = pi.MA60
			row.MACDDifPrev = pi.MACDDif
			row.MACDDeaPrev = pi.MACDDea
			row.KdjKPrev = pi.KdjK
			row.KdjDPrev = pi.KdjD
			row.RSI6Prev = pi.RSI6
			row.RSI12Prev = pi.RSI12
			row.BollLowerPrev = pi.BollLower
			row.CCIPrev = pi.CCI
			row.WRPrev = pi.WR
			row.OBVPrev = pi.OBV
			row.ATR14Prev = pi.ATR14
			row.DonchianUpperPrev = pi.DonchianUpper
		}
		if f, ok := funds[bar.TsCode]; ok {
			fc := f
			row.Fund = &fc
		}
		snap.Rows = append(snap.Rows, row)
	}

	sort.Slice(snap.Rows, func(i, j int) bool {
		return snap.Rows[i].TsCode < snap.Rows[j].TsCode
	})

	b.log.WithField("target_date", key).Infof("快照构建完成：%d 只股票", len(snap.Rows))

	if cache != nil {
		cache[key] = snap
	}
	return snap, nil
}

func ptr(v float64) *float64 { return &v }
