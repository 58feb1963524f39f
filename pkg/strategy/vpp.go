package strategy

import (
	"context"

	"stockpick/pkg/logger"
	"stockpick/pkg/market"

	apperr "stockpick/pkg/error"
)

// NameVolumePricePattern 量价洗盘企稳策略名
const NameVolumePricePattern = "volume-price-pattern"

// ErrWatchPoolMissing 评估环境未提供观察池
const ErrWatchPoolMissing apperr.ErrorCode = "STRATEGY_WATCHPOOL_MISSING"

func init() {
	meta := Meta{
		Name:        NameVolumePricePattern,
		DisplayName: "量价洗盘企稳",
		Category:    CategoryTechnical,
		Description: "横盘蓄势后放量突破（T0）入观察池，缩量洗盘不破 T0 开盘价，企稳回踩均线时触发",
		DefaultParams: Params{
			"accumulation_days":      60,
			"max_accumulation_range": 0.20,
			"min_t0_pct_chg":         6.0,
			"min_t0_vol_ratio":       2.5,
			"min_washout_days":       3,
			"max_washout_days":       8,
			"max_vol_shrink_ratio":   0.40,
			"max_tk_amplitude":       3.0,
			"ma_support_tolerance":   0.015,
			"sector_top_pct":         0.20,
			"sector_momentum_days":   5,
			"enable_market_filter":   1,
			"enable_sector_filter":   1,
		},
		ParamSpace: map[string]ParamSpec{
			"min_t0_pct_chg":       {Type: "float", Min: 5.0, Max: 9.0, Step: 1.0},
			"min_t0_vol_ratio":     {Type: "float", Min: 2.0, Max: 3.5, Step: 0.5},
			"max_washout_days":     {Type: "int", Min: 6, Max: 12, Step: 2},
			"max_vol_shrink_ratio": {Type: "float", Min: 0.3, Max: 0.5, Step: 0.1},
		},
	}
	register(meta, func(params Params) Strategy {
		return &volumePricePattern{meta: meta, params: params}
	})
}

// volumePricePattern 依赖观察池的有状态策略：每个交易日先推进
// 既有观察条目，再探测新 T0 入池，最后做企稳判定。当日命中
// 条目即为选股结果。
type volumePricePattern struct {
	meta   Meta
	params Params
}

func (s *volumePricePattern) Meta() Meta { return s.meta }

func (s *volumePricePattern) FilterBatch(ctx context.Context, snap *market.Snapshot, env *Env) ([]bool, error) {
	out := make([]bool, len(snap.Rows))
	log := logger.WithStrategy(NameVolumePricePattern)

	if env == nil || env.WatchPool == nil {
		return nil, apperr.NewError(ErrWatchPoolMissing, "评估环境缺少观察池")
	}
	if s.params.GetBool("enable_market_filter", true) && env.MarketState == MarketBearish {
		log.WithField("date", market.DateKey(env.TargetDate)).Info("大盘空头，跳过本日评估")
		return out, nil
	}

	maxWashout := s.params.GetInt("max_washout_days", 8)
	stats, err := env.WatchPool.Advance(ctx, env.TargetDate, maxWashout)
	if err != nil {
		return nil, err
	}

	inserted, err := s.detectT0(ctx, snap, env)
	if err != nil {
		return nil, err
	}

	triggered, err := env.WatchPool.CheckStabilization(ctx, env.TargetDate, StabilizationParams{
		MinWashoutDays:     s.params.GetInt("min_washout_days", 3),
		MaxTkAmplitude:     s.params.Get("max_tk_amplitude", 3.0),
		MaxVolShrinkRatio:  s.params.Get("max_vol_shrink_ratio", 0.40),
		MASupportTolerance: s.params.Get("ma_support_tolerance", 0.015),
	})
	if err != nil {
		return nil, err
	}

	// 板块共振只记分不过滤：命中强势板块记 1.0，否则 0.0
	if len(triggered) > 0 && s.params.GetBool("enable_sector_filter", true) {
		scores := make(map[string]float64, len(triggered))
		for _, code := range triggered {
			score := 0.0
			if _, ok := env.StrongSectors[code]; ok {
				score = 1.0
			}
			scores[code] = score
		}
		if err := env.WatchPool.SetSectorScores(ctx, env.TargetDate, scores); err != nil {
			log.WithError(err).Warn("板块得分写入失败")
		}
	}

	hit := make(map[string]struct{}, len(triggered))
	for _, code := range triggered {
		hit[code] = struct{}{}
	}
	for i := range snap.Rows {
		if _, ok := hit[snap.Rows[i].TsCode]; ok {
			out[i] = true
		}
	}

	log.WithFields(map[string]interface{}{
		"date":      market.DateKey(env.TargetDate),
		"stopped":   stats.Stopped,
		"expired":   stats.Expired,
		"updated":   stats.Updated,
		"new_t0":    inserted,
		"triggered": len(triggered),
	}).Info("观察池推进完成")
	return out, nil
}

// detectT0 探测当日放量突破候选，校验前置蓄势区间后入池。
func (s *volumePricePattern) detectT0(ctx context.Context, snap *market.Snapshot, env *Env) (int, error) {
	minPct := s.params.Get("min_t0_pct_chg", 6.0)
	minVR := s.params.Get("min_t0_vol_ratio", 2.5)

	candidates := make([]*market.SnapshotRow, 0, 32)
	codes := make([]string, 0, 32)
	for i := range snap.Rows {
		r := &snap.Rows[i]
		if r.Vol <= 0 {
			continue
		}
		vr := fv(r.Ind.VolRatio, 0)
		if r.PctChg >= minPct && vr >= minVR {
			candidates = append(candidates, r)
			codes = append(codes, r.TsCode)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	verified, err := env.WatchPool.VerifyAccumulation(ctx, codes, env.TargetDate,
		s.params.GetInt("accumulation_days", 60),
		s.params.Get("max_accumulation_range", 0.20))
	if err != nil {
		return 0, err
	}

	marketScore := marketStateScore(env.MarketState)
	entries := make([]T0Entry, 0, len(verified))
	for _, r := range candidates {
		if _, ok := verified[r.TsCode]; !ok {
			continue
		}
		entries = append(entries, T0Entry{
			TsCode:       r.TsCode,
			StrategyName: NameVolumePricePattern,
			T0Date:       env.TargetDate,
			T0Close:      r.Close,
			T0Open:       r.Open,
			T0Low:        r.Low,
			T0Volume:     r.Vol,
			T0PctChg:     r.PctChg,
			MarketScore:  &marketScore,
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return env.WatchPool.InsertT0Batch(ctx, entries)
}

func marketStateScore(s MarketState) float64 {
	switch s {
	case MarketBullish:
		return 1.0
	case MarketNeutral:
		return 0.5
	default:
		return 0.0
	}
}
