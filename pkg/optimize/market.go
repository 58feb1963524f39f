package optimize

import (
	"context"
	"sort"
	"time"

	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/pipeline"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
)

// MarketScore 一个参数点在行情回放中的选股表现。
type MarketScore struct {
	Params      strategy.Params `json:"params"`
	HitRate5D   float64         `json:"hit_rate_5d"`
	AvgReturn5D float64         `json:"avg_return_5d"`
	MaxDrawdown float64         `json:"max_drawdown"`
	TotalPicks  int             `json:"total_picks"`
	Score       float64         `json:"score"`
}

// MarketReplayOptimizer 行情回放寻优：在回看窗口内按固定步长
// 采样交易日，对每个参数点跑选股流水线并统计 5 日前瞻收益。
// 快照与逐层缓存跨参数点共享，层一工作每个采样日只做一次。
type MarketReplayOptimizer struct {
	store    *store.Store
	pipeline *pipeline.Pipeline

	SampleInterval int // 采样步长（交易日）
	LookbackDays   int // 回看窗口（交易日）
	TopN           int
}

// NewMarketReplayOptimizer 默认 4 日步长、120 日回看。
func NewMarketReplayOptimizer(st *store.Store, pl *pipeline.Pipeline) *MarketReplayOptimizer {
	return &MarketReplayOptimizer{
		store:          st,
		pipeline:       pl,
		SampleInterval: 4,
		LookbackDays:   120,
		TopN:           20,
	}
}

// Run 评估候选参数集并按综合得分降序返回。
// 得分 = 0.5·命中率 + 0.3·平均收益 − 0.2·最大回撤。
func (o *MarketReplayOptimizer) Run(ctx context.Context, strategyName string, endDate time.Time, candidates []strategy.Params) ([]MarketScore, error) {
	days, err := o.sampleDays(ctx, endDate)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("market_replay").WithField("strategy", strategyName)
	log.WithFields(map[string]interface{}{
		"days": len(days), "candidates": len(candidates),
	}).Info("行情回放寻优开始")

	snapCache := market.SnapshotCache{}
	layerCache := pipeline.LayerCache{}

	// 预热：提前构建各采样日快照，候选点评估只跑策略层
	for _, d := range days {
		if _, err := o.pipeline.Warmup(ctx, d, snapCache); err != nil {
			log.WithField("date", market.DateKey(d)).WithError(err).Warn("采样日快照预热失败，跳过该日")
		}
	}

	out := make([]MarketScore, 0, len(candidates))
	for _, params := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := o.evaluate(ctx, strategyName, params, days, snapCache, layerCache)
		if err != nil {
			log.WithField("params", params.Fingerprint()).WithError(err).Warn("候选评估失败")
			continue
		}
		out = append(out, score)
	}

	sortScores(out)
	return out, nil
}

func (o *MarketReplayOptimizer) evaluate(ctx context.Context, strategyName string, params strategy.Params,
	days []time.Time, snapCache market.SnapshotCache, layerCache pipeline.LayerCache) (MarketScore, error) {

	var returns []float64
	totalPicks := 0

	for _, d := range days {
		res, err := o.pipeline.Execute(ctx, pipeline.Request{
			TargetDate:    d,
			Strategies:    []string{strategyName},
			Overrides:     map[string]strategy.Params{strategyName: params},
			TopN:          o.TopN,
			SnapshotCache: snapCache,
			LayerCache:    layerCache,
		})
		if err != nil {
			return MarketScore{}, err
		}
		for _, pk := range res.Picks {
			totalPicks++
			r, ok, err := o.forwardReturn(ctx, pk.TsCode, d, pk.Close, 5)
			if err != nil {
				return MarketScore{}, err
			}
			if ok {
				returns = append(returns, r)
			}
		}
	}

	score := MarketScore{Params: params, TotalPicks: totalPicks}
	if len(returns) > 0 {
		hits := 0
		sum := 0.0
		worst := 0.0
		for _, r := range returns {
			if r > 0 {
				hits++
			}
			sum += r
			if r < worst {
				worst = r
			}
		}
		score.HitRate5D = float64(hits) / float64(len(returns))
		score.AvgReturn5D = sum / float64(len(returns))
		score.MaxDrawdown = -worst
	}
	score.Score = 0.5*score.HitRate5D + 0.3*score.AvgReturn5D - 0.2*score.MaxDrawdown
	return score, nil
}

// forwardReturn n 个交易日后的收盘对选入日收盘的涨跌幅。
// 前瞻数据不足时 ok 为 false。
func (o *MarketReplayOptimizer) forwardReturn(ctx context.Context, tsCode string, d time.Time, base float64, n int) (float64, bool, error) {
	if base <= 0 {
		return 0, false, nil
	}
	closes, err := o.store.Bars.ForwardCloses(ctx, tsCode, d, n)
	if err != nil {
		return 0, false, err
	}
	if len(closes) < n {
		return 0, false, nil
	}
	return closes[n-1]/base - 1, true, nil
}

func (o *MarketReplayOptimizer) sampleDays(ctx context.Context, endDate time.Time) ([]time.Time, error) {
	all, err := o.store.Calendar.LastOpenDays(ctx, endDate, o.LookbackDays)
	if err != nil {
		return nil, err
	}
	step := o.SampleInterval
	if step < 1 {
		step = 1
	}
	var out []time.Time
	for i := 0; i < len(all); i += step {
		out = append(out, all[i])
	}
	return out, nil
}

// sortScores 综合得分降序，同分按参数指纹升序。
func sortScores(scores []MarketScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Params.Fingerprint() < scores[j].Params.Fingerprint()
	})
}
