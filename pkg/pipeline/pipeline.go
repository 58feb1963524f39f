// Package pipeline 实现选股主流程：快照构建、大盘与板块过滤、
// 多策略评估与加权排序、交易计划生成与持久化。
package pipeline

import (
	"context"
	"sort"
	"time"

	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
)

// LayerCache 策略评估结果缓存，键为 (策略名, 日期, 参数指纹)。
// 寻优回放在同一日期反复评估同一策略时复用。
type LayerCache map[string][]bool

func layerKey(name string, date time.Time, params strategy.Params) string {
	return name + "|" + market.DateKey(date) + "|" + params.Fingerprint()
}

// ResultCache 选股结果外部缓存（Redis），失效时静默回退为重算。
type ResultCache interface {
	GetPicks(ctx context.Context, tradeDate time.Time) ([]Pick, bool)
	SetPicks(ctx context.Context, tradeDate time.Time, picks []Pick)
}

// Request 一次选股请求。
type Request struct {
	TargetDate time.Time
	// Strategies 参与评估的策略名，空表示全部注册策略
	Strategies []string
	// Overrides 各策略的参数覆盖
	Overrides map[string]strategy.Params
	// Weights 各策略得分权重，缺省 1.0
	Weights map[string]float64
	TopN    int

	EnableMarketFilter bool
	EnableSectorFilter bool
	MarketIndex        string
	SectorTopPct       float64
	SectorMomentumDays int

	// Persist 为真时写 strategy_picks 与 trade_plans
	Persist bool
	// UseResultCache 为真且请求为默认参数时读写外部结果缓存
	UseResultCache bool

	// SnapshotCache / LayerCache 由调用方持有以跨请求复用
	SnapshotCache market.SnapshotCache
	LayerCache    LayerCache
}

// Pick 一只入选股票。
type Pick struct {
	TsCode     string   `json:"ts_code"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Close      float64  `json:"close"`
	PctChg     float64  `json:"pct_chg"`
	Strategies []string `json:"strategies"`
}

// Result 选股输出。
type Result struct {
	TargetDate  time.Time            `json:"target_date"`
	MarketState strategy.MarketState `json:"market_state"`
	Picks       []Pick               `json:"picks"`
	Plans       []store.PlanRecord   `json:"plans,omitempty"`
	FromCache   bool                 `json:"from_cache"`
}

// Pipeline 选股流水线。
type Pipeline struct {
	store *store.Store
	snap  *market.SnapshotBuilder
	cache ResultCache
}

// New cache 可为 nil。
func New(st *store.Store, snap *market.SnapshotBuilder, cache ResultCache) *Pipeline {
	return &Pipeline{store: st, snap: snap, cache: cache}
}

// Execute 运行选股。策略内部错误仅告警并跳过该策略，
// 快照构建失败向上传播。
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logger.WithComponent("pipeline").WithField("date", market.DateKey(req.TargetDate))

	if req.UseResultCache && p.cache != nil {
		if picks, ok := p.cache.GetPicks(ctx, req.TargetDate); ok {
			log.Info("命中结果缓存")
			return &Result{TargetDate: req.TargetDate, Picks: picks, FromCache: true}, nil
		}
	}

	snap, err := p.snap.Build(ctx, req.TargetDate, req.SnapshotCache)
	if err != nil {
		return nil, err
	}

	env, err := p.buildEnv(ctx, req)
	if err != nil {
		return nil, err
	}

	names := req.Strategies
	if len(names) == 0 {
		names = strategy.Names()
	}

	type hitSet struct {
		score      float64
		strategies []string
	}
	hits := make(map[int]*hitSet)

	for _, name := range names {
		overrides := req.Overrides[name]
		mask, err := p.evaluate(ctx, name, overrides, snap, env, req.LayerCache)
		if err != nil {
			log.WithField("strategy", name).WithError(err).Warn("策略评估失败，跳过")
			continue
		}
		weight := 1.0
		if w, ok := req.Weights[name]; ok {
			weight = w
		}
		for i, hit := range mask {
			if !hit {
				continue
			}
			h := hits[i]
			if h == nil {
				h = &hitSet{}
				hits[i] = h
			}
			h.score += weight
			h.strategies = append(h.strategies, name)
		}
	}

	picks := make([]Pick, 0, len(hits))
	for i, h := range hits {
		r := &snap.Rows[i]
		picks = append(picks, Pick{
			TsCode:     r.TsCode,
			Name:       r.Name,
			Score:      h.score,
			Close:      r.Close,
			PctChg:     r.PctChg,
			Strategies: h.strategies,
		})
	}
	picks = rankPicks(picks, req.TopN)

	res := &Result{TargetDate: req.TargetDate, MarketState: env.MarketState, Picks: picks}

	res.Plans, err = p.buildPlans(ctx, req.TargetDate, picks, snap)
	if err != nil {
		log.WithError(err).Warn("交易计划生成失败，仅返回选股结果")
		res.Plans = nil
	}

	if req.Persist {
		if err := p.persist(ctx, req.TargetDate, res); err != nil {
			return nil, err
		}
	}
	if req.UseResultCache && p.cache != nil {
		p.cache.SetPicks(ctx, req.TargetDate, picks)
	}
	log.WithField("picks", len(picks)).Info("选股完成")
	return res, nil
}

// Warmup 预构建某日快照进缓存，供寻优回放分摊层一开销。
func (p *Pipeline) Warmup(ctx context.Context, targetDate time.Time, cache market.SnapshotCache) (*market.Snapshot, error) {
	return p.snap.Build(ctx, targetDate, cache)
}

// rankPicks 确定性排序：得分降序、涨幅降序、代码升序，截取前 topN。
func rankPicks(picks []Pick, topN int) []Pick {
	sort.Slice(picks, func(i, j int) bool {
		if picks[i].Score != picks[j].Score {
			return picks[i].Score > picks[j].Score
		}
		if picks[i].PctChg != picks[j].PctChg {
			return picks[i].PctChg > picks[j].PctChg
		}
		return picks[i].TsCode < picks[j].TsCode
	})
	if topN > 0 && len(picks) > topN {
		picks = picks[:topN]
	}
	return picks
}

func (p *Pipeline) buildEnv(ctx context.Context, req Request) (*strategy.Env, error) {
	env := &strategy.Env{
		TargetDate:  req.TargetDate,
		MarketState: strategy.MarketNeutral,
		WatchPool:   p.store.Watchpool,
	}
	if req.EnableMarketFilter {
		state, err := strategy.EvaluateMarket(ctx, p.store.Index, req.TargetDate, req.MarketIndex)
		if err != nil {
			return nil, err
		}
		env.MarketState = state
	}
	if req.EnableSectorFilter {
		topPct := req.SectorTopPct
		if topPct <= 0 {
			topPct = 0.20
		}
		days := req.SectorMomentumDays
		if days <= 0 {
			days = 5
		}
		env.StrongSectors = strategy.GetStrongSectors(ctx, p.store.Concepts, req.TargetDate, topPct, days)
	}
	return env, nil
}

func (p *Pipeline) evaluate(ctx context.Context, name string, overrides strategy.Params,
	snap *market.Snapshot, env *strategy.Env, cache LayerCache) ([]bool, error) {

	meta, err := strategy.GetMeta(name)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.New(name, overrides)
	if err != nil {
		return nil, err
	}
	key := layerKey(name, snap.TargetDate, strategy.Merge(meta.DefaultParams, overrides))
	if cache != nil {
		if mask, ok := cache[key]; ok && len(mask) == len(snap.Rows) {
			return mask, nil
		}
	}
	mask, err := strat.FilterBatch(ctx, snap, env)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache[key] = mask
	}
	return mask, nil
}

func (p *Pipeline) persist(ctx context.Context, targetDate time.Time, res *Result) error {
	recs := make([]store.PickRecord, 0, len(res.Picks))
	for _, pk := range res.Picks {
		recs = append(recs, store.PickRecord{
			TradeDate:     targetDate,
			TsCode:        pk.TsCode,
			Name:          pk.Name,
			Score:         pk.Score,
			Close:         pk.Close,
			PctChg:        pk.PctChg,
			HitStrategies: pk.Strategies,
		})
	}
	if err := p.store.Picks.InsertPicks(ctx, recs); err != nil {
		return err
	}
	return p.store.Plans.InsertPlans(ctx, res.Plans)
}
