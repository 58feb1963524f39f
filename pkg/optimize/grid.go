package optimize

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"stockpick/pkg/backtest"
	"stockpick/pkg/logger"
	"stockpick/pkg/strategy"
)

// Evaluator 对一个参数点跑一次回测并提取指标。
type Evaluator func(ctx context.Context, params strategy.Params) (backtest.Metrics, error)

// Candidate 一个参数点及其回测指标。
type Candidate struct {
	Params  strategy.Params  `json:"params"`
	Metrics backtest.Metrics `json:"metrics"`
}

// GridSearcher 网格搜索：并发受限地评估每个组合。
type GridSearcher struct {
	MaxConcurrency int64
	MaxCombos      int
}

// NewGridSearcher 默认 8 并发、10000 组合上限。
func NewGridSearcher() *GridSearcher {
	return &GridSearcher{MaxConcurrency: 8, MaxCombos: DefaultMaxCombos}
}

// Run 枚举空间并评估全部组合，按 Sharpe 降序返回（null 视为最差）。
// 单点评估失败记告警，该点不进入结果。
func (g *GridSearcher) Run(ctx context.Context, space map[string]strategy.ParamSpec, eval Evaluator) ([]Candidate, error) {
	points, err := Generate(space, g.MaxCombos)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("grid_search")
	log.WithField("combos", len(points)).Info("网格搜索开始")

	sem := semaphore.NewWeighted(g.MaxConcurrency)
	eg, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([]Candidate, 0, len(points))

	for _, p := range points {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		eg.Go(func() error {
			defer sem.Release(1)
			m, err := eval(ctx, p)
			if err != nil {
				log.WithField("params", p.Fingerprint()).WithError(err).Warn("参数点评估失败")
				return nil
			}
			mu.Lock()
			results = append(results, Candidate{Params: p, Metrics: m})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	SortBySharpe(results)
	return results, nil
}

// SortBySharpe Sharpe 降序，nil 排最后；同分按参数指纹升序保证稳定。
func SortBySharpe(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		si, sj := cs[i].Metrics.Sharpe, cs[j].Metrics.Sharpe
		switch {
		case si == nil && sj == nil:
			return cs[i].Params.Fingerprint() < cs[j].Params.Fingerprint()
		case si == nil:
			return false
		case sj == nil:
			return true
		case *si != *sj:
			return *si > *sj
		default:
			return cs[i].Params.Fingerprint() < cs[j].Params.Fingerprint()
		}
	})
}
