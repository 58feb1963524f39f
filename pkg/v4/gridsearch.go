package v4

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"stockpick/pkg/logger"
	"stockpick/pkg/optimize"
	"stockpick/pkg/strategy"
)

// Candidate 一组参数的回放评估结果。
type Candidate struct {
	Params  strategy.Params `json:"params"`
	Metrics Metrics         `json:"metrics"`
}

// GridSearcher 在预加载数据上做全内存网格寻优。
// 回放是纯 CPU 工作，并发上限按核数口径取 8。
type GridSearcher struct {
	MaxConcurrency int64
	MaxCombos      int
}

func NewGridSearcher() *GridSearcher {
	return &GridSearcher{MaxConcurrency: 8, MaxCombos: optimize.DefaultMaxCombos}
}

// Run 展开参数空间并逐组回放，按综合得分降序返回全部候选。
// space 为空时使用策略注册表声明的参数空间。
func (g *GridSearcher) Run(ctx context.Context, engine *Engine, space map[string]strategy.ParamSpec) ([]Candidate, error) {
	meta, err := strategy.GetMeta(strategy.NameVolumePricePattern)
	if err != nil {
		return nil, err
	}
	if len(space) == 0 {
		space = meta.ParamSpace
	}
	grid, err := optimize.Generate(space, g.MaxCombos)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("v4.gridsearch")
	log.WithField("combos", len(grid)).Info("开始全内存网格寻优")
	windowDays := len(engine.data.Dates)

	var mu sync.Mutex
	out := make([]Candidate, 0, len(grid))
	sem := semaphore.NewWeighted(g.MaxConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, point := range grid {
		if err := sem.Acquire(egCtx, 1); err != nil {
			return nil, err
		}
		params := strategy.Merge(meta.DefaultParams, point)
		eg.Go(func() error {
			defer sem.Release(1)
			signals := engine.Replay(params)
			c := Candidate{Params: params, Metrics: Evaluate(signals, windowDays)}
			mu.Lock()
			out = append(out, c)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	SortByComposite(out)
	log.WithField("evaluated", len(out)).Info("网格寻优完成")
	return out, nil
}

// SortByComposite 综合得分降序，nil 靠后，同分按参数指纹稳定。
func SortByComposite(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i].Metrics.Composite, cands[j].Metrics.Composite
		switch {
		case a == nil && b == nil:
			return cands[i].Params.Fingerprint() < cands[j].Params.Fingerprint()
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return cands[i].Params.Fingerprint() < cands[j].Params.Fingerprint()
		}
	})
}
