package optimize

import (
	"context"
	"math"
	"math/rand"
	"sort"

	apperr "stockpick/pkg/error"
	"stockpick/pkg/logger"
	"stockpick/pkg/strategy"
)

// GeneticOptimizer 遗传算法寻优。个体为步进对齐的参数点，
// 适应度为 Sharpe。同一参数点跨代只评估一次。
type GeneticOptimizer struct {
	Population     int
	Generations    int
	CrossoverRate  float64
	MutationRate   float64
	TournamentSize int
	Rand           *rand.Rand
}

// NewGeneticOptimizer 默认种群 20、50 代、交叉 0.8、变异 0.1、锦标赛 3。
func NewGeneticOptimizer(seed int64) *GeneticOptimizer {
	return &GeneticOptimizer{
		Population:     20,
		Generations:    50,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		TournamentSize: 3,
		Rand:           rand.New(rand.NewSource(seed)),
	}
}

// Run 演化并返回所有评估过的不同参数点，按 Sharpe 降序。
func (g *GeneticOptimizer) Run(ctx context.Context, space map[string]strategy.ParamSpec, eval Evaluator) ([]Candidate, error) {
	if len(space) == 0 {
		return nil, apperr.NewError(ErrEmptySpace, "参数空间为空")
	}
	keys := make([]string, 0, len(space))
	for k := range space {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log := logger.WithComponent("genetic_search")
	memo := map[string]Candidate{}
	evaluate := func(p strategy.Params) (float64, bool) {
		key := p.Fingerprint()
		if c, ok := memo[key]; ok {
			return fitness(c), true
		}
		m, err := eval(ctx, p)
		if err != nil {
			log.WithField("params", key).WithError(err).Warn("个体评估失败")
			return math.Inf(-1), false
		}
		c := Candidate{Params: p, Metrics: m}
		memo[key] = c
		return fitness(c), true
	}

	pop := make([]strategy.Params, g.Population)
	fit := make([]float64, g.Population)
	for i := range pop {
		pop[i] = g.randomPoint(space, keys)
		fit[i], _ = evaluate(pop[i])
	}

	for gen := 0; gen < g.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := make([]strategy.Params, 0, g.Population)
		for len(next) < g.Population {
			a := g.tournament(pop, fit)
			b := g.tournament(pop, fit)
			c1, c2 := g.crossover(a, b, keys)
			g.mutate(c1, space, keys)
			g.mutate(c2, space, keys)
			next = append(next, c1)
			if len(next) < g.Population {
				next = append(next, c2)
			}
		}
		pop = next
		for i := range pop {
			fit[i], _ = evaluate(pop[i])
		}
	}

	out := make([]Candidate, 0, len(memo))
	for _, c := range memo {
		out = append(out, c)
	}
	SortBySharpe(out)
	log.WithField("evaluated", len(out)).Info("遗传寻优完成")
	return out, nil
}

func fitness(c Candidate) float64 {
	if c.Metrics.Sharpe == nil {
		return math.Inf(-1)
	}
	return *c.Metrics.Sharpe
}

func (g *GeneticOptimizer) randomPoint(space map[string]strategy.ParamSpec, keys []string) strategy.Params {
	p := make(strategy.Params, len(keys))
	for _, k := range keys {
		vals := axisValues(space[k])
		p[k] = vals[g.Rand.Intn(len(vals))]
	}
	return p
}

// tournament k 个随机个体中取适应度最高者。
func (g *GeneticOptimizer) tournament(pop []strategy.Params, fit []float64) strategy.Params {
	best := g.Rand.Intn(len(pop))
	for i := 1; i < g.TournamentSize; i++ {
		c := g.Rand.Intn(len(pop))
		if fit[c] > fit[best] {
			best = c
		}
	}
	return pop[best]
}

// crossover 单点交叉：交叉点之后的基因互换。
func (g *GeneticOptimizer) crossover(a, b strategy.Params, keys []string) (strategy.Params, strategy.Params) {
	c1, c2 := a.Clone(), b.Clone()
	if g.Rand.Float64() >= g.CrossoverRate || len(keys) < 2 {
		return c1, c2
	}
	point := 1 + g.Rand.Intn(len(keys)-1)
	for _, k := range keys[point:] {
		c1[k], c2[k] = c2[k], c1[k]
	}
	return c1, c2
}

// mutate 逐基因以 MutationRate 概率重采样步进对齐值。
func (g *GeneticOptimizer) mutate(p strategy.Params, space map[string]strategy.ParamSpec, keys []string) {
	for _, k := range keys {
		if g.Rand.Float64() < g.MutationRate {
			vals := axisValues(space[k])
			p[k] = vals[g.Rand.Intn(len(vals))]
		}
	}
}
