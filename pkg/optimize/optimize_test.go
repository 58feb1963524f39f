package optimize

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpick/pkg/backtest"
	apperr "stockpick/pkg/error"
	"stockpick/pkg/strategy"
)

func space2() map[string]strategy.ParamSpec {
	return map[string]strategy.ParamSpec{
		"a": {Type: "int", Min: 3, Max: 5, Step: 1},
		"b": {Type: "int", Min: 10, Max: 20, Step: 5},
	}
}

func TestGenerateGrid(t *testing.T) {
	points, err := Generate(space2(), 0)
	require.NoError(t, err)
	assert.Len(t, points, 9, "3 × 3 组合")
	assert.Equal(t, 9, Count(space2()))

	seen := map[string]struct{}{}
	for _, p := range points {
		seen[p.Fingerprint()] = struct{}{}
	}
	assert.Len(t, seen, 9, "组合互不相同")
	assert.Contains(t, seen, "a=3;b=10")
	assert.Contains(t, seen, "a=5;b=20")
}

func TestGenerateFloatRounding(t *testing.T) {
	points, err := Generate(map[string]strategy.ParamSpec{
		"r": {Type: "float", Min: 0.1, Max: 0.3, Step: 0.1},
	}, 0)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 0.2, points[1]["r"], "浮点步进对齐到 6 位小数")
}

func TestGridCeiling(t *testing.T) {
	big := map[string]strategy.ParamSpec{
		"a": {Type: "int", Min: 1, Max: 100, Step: 1},   // 100
		"b": {Type: "int", Min: 1, Max: 150, Step: 1},   // 150 → 15000
	}
	assert.Equal(t, 15000, Count(big))

	_, err := Generate(big, DefaultMaxCombos)
	require.Error(t, err, "超限网格在受理时拒绝")
	var be *apperr.BaseError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrGridTooLarge, be.Code)

	// 同一空间对遗传算法不是障碍：逐点采样无需展开全网格
	g := NewGeneticOptimizer(1)
	g.Population, g.Generations = 4, 2
	res, err := g.Run(context.Background(), big, constEvaluator(1.0))
	require.NoError(t, err)
	assert.NotEmpty(t, res)
}

func constEvaluator(sharpe float64) Evaluator {
	return func(_ context.Context, p strategy.Params) (backtest.Metrics, error) {
		s := sharpe
		return backtest.Metrics{Sharpe: &s}, nil
	}
}

func TestGridSearchSorting(t *testing.T) {
	eval := func(_ context.Context, p strategy.Params) (backtest.Metrics, error) {
		// a=4 的点 Sharpe 最高，a=5 无法计算
		var m backtest.Metrics
		switch p["a"] {
		case 4:
			s := 2.0
			m.Sharpe = &s
		case 3:
			s := 1.0
			m.Sharpe = &s
		}
		return m, nil
	}
	g := NewGridSearcher()
	res, err := g.Run(context.Background(), space2(), eval)
	require.NoError(t, err)
	require.Len(t, res, 9)

	assert.Equal(t, 4.0, res[0].Params["a"], "Sharpe 降序")
	require.NotNil(t, res[0].Metrics.Sharpe)
	assert.Equal(t, 2.0, *res[0].Metrics.Sharpe)
	assert.Nil(t, res[8].Metrics.Sharpe, "null Sharpe 排最后")
}

func TestGridSearchConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	eval := func(_ context.Context, _ strategy.Params) (backtest.Metrics, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		defer func() { mu.Lock(); inFlight--; mu.Unlock() }()
		s := 1.0
		return backtest.Metrics{Sharpe: &s}, nil
	}
	g := &GridSearcher{MaxConcurrency: 2, MaxCombos: DefaultMaxCombos}
	_, err := g.Run(context.Background(), space2(), eval)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2, "并发不超过信号量容量")
}

func TestGeneticMemoization(t *testing.T) {
	var mu sync.Mutex
	evaluations := map[string]int{}
	eval := func(_ context.Context, p strategy.Params) (backtest.Metrics, error) {
		mu.Lock()
		evaluations[p.Fingerprint()]++
		mu.Unlock()
		s := p["a"] + p["b"]
		return backtest.Metrics{Sharpe: &s}, nil
	}

	g := NewGeneticOptimizer(42)
	g.Population, g.Generations = 6, 5
	res, err := g.Run(context.Background(), space2(), eval)
	require.NoError(t, err)

	for fp, n := range evaluations {
		assert.Equal(t, 1, n, "参数点 %s 重复评估", fp)
	}
	assert.Len(t, res, len(evaluations), "返回所有评估过的不同点")
	require.NotEmpty(t, res)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, *res[i-1].Metrics.Sharpe, *res[i].Metrics.Sharpe, "结果按 Sharpe 降序")
	}
}

func TestGeneticDeterministicWithSeed(t *testing.T) {
	run := func() []Candidate {
		g := NewGeneticOptimizer(7)
		g.Population, g.Generations = 4, 3
		res, err := g.Run(context.Background(), space2(), constEvaluator(1.0))
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Params.Fingerprint(), b[i].Params.Fingerprint())
	}
}
