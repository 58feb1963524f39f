// Package optimize 实现策略参数寻优：网格搜索、遗传算法与
// 行情回放寻优。
package optimize

import (
	"fmt"
	"math"
	"sort"

	apperr "stockpick/pkg/error"
	"stockpick/pkg/strategy"
)

// DefaultMaxCombos 网格组合数上限，超限在受理时拒绝。
const DefaultMaxCombos = 10000

// 寻优错误码
const (
	ErrGridTooLarge apperr.ErrorCode = "OPTIMIZE_GRID_TOO_LARGE"
	ErrEmptySpace   apperr.ErrorCode = "OPTIMIZE_EMPTY_SPACE"
)

// Count 不展开枚举地计算组合数。
func Count(space map[string]strategy.ParamSpec) int {
	if len(space) == 0 {
		return 0
	}
	total := 1
	for _, spec := range space {
		total *= len(axisValues(spec))
	}
	return total
}

// Generate 展开参数空间的笛卡尔积。int 参数取整，
// float 参数保留 6 位小数。组合数超过 maxCombos 时拒绝。
func Generate(space map[string]strategy.ParamSpec, maxCombos int) ([]strategy.Params, error) {
	if len(space) == 0 {
		return nil, apperr.NewError(ErrEmptySpace, "参数空间为空")
	}
	if maxCombos <= 0 {
		maxCombos = DefaultMaxCombos
	}
	if n := Count(space); n > maxCombos {
		return nil, apperr.NewError(ErrGridTooLarge,
			fmt.Sprintf("参数组合数 %d 超过上限 %d", n, maxCombos))
	}

	keys := make([]string, 0, len(space))
	for k := range space {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []strategy.Params{{}}
	for _, k := range keys {
		vals := axisValues(space[k])
		next := make([]strategy.Params, 0, len(out)*len(vals))
		for _, base := range out {
			for _, v := range vals {
				p := base.Clone()
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// axisValues 单参数轴上的取值序列，步进对齐。
func axisValues(spec strategy.ParamSpec) []float64 {
	if spec.Step <= 0 || spec.Max < spec.Min {
		return []float64{alignValue(spec.Min, spec)}
	}
	n := int(math.Floor((spec.Max-spec.Min)/spec.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, alignValue(spec.Min+float64(i)*spec.Step, spec))
	}
	return out
}

func alignValue(v float64, spec strategy.ParamSpec) float64 {
	if spec.Type == "int" {
		return math.Round(v)
	}
	return math.Round(v*1e6) / 1e6
}
