package strategy

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockpick/pkg/market"
)

// Category 策略分类
type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryFundamental Category = "fundamental"
)

// Params 策略参数，键为参数名。布尔参数以 0/1 表示。
type Params map[string]float64

// Get 取参数值，缺失时返回默认值
func (p Params) Get(key string, def float64) float64 {
	if p == nil {
		return def
	}
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetInt 取整型参数
func (p Params) GetInt(key string, def int) int {
	return int(p.Get(key, float64(def)))
}

// GetBool 取布尔参数（非零为真）
func (p Params) GetBool(key string, def bool) bool {
	d := 0.0
	if def {
		d = 1.0
	}
	return p.Get(key, d) != 0
}

// Clone 复制参数表
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge 以 overrides 覆盖默认参数，返回新参数表
func Merge(defaults, overrides Params) Params {
	out := defaults.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Fingerprint 参数表的规范化序列化：键升序的 k=v 串。
// 相同参数集产生相同指纹，供逐层缓存与寻优去重使用。
func (p Params) Fingerprint() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return sb.String()
}

// ParamSpec 单个参数的取值空间
type ParamSpec struct {
	Type string  `json:"type"` // int | float
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Meta 策略元信息，注册后不可变。
type Meta struct {
	Name          string               `json:"name"`         // kebab-case 唯一名
	DisplayName   string               `json:"display_name"` // 中文展示名
	Category      Category             `json:"category"`
	Description   string               `json:"description"`
	DefaultParams Params               `json:"default_params"`
	ParamSpace    map[string]ParamSpec `json:"param_space,omitempty"`
}

// MarketState 大盘环境
type MarketState string

const (
	MarketBullish MarketState = "bullish"
	MarketNeutral MarketState = "neutral"
	MarketBearish MarketState = "bearish"
)

// Env 策略评估环境：由 Pipeline 构建并传入，纯技术/基本面策略
// 可以忽略；量价洗盘企稳策略依赖其中的观察池与过滤器结果。
type Env struct {
	TargetDate    time.Time
	MarketState   MarketState
	StrongSectors map[string]struct{}
	WatchPool     WatchPool
}

// Strategy 选股策略。FilterBatch 返回与快照行一一对应的布尔序列，
// 不得修改快照内容；vol <= 0 的行必须为 false。
type Strategy interface {
	Meta() Meta
	FilterBatch(ctx context.Context, snap *market.Snapshot, env *Env) ([]bool, error)
}

// fv 指针取值，nil 时返回中性默认值
func fv(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// rowPredicate 单行判定函数，仅依赖行内容与参数
type rowPredicate func(r *market.SnapshotRow, p Params) bool

// rowStrategy 逐行判定的纯策略，承载 34 个常规策略。
type rowStrategy struct {
	meta   Meta
	params Params
	pred   rowPredicate
}

func (s *rowStrategy) Meta() Meta { return s.meta }

func (s *rowStrategy) FilterBatch(_ context.Context, snap *market.Snapshot, _ *Env) ([]bool, error) {
	out := make([]bool, len(snap.Rows))
	for i := range snap.Rows {
		r := &snap.Rows[i]
		if r.Vol <= 0 {
			continue
		}
		out[i] = s.pred(r, s.params)
	}
	return out, nil
}
