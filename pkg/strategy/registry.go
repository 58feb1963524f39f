package strategy

import (
	"fmt"
	"sort"

	apperr "stockpick/pkg/error"
)

// ErrUnknownStrategy 未注册的策略名
const ErrUnknownStrategy apperr.ErrorCode = "STRATEGY_UNKNOWN"

// constructor 以合并后的参数构造策略实例
type constructor func(params Params) Strategy

type registration struct {
	meta Meta
	ctor constructor
}

// registry 进程级策略注册表，import 时填充完毕，之后只读。
var registry = map[string]registration{}

func register(meta Meta, ctor constructor) {
	if _, dup := registry[meta.Name]; dup {
		panic(fmt.Sprintf("strategy %q registered twice", meta.Name))
	}
	registry[meta.Name] = registration{meta: meta, ctor: ctor}
}

// registerRow 注册一个逐行判定的纯策略
func registerRow(meta Meta, pred rowPredicate) {
	register(meta, func(params Params) Strategy {
		return &rowStrategy{meta: meta, params: params, pred: pred}
	})
}

// GetMeta 按名称取策略元信息
func GetMeta(name string) (Meta, error) {
	reg, ok := registry[name]
	if !ok {
		return Meta{}, apperr.NewError(ErrUnknownStrategy, fmt.Sprintf("strategy %q not registered", name))
	}
	return reg.meta, nil
}

// New 构造策略实例，overrides 覆盖默认参数。
func New(name string, overrides Params) (Strategy, error) {
	reg, ok := registry[name]
	if !ok {
		return nil, apperr.NewError(ErrUnknownStrategy, fmt.Sprintf("strategy %q not registered", name))
	}
	return reg.ctor(Merge(reg.meta.DefaultParams, overrides)), nil
}

// Names 全部注册名，升序。
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NamesByCategory 某分类下的注册名，升序。
func NamesByCategory(cat Category) []string {
	var out []string
	for name, reg := range registry {
		if reg.meta.Category == cat {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// AllMetas 全部元信息，按名称升序。
func AllMetas() []Meta {
	names := Names()
	out := make([]Meta, 0, len(names))
	for _, n := range names {
		out = append(out, registry[n].meta)
	}
	return out
}
