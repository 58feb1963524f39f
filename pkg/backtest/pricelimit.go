package backtest

import (
	"math"
	"strings"
)

// LimitPct 按代码前缀与名称推断涨跌停幅度：
// ST 股 5%，创业板（30）与科创板（68）20%，其余 10%。
func LimitPct(tsCode, name string) float64 {
	if strings.Contains(strings.ToUpper(name), "ST") {
		return 0.05
	}
	code := tsCode
	if i := strings.IndexByte(code, '.'); i >= 0 {
		code = code[:i]
	}
	if strings.HasPrefix(code, "30") || strings.HasPrefix(code, "68") {
		return 0.20
	}
	return 0.10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsLimitUp 收盘触及涨停：close >= round(pre_close*(1+pct), 2) - 0.01。
// 留 1 分钱余量吸收报价取整误差。
func IsLimitUp(close, preClose, limitPct float64) bool {
	return close >= round2(preClose*(1+limitPct))-0.01
}

// IsLimitDown 收盘触及跌停：close <= round(pre_close*(1-pct), 2) + 0.01。
func IsLimitDown(close, preClose, limitPct float64) bool {
	return close <= round2(preClose*(1-limitPct))+0.01
}
