package strategy

import (
	"context"
	"time"

	"stockpick/pkg/logger"
)

// ConceptSource 概念板块行情数据源。
// 排名与成分展开在存储层完成（窗口累计涨幅 + 百分位 + 成分表连接），
// 此处只消费结果。
type ConceptSource interface {
	// StrongSectors 返回 [target-momentumDays, target] 窗口内累计涨幅
	// 排名前 topPct 的板块的全部成分股 ts_code 集合
	StrongSectors(ctx context.Context, targetDate time.Time, topPct float64, momentumDays int) (map[string]struct{}, error)
}

// GetStrongSectors 取强势板块成分股集合，数据缺失时返回空集而非报错。
func GetStrongSectors(ctx context.Context, src ConceptSource, targetDate time.Time, topPct float64, momentumDays int) map[string]struct{} {
	sectors, err := src.StrongSectors(ctx, targetDate, topPct, momentumDays)
	if err != nil {
		logger.WithComponent("sector_filter").
			WithError(err).Warn("强势板块查询失败，返回空集")
		return map[string]struct{}{}
	}
	return sectors
}
