package backtest

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"stockpick/pkg/config"
	"stockpick/pkg/logger"
)

// EquitySink 净值曲线外部落地，用于看板展示。
type EquitySink interface {
	WriteEquity(ctx context.Context, taskID, strategyName string, equity []EquityPoint) error
	Close()
}

// InfluxSink 把净值曲线写入 InfluxDB。写失败只告警不阻断回测。
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewInfluxSink 按配置创建；未启用时返回 nil，调用方按可选依赖处理。
func NewInfluxSink(cfg config.InfluxConfig) *InfluxSink {
	if !cfg.Enabled {
		return nil
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// WriteEquity 每个净值点一条 point，按任务与策略打标签。
func (s *InfluxSink) WriteEquity(ctx context.Context, taskID, strategyName string, equity []EquityPoint) error {
	for _, p := range equity {
		pt := influxdb2.NewPoint("backtest_equity",
			map[string]string{"task_id": taskID, "strategy": strategyName},
			map[string]interface{}{"value": p.Value},
			p.Date)
		if err := s.write.WritePoint(ctx, pt); err != nil {
			logger.WithComponent("influx_sink").WithError(err).Warn("净值写入失败")
			return err
		}
	}
	return nil
}

// Close 释放底层客户端。
func (s *InfluxSink) Close() {
	s.client.Close()
}
