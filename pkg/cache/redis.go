// Package cache 提供基于 Redis 的选股结果缓存。
// 缓存只是加速层：任何读写失败都静默降级为未命中，不影响主流程。
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"stockpick/pkg/config"
	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/pipeline"
)

const resultKeyPrefix = "pipeline:result:"

// ResultCache pipeline.ResultCache 的 Redis 实现。
// 熔断器保护：Redis 连续失败后短路后续请求，避免每次选股都等超时。
type ResultCache struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	ttl    time.Duration
}

// NewResultCache 建立 Redis 连接。探活失败不视为致命，
// 首次访问时由熔断器接管。
func NewResultCache(cfg config.RedisConfig) *ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	settings := gobreaker.Settings{
		Name:    "ResultCache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithComponent("cache").
				Warnf("熔断器 %s 状态从 %v 变更为 %v", name, from, to)
		},
	}

	ttl := cfg.ResultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
		ttl:    ttl,
	}
}

// GetPicks 读取某交易日的选股结果，未命中或后端异常返回 false。
// 键不存在是正常未命中，不计入熔断器失败。
func (c *ResultCache) GetPicks(ctx context.Context, tradeDate time.Time) ([]pipeline.Pick, bool) {
	raw, err := c.cb.Execute(func() (interface{}, error) {
		return missAsEmpty(c.client.Get(ctx, c.key(tradeDate)).Bytes())
	})
	if err != nil {
		logger.WithComponent("cache").WithError(err).Debug("结果缓存读取失败，回退为重算")
		return nil, false
	}
	data := raw.([]byte)
	if data == nil {
		return nil, false
	}

	var picks []pipeline.Pick
	if err := json.Unmarshal(data, &picks); err != nil {
		logger.WithComponent("cache").WithError(err).Warn("结果缓存数据损坏，忽略")
		return nil, false
	}
	return picks, true
}

// SetPicks 写入某交易日的选股结果，失败仅记录日志。
func (c *ResultCache) SetPicks(ctx context.Context, tradeDate time.Time, picks []pipeline.Pick) {
	data, err := json.Marshal(picks)
	if err != nil {
		logger.WithComponent("cache").WithError(err).Warn("选股结果序列化失败")
		return
	}
	_, err = c.cb.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, c.key(tradeDate), data, c.ttl).Err()
	})
	if err != nil {
		logger.WithComponent("cache").WithError(err).Debug("结果缓存写入失败")
	}
}

// missAsEmpty 键不存在映射为空负载成功，只有传输错误进入熔断统计。
func missAsEmpty(data []byte, err error) (interface{}, error) {
	if err == redis.Nil {
		return []byte(nil), nil
	}
	return data, err
}

// Close 释放 Redis 连接。
func (c *ResultCache) Close() error {
	return c.client.Close()
}

func (c *ResultCache) key(tradeDate time.Time) string {
	return resultKeyPrefix + market.DateKey(tradeDate)
}
