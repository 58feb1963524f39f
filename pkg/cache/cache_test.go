package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpick/pkg/config"
	"stockpick/pkg/pipeline"
)

func TestResultCacheKey(t *testing.T) {
	c := NewResultCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	defer c.Close()

	date := time.Date(2025, 6, 18, 15, 30, 0, 0, time.Local)
	assert.Equal(t, "pipeline:result:2025-06-18", c.key(date), "键按交易日归一")
}

// TestResultCacheDegradesSilently 后端不可达时读写都不应影响调用方。
func TestResultCacheDegradesSilently(t *testing.T) {
	c := NewResultCache(config.RedisConfig{Addr: "127.0.0.1:1", ResultTTL: time.Hour})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	picks, ok := c.GetPicks(ctx, time.Now())
	assert.False(t, ok)
	assert.Nil(t, picks)

	assert.NotPanics(t, func() {
		c.SetPicks(ctx, time.Now(), []pipeline.Pick{{TsCode: "000001.SZ"}})
	})
}

// TestResultCacheMissKeepsBreakerClosed 冷键未命中是正常路径，
// 连续未命中不得累计为熔断失败。
func TestResultCacheMissKeepsBreakerClosed(t *testing.T) {
	c := NewResultCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	defer c.Close()

	for i := 0; i < 10; i++ {
		raw, err := c.cb.Execute(func() (interface{}, error) {
			return missAsEmpty(nil, redis.Nil)
		})
		require.NoError(t, err, "未命中不应作为失败穿出熔断器")
		assert.Nil(t, raw.([]byte))
	}
	assert.Equal(t, gobreaker.StateClosed, c.cb.State())
}

func TestMissAsEmpty(t *testing.T) {
	raw, err := missAsEmpty(nil, redis.Nil)
	require.NoError(t, err)
	assert.Nil(t, raw.([]byte))

	transport := errors.New("connection refused")
	_, err = missAsEmpty(nil, transport)
	assert.Equal(t, transport, err, "传输错误原样进入熔断统计")

	raw, err = missAsEmpty([]byte(`[]`), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), raw.([]byte))
}

func TestResultCacheTTLDefault(t *testing.T) {
	c := NewResultCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	defer c.Close()
	assert.Equal(t, 24*time.Hour, c.ttl)
}
