// Package v4 实现量价洗盘企稳策略的专用回放引擎：
// 观察池状态机全程在内存中推进，参数寻优阶段零数据库访问。
package v4

import (
	"sync"
	"time"

	"stockpick/pkg/market"
	"stockpick/pkg/strategy"
)

// Row 回放所需的单日单股行情与指标切片。
type Row struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	PctChg   float64
	Vol      float64
	VolRatio *float64
	MA10     *float64
	MA20     *float64
}

// Dataset 预加载的回放数据：交易日序列、逐日行情截面与大盘状态。
type Dataset struct {
	// Dates 窗口内交易日，升序
	Dates []time.Time
	// Rows 日期键 → ts_code → 行情
	Rows map[string]map[string]Row
	// States 日期键 → 大盘状态，缺省按中性处理
	States map[string]strategy.MarketState

	dateIndex map[string]int
}

// Finalize 建立日期下标索引，预加载完成后调用一次。
func (d *Dataset) Finalize() {
	d.dateIndex = make(map[string]int, len(d.Dates))
	for i, day := range d.Dates {
		d.dateIndex[market.DateKey(day)] = i
	}
}

// RowAt 某日某股行情。
func (d *Dataset) RowAt(dateKey, tsCode string) (Row, bool) {
	day, ok := d.Rows[dateKey]
	if !ok {
		return Row{}, false
	}
	r, ok := day[tsCode]
	return r, ok
}

// StateAt 某日大盘状态，缺省中性。
func (d *Dataset) StateAt(dateKey string) strategy.MarketState {
	if s, ok := d.States[dateKey]; ok {
		return s
	}
	return strategy.MarketNeutral
}

// DateIndex 交易日在窗口内的下标，-1 表示不在窗口。
func (d *Dataset) DateIndex(dateKey string) int {
	if i, ok := d.dateIndex[dateKey]; ok {
		return i
	}
	return -1
}

// t0Key T0 候选缓存键：同一组探测阈值的候选集只算一次。
type t0Key struct {
	minPctChg   float64
	minVolRatio float64
	accumDays   int
	maxRange    float64
}

// T0Cache 探测阈值 → 日期键 → 通过蓄势校验的 T0 候选。
// 网格寻优的并发回放共享同一缓存，互斥锁保证每组阈值只构建一次。
type T0Cache struct {
	mu      sync.Mutex
	entries map[t0Key]map[string][]string
}

// candidates 取（或构建）一组阈值下的全窗口 T0 候选。
func (c *T0Cache) candidates(d *Dataset, key t0Key) map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit, ok := c.entries[key]; ok {
		return hit
	}
	out := make(map[string][]string, len(d.Dates))
	for i, day := range d.Dates {
		dk := market.DateKey(day)
		var codes []string
		for code, row := range d.Rows[dk] {
			if row.Vol <= 0 || row.PctChg < key.minPctChg {
				continue
			}
			if row.VolRatio == nil || *row.VolRatio < key.minVolRatio {
				continue
			}
			if verifyAccumulation(d, code, i, key.accumDays, key.maxRange) {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			out[dk] = codes
		}
	}
	if c.entries == nil {
		c.entries = map[t0Key]map[string][]string{}
	}
	c.entries[key] = out
	return out
}

// size 已缓存的阈值组数。
func (c *T0Cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// verifyAccumulation T0 前 accumDays 个交易日的振幅校验：
// (max(high) − min(low)) / min(low) <= maxRange。窗口不足不通过。
func verifyAccumulation(d *Dataset, tsCode string, t0Idx, accumDays int, maxRange float64) bool {
	start := t0Idx - accumDays
	if start < 0 {
		return false
	}
	maxHigh, minLow := 0.0, 0.0
	seen := 0
	for i := start; i < t0Idx; i++ {
		row, ok := d.RowAt(market.DateKey(d.Dates[i]), tsCode)
		if !ok || row.Vol <= 0 {
			continue
		}
		if seen == 0 || row.High > maxHigh {
			maxHigh = row.High
		}
		if seen == 0 || row.Low < minLow {
			minLow = row.Low
		}
		seen++
	}
	if seen == 0 || minLow <= 0 {
		return false
	}
	return (maxHigh-minLow)/minLow <= maxRange
}
