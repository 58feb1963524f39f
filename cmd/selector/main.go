// selector 每日选股入口：对指定交易日执行选股流水线，
// 输出候选列表与次日交易计划，并可落库。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"stockpick/pkg/cache"
	"stockpick/pkg/config"
	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/pipeline"
	"stockpick/pkg/store"
)

var (
	configPath = flag.String("config", "", "配置文件路径")
	dateStr    = flag.String("date", "", "目标交易日 (YYYY-MM-DD)，默认今天")
	strategies = flag.String("strategies", "", "参与策略，逗号分隔，默认全部")
	topN       = flag.Int("top", 20, "输出候选数")
	persist    = flag.Bool("persist", false, "选股结果与交易计划落库")
	useCache   = flag.Bool("use-cache", false, "读写 Redis 结果缓存")
	noMarket   = flag.Bool("no-market-filter", false, "关闭大盘过滤")
	noSector   = flag.Bool("no-sector-filter", false, "关闭板块过滤")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	log := logger.WithComponent("selector")

	targetDate := time.Now()
	if *dateStr != "" {
		var err error
		targetDate, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.WithError(err).Fatal("日期格式错误，应为 YYYY-MM-DD")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("数据库初始化失败")
	}
	defer pool.Close()

	var resultCache pipeline.ResultCache
	if *useCache {
		rc := cache.NewResultCache(cfg.Redis)
		defer rc.Close()
		resultCache = rc
	}

	snap := market.NewSnapshotBuilder(st.Bars, st.Indicators, st.Fundamentals, st.Calendar)
	pl := pipeline.New(st, snap, resultCache)

	req := pipeline.Request{
		TargetDate:         targetDate,
		TopN:               *topN,
		EnableMarketFilter: !*noMarket,
		EnableSectorFilter: !*noSector,
		Persist:            *persist,
		UseResultCache:     *useCache,
	}
	if *strategies != "" {
		req.Strategies = strings.Split(*strategies, ",")
	}

	res, err := pl.Execute(ctx, req)
	if err != nil {
		log.WithError(err).Fatal("选股失败")
	}

	printResult(res)
}

func printResult(res *pipeline.Result) {
	fmt.Printf("交易日 %s  大盘状态 %s  候选 %d 只\n\n",
		res.TargetDate.Format("2006-01-02"), res.MarketState, len(res.Picks))

	fmt.Printf("%-12s %-10s %8s %8s %8s  %s\n",
		"代码", "名称", "得分", "收盘", "涨跌幅", "命中策略")
	for _, p := range res.Picks {
		fmt.Printf("%-12s %-10s %8.2f %8.2f %7.2f%%  %s\n",
			p.TsCode, p.Name, p.Score, p.Close, p.PctChg,
			strings.Join(p.Strategies, ","))
	}

	if len(res.Plans) > 0 {
		fmt.Printf("\n次日交易计划（生效日 %s）\n", res.Plans[0].ValidDate.Format("2006-01-02"))
		fmt.Printf("%-12s %-14s %10s %10s %10s\n",
			"代码", "类型", "触发价", "止损价", "止盈价")
		for _, plan := range res.Plans {
			fmt.Printf("%-12s %-14s %10.2f %10.2f %10s\n",
				plan.TsCode, plan.PlanType,
				plan.TriggerPrice, plan.StopLoss, pfmt(plan.TakeProfit))
		}
	}
}

func pfmt(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
