package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockpick/pkg/backtest"
	"stockpick/pkg/cache"
	"stockpick/pkg/config"
	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/optimize"
	"stockpick/pkg/pipeline"
	"stockpick/pkg/store"
)

var (
	configPath = flag.String("config", "", "配置文件路径 (例如 /app/config/stockpick.yaml)")
	logLevel   = flag.String("log-level", "", "日志级别，覆盖配置 (debug, info, warn, error)")
	logFormat  = flag.String("log-format", "", "日志格式，覆盖配置 (json or text)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	initLogger(cfg)
	log := logger.WithComponent("api_server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, pool, err := store.Connect(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("数据库初始化失败")
	}
	defer pool.Close()

	if err := store.EnsureSchema(context.Background(), pool); err != nil {
		log.WithError(err).Fatal("表结构初始化失败")
	}

	resultCache := cache.NewResultCache(cfg.Redis)
	defer resultCache.Close()

	sink := backtest.NewInfluxSink(cfg.Influx)
	if sink != nil {
		defer sink.Close()
	}

	snap := market.NewSnapshotBuilder(st.Bars, st.Indicators, st.Fundamentals, st.Calendar)
	pl := pipeline.New(st, snap, resultCache)
	runner := backtest.NewRunner(st, cfg.Backtest, sink)
	evalRunner := backtest.NewRunner(st, cfg.Backtest, nil) // 寻优不写净值外部存储
	replay := optimize.NewMarketReplayOptimizer(st, pl)
	if cfg.Optimizer.SampleInterval > 0 {
		replay.SampleInterval = cfg.Optimizer.SampleInterval
	}
	if cfg.Optimizer.LookbackDays > 0 {
		replay.LookbackDays = cfg.Optimizer.LookbackDays
	}

	srv := newServer(cfg, st, pl, runner, evalRunner, replay)

	gin.SetMode(cfg.Server.Mode)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.router(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP 服务启动失败")
		}
	}()
	log.WithField("port", cfg.Server.Port).Info("API 服务已启动")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("正在关闭 API 服务...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP 服务优雅关闭失败")
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.Default(), nil
	}
	return config.Load(*configPath)
}

func initLogger(cfg *config.Config) {
	level := cfg.Logger.Level
	if *logLevel != "" {
		level = *logLevel
	}
	format := cfg.Logger.Format
	if *logFormat != "" {
		format = *logFormat
	}
	logger.Init(logger.Config{Level: level, Format: format})
}
