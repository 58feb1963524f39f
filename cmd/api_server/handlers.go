package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpick/pkg/backtest"
	"stockpick/pkg/config"
	apperr "stockpick/pkg/error"
	"stockpick/pkg/logger"
	"stockpick/pkg/optimize"
	"stockpick/pkg/pipeline"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
	"stockpick/pkg/v4"
)

type server struct {
	cfg        *config.Config
	store      *store.Store
	pipeline   *pipeline.Pipeline
	runner     *backtest.Runner
	evalRunner *backtest.Runner
	replay     *optimize.MarketReplayOptimizer
}

func newServer(cfg *config.Config, st *store.Store, pl *pipeline.Pipeline,
	runner, evalRunner *backtest.Runner, replay *optimize.MarketReplayOptimizer) *server {
	return &server{
		cfg:        cfg,
		store:      st,
		pipeline:   pl,
		runner:     runner,
		evalRunner: evalRunner,
		replay:     replay,
	}
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/strategies", s.listStrategies)
		v1.POST("/select", s.runSelect)

		v1.POST("/backtest/run", s.runBacktest)
		v1.GET("/backtest/tasks/:id", s.taskHandler(store.KindBacktest))
		v1.GET("/backtest/results/:id", s.getBacktestResult)

		v1.POST("/optimization/run", s.runOptimization)
		v1.GET("/optimization/tasks/:id", s.taskHandler(store.KindOptimization))
		v1.GET("/optimization/results/:id", s.getOptimizationResults)

		v1.POST("/optimization/market/run", s.runMarketOptimization)
		v1.GET("/optimization/market/tasks/:id", s.taskHandler(store.KindMarketOptimization))
		v1.GET("/optimization/market/results/:id", s.getOptimizationResults)

		v1.POST("/v4/run", s.runV4)
		v1.GET("/v4/tasks/:id", s.taskHandler(store.KindV4Backtest))
		v1.GET("/v4/results/:id", s.getV4Results)
	}
	return r
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortError(c *gin.Context, status int, err error) {
	code := "INTERNAL"
	var base *apperr.BaseError
	if errors.As(err, &base) {
		code = string(base.Code)
	}
	c.JSON(status, errorResponse{Error: code, Message: err.Error()})
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}

func (s *server) listStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.AllMetas()})
}

// ---- 选股 ----

type selectRequest struct {
	TargetDate         string                        `json:"target_date" binding:"required"`
	Strategies         []string                      `json:"strategies"`
	Overrides          map[string]map[string]float64 `json:"overrides"`
	Weights            map[string]float64            `json:"weights"`
	TopN               int                           `json:"top_n"`
	EnableMarketFilter *bool                         `json:"enable_market_filter"`
	EnableSectorFilter *bool                         `json:"enable_sector_filter"`
	Persist            bool                          `json:"persist"`
	UseCache           bool                          `json:"use_cache"`
}

func (s *server) runSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	date, err := parseDate(req.TargetDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	plReq := pipeline.Request{
		TargetDate:     date,
		Strategies:     req.Strategies,
		Overrides:      toOverrides(req.Overrides),
		Weights:        req.Weights,
		TopN:           req.TopN,
		Persist:        req.Persist,
		UseResultCache: req.UseCache,
	}
	if req.EnableMarketFilter != nil {
		plReq.EnableMarketFilter = *req.EnableMarketFilter
	} else {
		plReq.EnableMarketFilter = true
	}
	if req.EnableSectorFilter != nil {
		plReq.EnableSectorFilter = *req.EnableSectorFilter
	} else {
		plReq.EnableSectorFilter = true
	}

	res, err := s.pipeline.Execute(c.Request.Context(), plReq)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---- 回测 ----

type backtestRequest struct {
	TsCodes        []string           `json:"ts_codes" binding:"required"`
	Strategy       string             `json:"strategy" binding:"required"`
	Params         map[string]float64 `json:"params"`
	StartDate      string             `json:"start_date" binding:"required"`
	EndDate        string             `json:"end_date" binding:"required"`
	InitialCapital float64            `json:"initial_capital"`
	StopLossPct    float64            `json:"stop_loss_pct"`
	HoldDays       int                `json:"hold_days"`
}

func (s *server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if _, err := strategy.GetMeta(req.Strategy); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	btReq := backtest.Request{
		Codes:          req.TsCodes,
		StrategyName:   req.Strategy,
		Params:         req.Params,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		StopLossPct:    req.StopLossPct,
		HoldDays:       req.HoldDays,
	}
	s.applyBacktestDefaults(&btReq)

	taskID, err := s.store.Tasks.Create(c.Request.Context(), &store.Task{
		Kind:         store.KindBacktest,
		StrategyName: req.Strategy,
		Params:       req.Params,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	btReq.TaskID = taskID

	s.launch(store.KindBacktest, taskID, func(ctx context.Context) error {
		return s.runner.Execute(ctx, btReq)
	})
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

func (s *server) applyBacktestDefaults(req *backtest.Request) {
	if req.InitialCapital <= 0 {
		req.InitialCapital = s.cfg.Backtest.InitialCapital
	}
	if req.StopLossPct <= 0 {
		req.StopLossPct = 0.08
	}
	if req.HoldDays <= 0 {
		req.HoldDays = 10
	}
}

func (s *server) getBacktestResult(c *gin.Context) {
	rec, err := s.store.Results.GetBacktestResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ---- 参数寻优 ----

type optimizationRequest struct {
	Strategy       string             `json:"strategy" binding:"required"`
	Mode           string             `json:"mode"` // grid | genetic
	TsCodes        []string           `json:"ts_codes" binding:"required"`
	StartDate      string             `json:"start_date" binding:"required"`
	EndDate        string             `json:"end_date" binding:"required"`
	InitialCapital float64            `json:"initial_capital"`
	StopLossPct    float64            `json:"stop_loss_pct"`
	HoldDays       int                `json:"hold_days"`
	Seed           int64              `json:"seed"`
	Params         map[string]float64 `json:"params"` // 固定不变的参数覆盖
}

func (s *server) runOptimization(c *gin.Context) {
	var req optimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	meta, err := strategy.GetMeta(req.Strategy)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if len(meta.ParamSpace) == 0 {
		abortError(c, http.StatusBadRequest,
			apperr.NewError(optimize.ErrEmptySpace, "该策略未声明参数空间"))
		return
	}
	maxCombos := s.cfg.Optimizer.MaxCombos
	if maxCombos <= 0 {
		maxCombos = optimize.DefaultMaxCombos
	}
	if (req.Mode == "" || req.Mode == "grid") && optimize.Count(meta.ParamSpace) > maxCombos {
		abortError(c, http.StatusBadRequest,
			apperr.NewError(optimize.ErrGridTooLarge, "参数网格组合数超过上限"))
		return
	}

	taskID, err := s.store.Tasks.Create(c.Request.Context(), &store.Task{
		Kind:         store.KindOptimization,
		StrategyName: req.Strategy,
		Params:       req.Params,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}

	btReq := backtest.Request{
		Codes:          req.TsCodes,
		StrategyName:   req.Strategy,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		StopLossPct:    req.StopLossPct,
		HoldDays:       req.HoldDays,
	}
	s.applyBacktestDefaults(&btReq)

	eval := func(ctx context.Context, params strategy.Params) (backtest.Metrics, error) {
		r := btReq
		r.Params = strategy.Merge(req.Params, params)
		return s.evalRunner.Evaluate(ctx, r)
	}
	mode := req.Mode
	seed := req.Seed

	s.launch(store.KindOptimization, taskID, func(ctx context.Context) error {
		var cands []optimize.Candidate
		var runErr error
		switch mode {
		case "", "grid":
			gs := optimize.NewGridSearcher()
			if s.cfg.Optimizer.MaxConcurrency > 0 {
				gs.MaxConcurrency = int64(s.cfg.Optimizer.MaxConcurrency)
			}
			if s.cfg.Optimizer.MaxCombos > 0 {
				gs.MaxCombos = s.cfg.Optimizer.MaxCombos
			}
			cands, runErr = gs.Run(ctx, meta.ParamSpace, eval)
		case "genetic":
			cands, runErr = optimize.NewGeneticOptimizer(seed).Run(ctx, meta.ParamSpace, eval)
		default:
			runErr = fmt.Errorf("未知寻优模式: %s", mode)
		}
		if runErr != nil {
			return runErr
		}
		recs := make([]store.OptimizationResultRecord, len(cands))
		for i, cand := range cands {
			recs[i] = store.OptimizationResultRecord{
				Rank:        i + 1,
				Params:      cand.Params,
				Sharpe:      cand.Metrics.Sharpe,
				TotalReturn: cand.Metrics.TotalReturn,
				MaxDrawdown: cand.Metrics.MaxDrawdown,
				WinRate:     cand.Metrics.WinRate,
				Score:       cand.Metrics.Sharpe,
				TradeCount:  cand.Metrics.TradeCount,
			}
		}
		if err := s.store.Results.InsertOptimizationResults(ctx, taskID, recs); err != nil {
			return err
		}
		return s.store.Tasks.MarkCompleted(ctx, store.KindOptimization, taskID)
	})
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

func (s *server) getOptimizationResults(c *gin.Context) {
	recs, err := s.store.Results.GetOptimizationResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": recs})
}

// ---- 行情回放寻优 ----

type marketOptimizationRequest struct {
	Strategy   string               `json:"strategy" binding:"required"`
	EndDate    string               `json:"end_date" binding:"required"`
	Candidates []map[string]float64 `json:"candidates"`
}

func (s *server) runMarketOptimization(c *gin.Context) {
	var req marketOptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	meta, err := strategy.GetMeta(req.Strategy)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	candidates := make([]strategy.Params, 0, len(req.Candidates))
	for _, m := range req.Candidates {
		candidates = append(candidates, strategy.Params(m))
	}
	if len(candidates) == 0 {
		maxCombos := s.cfg.Optimizer.MaxCombos
		if maxCombos <= 0 {
			maxCombos = optimize.DefaultMaxCombos
		}
		candidates, err = optimize.Generate(meta.ParamSpace, maxCombos)
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
	}

	taskID, err := s.store.Tasks.Create(c.Request.Context(), &store.Task{
		Kind:         store.KindMarketOptimization,
		StrategyName: req.Strategy,
		EndDate:      end,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	strategyName := req.Strategy

	s.launch(store.KindMarketOptimization, taskID, func(ctx context.Context) error {
		scores, err := s.replay.Run(ctx, strategyName, end, candidates)
		if err != nil {
			return err
		}
		recs := make([]store.OptimizationResultRecord, len(scores))
		for i, sc := range scores {
			hit, avg, mdd, score := sc.HitRate5D, sc.AvgReturn5D, sc.MaxDrawdown, sc.Score
			recs[i] = store.OptimizationResultRecord{
				Rank:        i + 1,
				Params:      sc.Params,
				WinRate:     &hit,
				TotalReturn: &avg,
				MaxDrawdown: &mdd,
				Score:       &score,
				TradeCount:  sc.TotalPicks,
			}
		}
		if err := s.store.Results.InsertOptimizationResults(ctx, taskID, recs); err != nil {
			return err
		}
		return s.store.Tasks.MarkCompleted(ctx, store.KindMarketOptimization, taskID)
	})
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// ---- 量价策略回放寻优 ----

type v4Request struct {
	EndDate    string `json:"end_date" binding:"required"`
	WindowDays int    `json:"window_days"`
	IndexCode  string `json:"index_code"`
}

func (s *server) runV4(c *gin.Context) {
	var req v4Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := s.store.Tasks.Create(c.Request.Context(), &store.Task{
		Kind:         store.KindV4Backtest,
		StrategyName: strategy.NameVolumePricePattern,
		EndDate:      end,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	windowDays, indexCode := req.WindowDays, req.IndexCode

	s.launch(store.KindV4Backtest, taskID, func(ctx context.Context) error {
		data, err := v4.Preload(ctx, s.store, end, windowDays, indexCode)
		if err != nil {
			return err
		}
		gs := v4.NewGridSearcher()
		if s.cfg.Optimizer.MaxConcurrency > 0 {
			gs.MaxConcurrency = int64(s.cfg.Optimizer.MaxConcurrency)
		}
		cands, err := gs.Run(ctx, v4.NewEngine(data), nil)
		if err != nil {
			return err
		}
		recs := make([]store.V4ResultRecord, len(cands))
		for i, cand := range cands {
			m := cand.Metrics
			recs[i] = store.V4ResultRecord{
				Rank:            i + 1,
				Params:          cand.Params,
				SignalCount:     m.SignalCount,
				WinRate1D:       m.WinRate1D,
				WinRate3D:       m.WinRate3D,
				WinRate5D:       m.WinRate5D,
				WinRate10D:      m.WinRate10D,
				AvgReturn5D:     m.AvgReturn5D,
				ProfitLossRatio: m.ProfitLossRatio,
				MaxDrawdown:     m.MaxDrawdown,
				Sharpe:          m.Sharpe,
				SignalsPerMonth: m.SignalsPerMonth,
				Composite:       m.Composite,
			}
		}
		if err := s.store.Results.InsertV4Results(ctx, taskID, recs); err != nil {
			return err
		}
		return s.store.Tasks.MarkCompleted(ctx, store.KindV4Backtest, taskID)
	})
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

func (s *server) getV4Results(c *gin.Context) {
	recs, err := s.store.Results.GetV4Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": recs})
}

// ---- 公共 ----

func (s *server) taskHandler(kind store.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := s.store.Tasks.Get(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			abortError(c, statusOf(err), err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// launch 后台执行任务。panic 兜底翻转任务状态，避免悬挂在 running。
func (s *server) launch(kind store.TaskKind, taskID string, fn func(context.Context) error) {
	go func() {
		log := logger.WithTask(string(kind), taskID)
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("任务 panic: %v", r)
				_ = s.store.Tasks.MarkFailed(ctx, kind, taskID, fmt.Errorf("panic: %v", r))
			}
		}()
		if kind != store.KindBacktest {
			if err := s.store.Tasks.MarkRunning(ctx, kind, taskID); err != nil {
				log.WithError(err).Error("任务状态流转失败")
				return
			}
		}
		if err := fn(ctx); err != nil {
			log.WithError(err).Error("任务执行失败")
			_ = s.store.Tasks.MarkFailed(ctx, kind, taskID, err)
		}
	}()
}

func statusOf(err error) int {
	var base *apperr.BaseError
	if errors.As(err, &base) && base.Code == store.ErrNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := parseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date 早于 start_date")
	}
	return start, end, nil
}

func toOverrides(in map[string]map[string]float64) map[string]strategy.Params {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]strategy.Params, len(in))
	for name, m := range in {
		out[name] = strategy.Params(m)
	}
	return out
}
