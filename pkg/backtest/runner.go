package backtest

import (
	"context"
	"sort"
	"time"

	"stockpick/pkg/config"
	apperr "stockpick/pkg/error"
	"stockpick/pkg/logger"
	"stockpick/pkg/market"
	"stockpick/pkg/store"
	"stockpick/pkg/strategy"
)

// Request 一次回测任务的输入。
type Request struct {
	TaskID         string
	Codes          []string
	StrategyName   string
	Params         strategy.Params
	Start, End     time.Time
	InitialCapital float64
	StopLossPct    float64
	HoldDays       int
}

// Runner 回测任务执行器：装载行情、回放信号、提取指标、落库，
// 并维护任务状态流转。
type Runner struct {
	store  *store.Store
	feed   *market.FeedLoader
	inds   *market.IndicatorBuilder
	engine *Engine
	sink   EquitySink
}

// NewRunner sink 可为 nil。
func NewRunner(st *store.Store, cfg config.BacktestConfig, sink EquitySink) *Runner {
	return &Runner{
		store:  st,
		feed:   market.NewFeedLoader(st.Bars),
		inds:   &market.IndicatorBuilder{},
		engine: &Engine{Cost: CostModelFromConfig(cfg), Slippage: cfg.SlippagePct},
		sink:   sink,
	}
}

// Execute 执行任务并落库。任何失败都把任务翻到 failed 并带上
// 错误信息；成功路径写结果行后翻到 completed。
func (r *Runner) Execute(ctx context.Context, req Request) error {
	log := logger.WithTask("backtest_runner", req.TaskID)

	if err := r.store.Tasks.MarkRunning(ctx, store.KindBacktest, req.TaskID); err != nil {
		return err
	}
	rec, err := r.run(ctx, req)
	if err != nil {
		log.WithError(err).Error("回测失败")
		if ferr := r.store.Tasks.MarkFailed(ctx, store.KindBacktest, req.TaskID, err); ferr != nil {
			return ferr
		}
		return err
	}
	if err := r.store.Results.InsertBacktestResult(ctx, rec); err != nil {
		_ = r.store.Tasks.MarkFailed(ctx, store.KindBacktest, req.TaskID, err)
		return err
	}
	return r.store.Tasks.MarkCompleted(ctx, store.KindBacktest, req.TaskID)
}

// Evaluate 以一组参数跑完整回测但不落库，供参数寻优复用。
func (r *Runner) Evaluate(ctx context.Context, req Request) (Metrics, error) {
	rec, err := r.run(ctx, req)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		TotalReturn:  rec.TotalReturn,
		AnnualReturn: rec.AnnualReturn,
		Sharpe:       rec.Sharpe,
		Sortino:      rec.Sortino,
		Calmar:       rec.Calmar,
		MaxDrawdown:  rec.MaxDrawdown,
		Volatility:   rec.Volatility,
		WinRate:      rec.WinRate,
		ProfitFactor: rec.ProfitFactor,
		TradeCount:   rec.TradeCount,
	}, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*store.BacktestResultRecord, error) {
	if len(req.Codes) == 0 {
		return nil, apperr.NewError(ErrEmptyCodes, "回测股票池不能为空")
	}
	strat, err := strategy.New(req.StrategyName, req.Params)
	if err != nil {
		return nil, err
	}
	names, err := r.store.Bars.StockNames(ctx, req.Codes)
	if err != nil {
		return nil, err
	}
	funds, err := r.store.Fundamentals.LatestFundamentals(ctx, req.End)
	if err != nil {
		return nil, err
	}

	perStock := req.InitialCapital / float64(len(req.Codes))
	var allTrades []Trade
	var curves [][]EquityPoint

	for _, code := range req.Codes {
		feed, err := r.feed.Load(ctx, code, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		indRows := r.inds.Compute(feed.Bars)

		var fund *market.Fundamental
		if f, ok := funds[code]; ok {
			fund = &f
		}
		signals, err := BuildSignals(ctx, strat, code, names[code], feed.Bars, indRows, fund)
		if err != nil {
			return nil, err
		}
		res, err := r.engine.Run(RunInput{
			TsCode:         code,
			Name:           names[code],
			Bars:           feed.Bars,
			Signals:        signals,
			InitialCapital: perStock,
			StopLossPct:    req.StopLossPct,
			HoldDays:       req.HoldDays,
		})
		if err != nil {
			return nil, err
		}
		allTrades = append(allTrades, res.Trades...)
		curves = append(curves, res.Equity)
	}

	equity := MergeEquity(curves)
	metrics := ExtractMetrics(equity, allTrades, req.InitialCapital)

	if r.sink != nil {
		if err := r.sink.WriteEquity(ctx, req.TaskID, req.StrategyName, equity); err != nil {
			logger.WithComponent("backtest_runner").WithError(err).Warn("净值外部落地失败，继续")
		}
	}

	final := req.InitialCapital
	if len(equity) > 0 {
		final = equity[len(equity)-1].Value
	}
	return &store.BacktestResultRecord{
		TaskID:         req.TaskID,
		StrategyName:   req.StrategyName,
		Params:         req.Params,
		StartDate:      req.Start,
		EndDate:        req.End,
		InitialCapital: req.InitialCapital,
		FinalEquity:    final,
		TotalReturn:    metrics.TotalReturn,
		AnnualReturn:   metrics.AnnualReturn,
		Sharpe:         metrics.Sharpe,
		Sortino:        metrics.Sortino,
		Calmar:         metrics.Calmar,
		MaxDrawdown:    metrics.MaxDrawdown,
		Volatility:     metrics.Volatility,
		WinRate:        metrics.WinRate,
		ProfitFactor:   metrics.ProfitFactor,
		TradeCount:     metrics.TradeCount,
		Trades:         allTrades,
		Equity:         equity,
	}, nil
}

// MergeEquity 按日期合并多条净值曲线：日期取并集，
// 缺日的曲线沿用其最近一个净值。
func MergeEquity(curves [][]EquityPoint) []EquityPoint {
	switch len(curves) {
	case 0:
		return nil
	case 1:
		return curves[0]
	}

	dates := map[time.Time]struct{}{}
	for _, c := range curves {
		for _, p := range c {
			dates[p.Date] = struct{}{}
		}
	}
	sorted := make([]time.Time, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	idx := make([]int, len(curves))
	last := make([]float64, len(curves))
	for i, c := range curves {
		if len(c) > 0 {
			last[i] = c[0].Value
		}
	}

	out := make([]EquityPoint, 0, len(sorted))
	for _, d := range sorted {
		total := 0.0
		for i, c := range curves {
			for idx[i] < len(c) && !c[idx[i]].Date.After(d) {
				last[i] = c[idx[i]].Value
				idx[i]++
			}
			total += last[i]
		}
		out = append(out, EquityPoint{Date: d, Value: total})
	}
	return out
}
