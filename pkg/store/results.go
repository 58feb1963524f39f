package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apperr "stockpick/pkg/error"
)

// BacktestResultRecord backtest_results 一行。指标列可空，
// 交易明细与净值曲线以 JSONB 存储。
type BacktestResultRecord struct {
	TaskID         string             `json:"task_id"`
	StrategyName   string             `json:"strategy_name"`
	Params         map[string]float64 `json:"params"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	InitialCapital float64            `json:"initial_capital"`
	FinalEquity    float64            `json:"final_equity"`

	TotalReturn  *float64 `json:"total_return"`
	AnnualReturn *float64 `json:"annual_return"`
	Sharpe       *float64 `json:"sharpe"`
	Sortino      *float64 `json:"sortino"`
	Calmar       *float64 `json:"calmar"`
	MaxDrawdown  *float64 `json:"max_drawdown"`
	Volatility   *float64 `json:"volatility"`
	WinRate      *float64 `json:"win_rate"`
	ProfitFactor *float64 `json:"profit_factor"`
	TradeCount   int      `json:"trade_count"`

	Trades any `json:"trades"`
	Equity any `json:"equity"`
}

// OptimizationResultRecord optimization_results 一行，按得分排名。
type OptimizationResultRecord struct {
	Rank        int                `json:"rank"`
	Params      map[string]float64 `json:"params"`
	Sharpe      *float64           `json:"sharpe"`
	TotalReturn *float64           `json:"total_return"`
	MaxDrawdown *float64           `json:"max_drawdown"`
	WinRate     *float64           `json:"win_rate"`
	Score       *float64           `json:"score"`
	TradeCount  int                `json:"trade_count"`
}

// V4ResultRecord v4_backtest_results 一行：量价策略参数组合的评估结果。
type V4ResultRecord struct {
	Rank            int                `json:"rank"`
	Params          map[string]float64 `json:"params"`
	SignalCount     int                `json:"signal_count"`
	WinRate1D       *float64           `json:"win_rate_1d"`
	WinRate3D       *float64           `json:"win_rate_3d"`
	WinRate5D       *float64           `json:"win_rate_5d"`
	WinRate10D      *float64           `json:"win_rate_10d"`
	AvgReturn5D     *float64           `json:"avg_return_5d"`
	ProfitLossRatio *float64           `json:"profit_loss_ratio"`
	MaxDrawdown     *float64           `json:"max_drawdown"`
	Sharpe          *float64           `json:"sharpe"`
	SignalsPerMonth *float64           `json:"signals_per_month"`
	Composite       *float64           `json:"composite"`
}

// ResultRepo 回测与寻优结果仓储。
type ResultRepo struct {
	pool PgxPool
}

// InsertBacktestResult 写入单次回测结果。
func (r *ResultRepo) InsertBacktestResult(ctx context.Context, rec *BacktestResultRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO backtest_results
			(task_id, strategy_name, params, start_date, end_date,
			 initial_capital, final_equity,
			 total_return, annual_return, sharpe, sortino, calmar,
			 max_drawdown, volatility, win_rate, profit_factor, trade_count,
			 trades, equity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19)`,
		rec.TaskID, rec.StrategyName, rec.Params, day(rec.StartDate), day(rec.EndDate),
		rec.InitialCapital, rec.FinalEquity,
		rec.TotalReturn, rec.AnnualReturn, rec.Sharpe, rec.Sortino, rec.Calmar,
		rec.MaxDrawdown, rec.Volatility, rec.WinRate, rec.ProfitFactor, rec.TradeCount,
		rec.Trades, rec.Equity)
	if err != nil {
		return wrapWrite("backtest_results", err)
	}
	return nil
}

// GetBacktestResult 按任务 ID 读取回测结果。
func (r *ResultRepo) GetBacktestResult(ctx context.Context, taskID string) (*BacktestResultRecord, error) {
	rec := &BacktestResultRecord{}
	err := r.pool.QueryRow(ctx, `
		SELECT task_id, strategy_name, params, start_date, end_date,
		       initial_capital, final_equity,
		       total_return, annual_return, sharpe, sortino, calmar,
		       max_drawdown, volatility, win_rate, profit_factor, trade_count,
		       trades, equity
		FROM backtest_results WHERE task_id = $1`, taskID).
		Scan(&rec.TaskID, &rec.StrategyName, &rec.Params, &rec.StartDate, &rec.EndDate,
			&rec.InitialCapital, &rec.FinalEquity,
			&rec.TotalReturn, &rec.AnnualReturn, &rec.Sharpe, &rec.Sortino, &rec.Calmar,
			&rec.MaxDrawdown, &rec.Volatility, &rec.WinRate, &rec.ProfitFactor, &rec.TradeCount,
			&rec.Trades, &rec.Equity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewError(ErrNotFound, "回测结果不存在: "+taskID)
	}
	if err != nil {
		return nil, wrapQuery("backtest_results", err)
	}
	return rec, nil
}

// InsertOptimizationResults 批量写入排名后的寻优结果，单事务。
func (r *ResultRepo) InsertOptimizationResults(ctx context.Context, taskID string, recs []OptimizationResultRecord) error {
	return r.batchInsert(ctx, len(recs), func(b *pgx.Batch) {
		for _, rec := range recs {
			b.Queue(`
				INSERT INTO optimization_results
					(task_id, rank, params, sharpe, total_return,
					 max_drawdown, win_rate, score, trade_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				taskID, rec.Rank, rec.Params, rec.Sharpe, rec.TotalReturn,
				rec.MaxDrawdown, rec.WinRate, rec.Score, rec.TradeCount)
		}
	}, "optimization_results")
}

// GetOptimizationResults 按任务 ID 读取排名结果，升序。
func (r *ResultRepo) GetOptimizationResults(ctx context.Context, taskID string) ([]OptimizationResultRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rank, params, sharpe, total_return, max_drawdown,
		       win_rate, score, trade_count
		FROM optimization_results
		WHERE task_id = $1 ORDER BY rank ASC`, taskID)
	if err != nil {
		return nil, wrapQuery("optimization_results", err)
	}
	defer rows.Close()

	var out []OptimizationResultRecord
	for rows.Next() {
		var rec OptimizationResultRecord
		if err := rows.Scan(&rec.Rank, &rec.Params, &rec.Sharpe, &rec.TotalReturn,
			&rec.MaxDrawdown, &rec.WinRate, &rec.Score, &rec.TradeCount); err != nil {
			return nil, wrapQuery("optimization_results 扫描", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertV4Results 批量写入量价策略寻优结果，单事务。
func (r *ResultRepo) InsertV4Results(ctx context.Context, taskID string, recs []V4ResultRecord) error {
	return r.batchInsert(ctx, len(recs), func(b *pgx.Batch) {
		for _, rec := range recs {
			b.Queue(`
				INSERT INTO v4_backtest_results
					(task_id, rank, params, signal_count,
					 win_rate_1d, win_rate_3d, win_rate_5d, win_rate_10d,
					 avg_return_5d, profit_loss_ratio, max_drawdown, sharpe,
					 signals_per_month, composite)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				taskID, rec.Rank, rec.Params, rec.SignalCount,
				rec.WinRate1D, rec.WinRate3D, rec.WinRate5D, rec.WinRate10D,
				rec.AvgReturn5D, rec.ProfitLossRatio, rec.MaxDrawdown, rec.Sharpe,
				rec.SignalsPerMonth, rec.Composite)
		}
	}, "v4_backtest_results")
}

func (r *ResultRepo) GetV4Results(ctx context.Context, taskID string) ([]V4ResultRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rank, params, signal_count,
		       win_rate_1d, win_rate_3d, win_rate_5d, win_rate_10d,
		       avg_return_5d, profit_loss_ratio, max_drawdown, sharpe,
		       signals_per_month, composite
		FROM v4_backtest_results
		WHERE task_id = $1 ORDER BY rank ASC`, taskID)
	if err != nil {
		return nil, wrapQuery("v4_backtest_results", err)
	}
	defer rows.Close()

	var out []V4ResultRecord
	for rows.Next() {
		var rec V4ResultRecord
		if err := rows.Scan(&rec.Rank, &rec.Params, &rec.SignalCount,
			&rec.WinRate1D, &rec.WinRate3D, &rec.WinRate5D, &rec.WinRate10D,
			&rec.AvgReturn5D, &rec.ProfitLossRatio, &rec.MaxDrawdown, &rec.Sharpe,
			&rec.SignalsPerMonth, &rec.Composite); err != nil {
			return nil, wrapQuery("v4_backtest_results 扫描", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ResultRepo) batchInsert(ctx context.Context, n int, queue func(*pgx.Batch), table string) error {
	if n == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapWrite(table, err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	queue(b)
	br := tx.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return wrapWrite(table, err)
		}
	}
	if err := br.Close(); err != nil {
		return wrapWrite(table, err)
	}
	return tx.Commit(ctx)
}
