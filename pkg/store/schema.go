package store

import (
	"context"

	"stockpick/pkg/logger"
)

// Schema 仓储层依赖的表基线。行情与指标表由采集侧维护，
// 这里仅保证本地开发与测试可自举。
const Schema = `
CREATE TABLE IF NOT EXISTS stocks (
	ts_code      text PRIMARY KEY,
	name         text NOT NULL,
	list_status  text NOT NULL DEFAULT 'L'
);

CREATE TABLE IF NOT EXISTS trade_calendar (
	cal_date  date NOT NULL,
	exchange  text NOT NULL DEFAULT 'SSE',
	is_open   boolean NOT NULL,
	PRIMARY KEY (cal_date, exchange)
);

CREATE TABLE IF NOT EXISTS stock_daily (
	ts_code        text NOT NULL,
	trade_date     date NOT NULL,
	open           double precision NOT NULL,
	high           double precision NOT NULL,
	low            double precision NOT NULL,
	close          double precision NOT NULL,
	pre_close      double precision NOT NULL,
	pct_chg        double precision NOT NULL,
	vol            double precision NOT NULL,
	amount         double precision NOT NULL,
	turnover_rate  double precision,
	adj_factor     double precision,
	trade_status   text,
	data_source    text,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS technical_daily (
	ts_code        text NOT NULL,
	trade_date     date NOT NULL,
	ma5            double precision, ma10  double precision,
	ma20           double precision, ma60  double precision,
	ma120          double precision, ma250 double precision,
	macd_dif       double precision, macd_dea double precision, macd_hist double precision,
	kdj_k          double precision, kdj_d double precision, kdj_j double precision,
	rsi6           double precision, rsi12 double precision, rsi24 double precision,
	boll_upper     double precision, boll_mid double precision, boll_lower double precision,
	vol_ma5        double precision, vol_ma10 double precision, vol_ratio double precision,
	atr14          double precision, cci double precision, wr double precision,
	bias           double precision, obv double precision,
	donchian_upper double precision, donchian_lower double precision,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS index_daily (
	ts_code    text NOT NULL,
	trade_date date NOT NULL,
	close      double precision NOT NULL,
	pct_chg    double precision,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS index_technical_daily (
	ts_code    text NOT NULL,
	trade_date date NOT NULL,
	ma20       double precision,
	ma60       double precision,
	macd_dif   double precision,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS concept_daily (
	ts_code    text NOT NULL,
	trade_date date NOT NULL,
	pct_chg    double precision NOT NULL,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS concept_members (
	concept_code text NOT NULL,
	con_code     text NOT NULL,
	PRIMARY KEY (concept_code, con_code)
);

CREATE TABLE IF NOT EXISTS finance_indicator (
	ts_code       text NOT NULL,
	end_date      date NOT NULL,
	ann_date      date NOT NULL,
	roe           double precision, eps double precision,
	revenue_yoy   double precision, profit_yoy double precision,
	current_ratio double precision, quick_ratio double precision,
	debt_ratio    double precision, gross_margin double precision,
	net_margin    double precision, ocf_per_share double precision,
	PRIMARY KEY (ts_code, end_date)
);

CREATE TABLE IF NOT EXISTS daily_basic (
	ts_code    text NOT NULL,
	trade_date date NOT NULL,
	pe_ttm     double precision, pb double precision, ps_ttm double precision,
	dv_ttm     double precision, total_mv double precision, circ_mv double precision,
	PRIMARY KEY (ts_code, trade_date)
);

CREATE TABLE IF NOT EXISTS strategy_picks (
	trade_date     date NOT NULL,
	ts_code        text NOT NULL,
	name           text NOT NULL,
	score          double precision NOT NULL,
	close          double precision NOT NULL,
	pct_chg        double precision NOT NULL,
	hit_strategies text[] NOT NULL DEFAULT '{}',
	created_at     timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (trade_date, ts_code)
);

CREATE TABLE IF NOT EXISTS trade_plans (
	plan_date       date NOT NULL,
	valid_date      date NOT NULL,
	ts_code         text NOT NULL,
	name            text NOT NULL,
	source_strategy text NOT NULL,
	plan_type       text NOT NULL,
	direction       text NOT NULL DEFAULT 'buy',
	trigger_price   double precision NOT NULL,
	stop_loss       double precision NOT NULL,
	take_profit     double precision,
	created_at      timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (ts_code, plan_date, source_strategy)
);

CREATE TABLE IF NOT EXISTS strategy_watchpool (
	id              bigserial PRIMARY KEY,
	ts_code         text NOT NULL,
	strategy_name   text NOT NULL,
	t0_date         date NOT NULL,
	t0_close        double precision NOT NULL,
	t0_open         double precision NOT NULL,
	t0_low          double precision NOT NULL,
	t0_volume       double precision NOT NULL,
	t0_pct_chg      double precision NOT NULL,
	status          text NOT NULL DEFAULT 'watching',
	washout_days    integer NOT NULL DEFAULT 0,
	min_washout_vol double precision,
	min_washout_low double precision,
	sector_score    double precision,
	market_score    double precision,
	trigger_date    date,
	trigger_price   double precision,
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now(),
	UNIQUE (ts_code, t0_date, strategy_name)
);

CREATE TABLE IF NOT EXISTS backtest_tasks (
	id            uuid PRIMARY KEY,
	strategy_name text NOT NULL,
	params        jsonb NOT NULL DEFAULT '{}',
	start_date    date NOT NULL,
	end_date      date NOT NULL,
	status        text NOT NULL DEFAULT 'pending',
	progress      integer NOT NULL DEFAULT 0,
	total         integer NOT NULL DEFAULT 0,
	error_message text,
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS optimization_tasks (
	LIKE backtest_tasks INCLUDING ALL
);

CREATE TABLE IF NOT EXISTS market_optimization_tasks (
	LIKE backtest_tasks INCLUDING ALL
);

CREATE TABLE IF NOT EXISTS v4_backtest_tasks (
	LIKE backtest_tasks INCLUDING ALL
);

CREATE TABLE IF NOT EXISTS backtest_results (
	task_id         uuid PRIMARY KEY,
	strategy_name   text NOT NULL,
	params          jsonb NOT NULL DEFAULT '{}',
	start_date      date NOT NULL,
	end_date        date NOT NULL,
	initial_capital double precision NOT NULL,
	final_equity    double precision NOT NULL,
	total_return    double precision,
	annual_return   double precision,
	sharpe          double precision,
	sortino         double precision,
	calmar          double precision,
	max_drawdown    double precision,
	volatility      double precision,
	win_rate        double precision,
	profit_factor   double precision,
	trade_count     integer NOT NULL DEFAULT 0,
	trades          jsonb,
	equity          jsonb,
	created_at      timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS optimization_results (
	task_id      uuid NOT NULL,
	rank         integer NOT NULL,
	params       jsonb NOT NULL,
	sharpe       double precision,
	total_return double precision,
	max_drawdown double precision,
	win_rate     double precision,
	score        double precision,
	trade_count  integer NOT NULL DEFAULT 0,
	PRIMARY KEY (task_id, rank)
);

CREATE TABLE IF NOT EXISTS v4_backtest_results (
	task_id           uuid NOT NULL,
	rank              integer NOT NULL,
	params            jsonb NOT NULL,
	signal_count      integer NOT NULL DEFAULT 0,
	win_rate_1d       double precision,
	win_rate_3d       double precision,
	win_rate_5d       double precision,
	win_rate_10d      double precision,
	avg_return_5d     double precision,
	profit_loss_ratio double precision,
	max_drawdown      double precision,
	sharpe            double precision,
	signals_per_month double precision,
	composite         double precision,
	PRIMARY KEY (task_id, rank)
);
`

// EnsureSchema 幂等建表。
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return wrapWrite("schema", err)
	}
	logger.WithComponent("store").Debug("表基线就绪")
	return nil
}
