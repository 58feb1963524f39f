package backtest

import (
	"math"
	"time"

	apperr "stockpick/pkg/error"
	"stockpick/pkg/logger"
	"stockpick/pkg/market"
)

// 回测错误码
const (
	ErrEmptyFeed    apperr.ErrorCode = "BACKTEST_EMPTY_FEED"
	ErrEmptyCodes   apperr.ErrorCode = "BACKTEST_EMPTY_CODES"
	ErrBadCapital   apperr.ErrorCode = "BACKTEST_BAD_CAPITAL"
	ErrSignalLength apperr.ErrorCode = "BACKTEST_SIGNAL_MISMATCH"
)

// Trade 一笔成交记录
type Trade struct {
	StockCode  string    `json:"stock_code"`
	Direction  string    `json:"direction"` // buy | sell
	Date       time.Time `json:"date"`
	Price      float64   `json:"price"`
	Size       int       `json:"size"`
	Commission float64   `json:"commission"`
	Pnl        float64   `json:"pnl"`
}

// EquityPoint 净值曲线上的一个点
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RunInput 单只股票的一次回测输入。Signals 与 Bars 等长，
// 第 i 位为真表示第 i 根收盘后发出买入信号。
type RunInput struct {
	TsCode         string
	Name           string
	Bars           []market.DailyBar
	Signals        []bool
	InitialCapital float64
	StopLossPct    float64 // 亏损比例止损阈值，如 0.08
	HoldDays       int     // 最长持有天数，0 表示不限
}

// RunResult 单次回测输出：逐 K 线净值与成交明细。
type RunResult struct {
	Trades      []Trade
	Equity      []EquityPoint
	FinalEquity float64
}

// Engine 次日开盘成交的单标的回测引擎。
type Engine struct {
	Cost     CostModel
	Slippage float64 // 成交价比例滑点，如 0.001
}

// NewEngine 默认摩擦参数的引擎。
func NewEngine() *Engine {
	return &Engine{Cost: DefaultCostModel(), Slippage: 0.001}
}

// Run 回放信号序列。状态机 flat ⇄ long：
// 昨日信号 → 今日开盘买入（涨停压制）；持仓期间触发止损或
// 持有天数到期 → 今日开盘卖出（跌停压制）。停牌日跳过。
func (e *Engine) Run(in RunInput) (*RunResult, error) {
	if len(in.Bars) == 0 {
		return nil, apperr.NewError(ErrEmptyFeed, "回测区间无行情: "+in.TsCode)
	}
	if in.InitialCapital <= 0 {
		return nil, apperr.NewError(ErrBadCapital, "初始资金必须为正")
	}
	if len(in.Signals) != len(in.Bars) {
		return nil, apperr.NewError(ErrSignalLength, "信号序列与行情长度不一致")
	}

	log := logger.WithComponent("backtest").WithField("ts_code", in.TsCode)
	limitPct := LimitPct(in.TsCode, in.Name)

	cash := in.InitialCapital
	shares := 0
	entryPrice := 0.0
	holdBars := 0

	res := &RunResult{Equity: make([]EquityPoint, 0, len(in.Bars))}

	for i, bar := range in.Bars {
		if bar.Vol <= 0 {
			res.Equity = append(res.Equity, EquityPoint{Date: bar.TradeDate, Value: cash + float64(shares)*bar.Close})
			continue
		}

		if shares > 0 {
			holdBars++
			stopHit := in.StopLossPct > 0 && entryPrice > 0 &&
				(entryPrice-bar.Open)/entryPrice >= in.StopLossPct
			expired := in.HoldDays > 0 && holdBars >= in.HoldDays
			if stopHit || expired {
				if IsLimitDown(bar.Close, bar.PreClose, limitPct) {
					log.WithField("date", market.DateKey(bar.TradeDate)).Debug("跌停无法卖出")
				} else {
					price := bar.Open * (1 - e.Slippage)
					turnover := price * float64(shares)
					fee := e.Cost.Sell(turnover)
					pnl := (price-entryPrice)*float64(shares) - fee
					cash += turnover - fee
					res.Trades = append(res.Trades, Trade{
						StockCode: in.TsCode, Direction: "sell", Date: bar.TradeDate,
						Price: price, Size: shares, Commission: fee, Pnl: pnl,
					})
					shares = 0
					entryPrice = 0
					holdBars = 0
				}
			}
		} else if i > 0 && in.Signals[i-1] {
			if IsLimitUp(bar.Close, bar.PreClose, limitPct) {
				log.WithField("date", market.DateKey(bar.TradeDate)).Debug("涨停无法买入")
			} else {
				price := bar.Open * (1 + e.Slippage)
				size := lotSize(cash, price)
				// 手续费挤占资金时退一手
				for size > 0 && price*float64(size)+e.Cost.Buy(price*float64(size)) > cash {
					size -= 100
				}
				if size > 0 {
					turnover := price * float64(size)
					fee := e.Cost.Buy(turnover)
					cash -= turnover + fee
					shares = size
					entryPrice = price
					holdBars = 0
					res.Trades = append(res.Trades, Trade{
						StockCode: in.TsCode, Direction: "buy", Date: bar.TradeDate,
						Price: price, Size: size, Commission: fee,
					})
				}
			}
		}

		res.Equity = append(res.Equity, EquityPoint{Date: bar.TradeDate, Value: cash + float64(shares)*bar.Close})
	}

	res.FinalEquity = res.Equity[len(res.Equity)-1].Value
	return res, nil
}

// lotSize 整手买入股数：⌊cash/price/100⌋ × 100。
func lotSize(cash, price float64) int {
	if price <= 0 {
		return 0
	}
	return int(math.Floor(cash/price/100)) * 100
}

// CalcEqualWeightShares 等权分仓下单只股票的整手股数。
func CalcEqualWeightShares(capital float64, nStocks int, price float64) int {
	if nStocks <= 0 || price <= 0 {
		return 0
	}
	return lotSize(capital/float64(nStocks), price)
}
