package market

import "time"

// DailyBar 单只股票单个交易日的原始行情。
// vol == 0 表示当日停牌。
type DailyBar struct {
	TsCode       string    `json:"ts_code"`
	TradeDate    time.Time `json:"trade_date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	PreClose     float64   `json:"pre_close"`
	PctChg       float64   `json:"pct_chg"`
	Vol          float64   `json:"vol"`    // 成交量（手）
	Amount       float64   `json:"amount"` // 成交额（千元）
	TurnoverRate *float64  `json:"turnover_rate,omitempty"`
	AdjFactor    *float64  `json:"adj_factor,omitempty"` // 累计复权因子
}

// IndicatorRow 单只股票单日的预计算技术指标。
// 指标窗口未满时对应列为 nil。
type IndicatorRow struct {
	TsCode    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`

	MA5   *float64 `json:"ma5,omitempty"`
	MA10  *float64 `json:"ma10,omitempty"`
	MA20  *float64 `json:"ma20,omitempty"`
	MA60  *float64 `json:"ma60,omitempty"`
	MA120 *float64 `json:"ma120,omitempty"`
	MA250 *float64 `json:"ma250,omitempty"`

	MACDDif  *float64 `json:"macd_dif,omitempty"`
	MACDDea  *float64 `json:"macd_dea,omitempty"`
	MACDHist *float64 `json:"macd_hist,omitempty"`

	KdjK *float64 `json:"kdj_k,omitempty"`
	KdjD *float64 `json:"kdj_d,omitempty"`
	KdjJ *float64 `json:"kdj_j,omitempty"`

	RSI6  *float64 `json:"rsi6,omitempty"`
	RSI12 *float64 `json:"rsi12,omitempty"`
	RSI24 *float64 `json:"rsi24,omitempty"`

	BollUpper *float64 `json:"boll_upper,omitempty"`
	BollMid   *float64 `json:"boll_mid,omitempty"`
	BollLower *float64 `json:"boll_lower,omitempty"`

	VolMA5   *float64 `json:"vol_ma5,omitempty"`
	VolMA10  *float64 `json:"vol_ma10,omitempty"`
	VolRatio *float64 `json:"vol_ratio,omitempty"`

	ATR14 *float64 `json:"atr14,omitempty"`
	CCI   *float64 `json:"cci,omitempty"`
	WR    *float64 `json:"wr,omitempty"`
	BIAS  *float64 `json:"bias,omitempty"`
	OBV   *float64 `json:"obv,omitempty"`

	DonchianUpper *float64 `json:"donchian_upper,omitempty"`
	DonchianLower *float64 `json:"donchian_lower,omitempty"`
}

// Fundamental 单只股票最新一期已披露的财务指标，叠加每日估值快照。
type Fundamental struct {
	TsCode  string    `json:"ts_code"`
	EndDate time.Time `json:"end_date"` // 报告期
	AnnDate time.Time `json:"ann_date"` // 公告日

	PeTTM *float64 `json:"pe_ttm,omitempty"`
	PB    *float64 `json:"pb,omitempty"`
	PsTTM *float64 `json:"ps_ttm,omitempty"`

	ROE          *float64 `json:"roe,omitempty"`
	EPS          *float64 `json:"eps,omitempty"`
	RevenueYoY   *float64 `json:"revenue_yoy,omitempty"`
	ProfitYoY    *float64 `json:"profit_yoy,omitempty"`
	CurrentRatio *float64 `json:"current_ratio,omitempty"`
	QuickRatio   *float64 `json:"quick_ratio,omitempty"`
	DebtRatio    *float64 `json:"debt_ratio,omitempty"`
	GrossMargin  *float64 `json:"gross_margin,omitempty"`
	NetMargin    *float64 `json:"net_margin,omitempty"`
	OCFPerShare  *float64 `json:"ocf_per_share,omitempty"`

	DividendYield *float64 `json:"dividend_yield,omitempty"`
	TotalMV       *float64 `json:"total_mv,omitempty"`
	CircMV        *float64 `json:"circ_mv,omitempty"`
}

// SnapshotRow 市场快照的一行：当日行情 + 当日指标 + 前一交易日行情
// 指标（Prev 后缀）+ 最新财务指标。指针字段为 nil 表示缺失。
type SnapshotRow struct {
	TsCode string `json:"ts_code"`
	Name   string `json:"name"`

	Open         float64  `json:"open"`
	High         float64  `json:"high"`
	Low          float64  `json:"low"`
	Close        float64  `json:"close"`
	PctChg       float64  `json:"pct_chg"`
	Vol          float64  `json:"vol"`
	Amount       float64  `json:"amount"`
	TurnoverRate *float64 `json:"turnover_rate,omitempty"`

	Ind IndicatorRow `json:"ind"`

	ClosePrev  *float64 `json:"close_prev,omitempty"`
	OpenPrev   *float64 `json:"open_prev,omitempty"`
	PctChgPrev *float64 `json:"pct_chg_prev,omitempty"`

	MA5Prev           *float64 `json:"ma5_prev,omitempty"`
	MA10Prev          *float64 `json:"ma10_prev,omitempty"`
	MA20Prev          *float64 `json:"ma20_prev,omitempty"`
	MA60Prev          *float64 `json:"ma60_prev,omitempty"`
	MACDDifPrev       *float64 `json:"macd_dif_prev,omitempty"`
	MACDDeaPrev       *float64 `json:"macd_dea_prev,omitempty"`
	KdjKPrev          *float64 `json:"kdj_k_prev,omitempty"`
	KdjDPrev          *float64 `json:"kdj_d_prev,omitempty"`
	RSI6Prev          *float64 `json:"rsi6_prev,omitempty"`
	RSI12Prev         *float64 `json:"rsi12_prev,omitempty"`
	BollLowerPrev     *float64 `json:"boll_lower_prev,omitempty"`
	CCIPrev           *float64 `json:"cci_prev,omitempty"`
	WRPrev            *float64 `json:"wr_prev,omitempty"`
	OBVPrev           *float64 `json:"obv_prev,omitempty"`
	ATR14Prev         *float64 `json:"atr14_prev,omitempty"`
	DonchianUpperPrev *float64 `json:"donchian_upper_prev,omitempty"`

	Fund *Fundamental `json:"fund,omitempty"`
}

// MA 按周期取当日均线，支持 5/10/20/60/120/250。
func (r *SnapshotRow) MA(period int) *float64 {
	switch period {
	case 5:
		return r.Ind.MA5
	case 10:
		return r.Ind.MA10
	case 20:
		return r.Ind.MA20
	case 60:
		return r.Ind.MA60
	case 120:
		return r.Ind.MA120
	case 250:
		return r.Ind.MA250
	}
	return nil
}

// MAPrev 按周期取前日均线，支持 5/10/20/60。
func (r *SnapshotRow) MAPrev(period int) *float64 {
	switch period {
	case 5:
		return r.MA5Prev
	case 10:
		return r.MA10Prev
	case 20:
		return r.MA20Prev
	case 60:
		return r.MA60Prev
	}
	return nil
}

// RSI 按周期取当日 RSI，支持 6/12/24。
func (r *SnapshotRow) RSI(period int) *float64 {
	switch period {
	case 6:
		return r.Ind.RSI6
	case 12:
		return r.Ind.RSI12
	case 24:
		return r.Ind.RSI24
	}
	return nil
}

// RSIPrev 按周期取前日 RSI，支持 6/12。
func (r *SnapshotRow) RSIPrev(period int) *float64 {
	switch period {
	case 6:
		return r.RSI6Prev
	case 12:
		return r.RSI12Prev
	}
	return nil
}

// Snapshot 单个交易日的全市场横截面。
// Rows 按 ts_code 升序排列，仅包含当日有成交的股票。
type Snapshot struct {
	TargetDate time.Time     `json:"target_date"`
	PrevDate   time.Time     `json:"prev_date"`
	Rows       []SnapshotRow `json:"rows"`
}

// Feed 前复权后的单只股票日线序列，按 trade_date 升序。
// AdjFactors 保留原始复权因子列，供下游识别除权事件。
type Feed struct {
	TsCode     string     `json:"ts_code"`
	Bars       []DailyBar `json:"bars"`
	AdjFactors []*float64 `json:"adj_factors"`
}

// Date 构造零点 UTC 日期，统一作为 map 键与比较基准。
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateKey 日期的字符串键（YYYY-MM-DD）。
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
