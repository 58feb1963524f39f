package market

import (
	talib "github.com/markcheno/go-talib"
)

// IndicatorBuilder 从日线序列计算全套技术指标。
//
// 指标口径与 technical_daily 表一致：
// MA5/10/20/60/120/250、MACD(12,26,9, hist=2*(DIF-DEA))、KDJ(9,3,3)、
// RSI(6/12/24, Wilder)、BOLL(20,2)、VOL_MA5/10、量比、ATR14、
// CCI14、WR14、BIAS20、OBV、唐奇安通道(20, 不含当日)。
type IndicatorBuilder struct{}

// NewIndicatorBuilder 创建指标计算器
func NewIndicatorBuilder() *IndicatorBuilder {
	return &IndicatorBuilder{}
}

// Compute 计算整段日线序列的指标，输出与输入等长、一一对应。
// 窗口未满的位置对应指标为 nil。
func (ib *IndicatorBuilder) Compute(bars []DailyBar) []IndicatorRow {
	n := len(bars)
	rows := make([]IndicatorRow, n)
	if n == 0 {
		return rows
	}

	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		vol[i] = b.Vol
		rows[i].TsCode = b.TsCode
		rows[i].TradeDate = b.TradeDate
	}

	maPeriods := []int{5, 10, 20, 60, 120, 250}
	mas := make(map[int][]float64, len(maPeriods))
	for _, p := range maPeriods {
		if n >= p {
			mas[p] = talib.Sma(closes, p)
		}
	}

	var dif, dea []float64
	if n >= 34 {
		dif, dea, _ = talib.Macd(closes, 12, 26, 9)
	}

	kdjK, kdjD, kdjJ := computeKDJ(high, low, closes)

	rsis := make(map[int][]float64)
	for _, p := range []int{6, 12, 24} {
		if n > p {
			rsis[p] = talib.Rsi(closes, p)
		}
	}

	var bollUpper, bollMid, bollLower []float64
	if n >= 20 {
		bollUpper, bollMid, bollLower = talib.BBands(closes, 20, 2, 2, talib.SMA)
	}

	var volMA5, volMA10 []float64
	if n >= 5 {
		volMA5 = talib.Sma(vol, 5)
	}
	if n >= 10 {
		volMA10 = talib.Sma(vol, 10)
	}

	var atr []float64
	if n > 14 {
		atr = talib.Atr(high, low, closes, 14)
	}
	var cci []float64
	if n >= 14 {
		cci = talib.Cci(high, low, closes, 14)
	}
	var wr []float64
	if n >= 14 {
		wr = talib.WillR(high, low, closes, 14)
	}
	obv := talib.Obv(closes, vol)

	for i := 0; i < n; i++ {
		r := &rows[i]

		setMA := func(p int, dst **float64) {
			if s, ok := mas[p]; ok && i >= p-1 {
				*dst = ptr(s[i])
			}
		}
		setMA(5, &r.MA5)
		setMA(10, &r.MA10)
		setMA(20, &r.MA20)
		setMA(60, &r.MA60)
		setMA(120, &r.MA120)
		setMA(250, &r.MA250)

		if dif != nil && i >= 33 {
			r.MACDDif = ptr(dif[i])
			r.MACDDea = ptr(dea[i])
			r.MACDHist = ptr(2.0 * (dif[i] - dea[i]))
		}

		if i >= 8 {
			r.KdjK = ptr(kdjK[i])
			r.KdjD = ptr(kdjD[i])
			r.KdjJ = ptr(kdjJ[i])
		}

		if s, ok := rsis[6]; ok && i >= 6 {
			r.RSI6 = ptr(s[i])
		}
		if s, ok := rsis[12]; ok && i >= 12 {
			r.RSI12 = ptr(s[i])
		}
		if s, ok := rsis[24]; ok && i >= 24 {
			r.RSI24 = ptr(s[i])
		}

		if bollMid != nil && i >= 19 {
			r.BollUpper = ptr(bollUpper[i])
			r.BollMid = ptr(bollMid[i])
			r.BollLower = ptr(bollLower[i])
		}

		if volMA5 != nil && i >= 4 {
			r.VolMA5 = ptr(volMA5[i])
			if volMA5[i] > 0 {
				r.VolRatio = ptr(vol[i] / volMA5[i])
			}
		}
		if volMA10 != nil && i >= 9 {
			r.VolMA10 = ptr(volMA10[i])
		}

		if atr != nil && i >= 14 {
			r.ATR14 = ptr(atr[i])
		}
		if cci != nil && i >= 13 {
			r.CCI = ptr(cci[i])
		}
		if wr != nil && i >= 13 {
			r.WR = ptr(wr[i])
		}
		r.OBV = ptr(obv[i])

		if r.MA20 != nil && *r.MA20 > 0 {
			r.BIAS = ptr((closes[i] - *r.MA20) / *r.MA20 * 100.0)
		}

		// 唐奇安通道取前 20 日（不含当日），突破判定才有意义
		if i >= 20 {
			du, dl := high[i-20], low[i-20]
			for j := i - 19; j < i; j++ {
				if high[j] > du {
					du = high[j]
				}
				if low[j] < dl {
					dl = low[j]
				}
			}
			r.DonchianUpper = ptr(du)
			r.DonchianLower = ptr(dl)
		}
	}

	return rows
}

// computeKDJ 按国内常用口径递推计算 KDJ(9,3,3)，K/D 初始值 50。
func computeKDJ(high, low, closes []float64) (k, d, j []float64) {
	n := len(closes)
	k = make([]float64, n)
	d = make([]float64, n)
	j = make([]float64, n)

	prevK, prevD := 50.0, 50.0
	for i := 0; i < n; i++ {
		if i < 8 {
			continue
		}
		hh, ll := high[i], low[i]
		for m := i - 8; m < i; m++ {
			if high[m] > hh {
				hh = high[m]
			}
			if low[m] < ll {
				ll = low[m]
			}
		}
		rsv := 50.0
		if hh > ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100.0
		}
		k[i] = prevK*2.0/3.0 + rsv/3.0
		d[i] = prevD*2.0/3.0 + k[i]/3.0
		j[i] = 3.0*k[i] - 2.0*d[i]
		prevK, prevD = k[i], d[i]
	}
	return k, d, j
}
