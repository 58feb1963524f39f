package market

import (
	apperr "stockpick/pkg/error"
)

// MarketError 行情数据相关错误
type MarketError struct {
	apperr.BaseError
}

const (
	// ErrNoBars 表示区间内没有任何日线数据。
	ErrNoBars apperr.ErrorCode = "MARKET_NO_BARS"
	// ErrNoPrevDay 表示找不到目标日之前的交易日。
	ErrNoPrevDay apperr.ErrorCode = "MARKET_NO_PREV_DAY"
	// ErrEmptySnapshot 表示目标日没有可交易股票。
	ErrEmptySnapshot apperr.ErrorCode = "MARKET_EMPTY_SNAPSHOT"
	// ErrInvalidRange 表示日期区间非法。
	ErrInvalidRange apperr.ErrorCode = "MARKET_INVALID_RANGE"
)

// NewMarketError 创建行情数据错误
func NewMarketError(code apperr.ErrorCode, message string) *MarketError {
	return &MarketError{
		BaseError: *apperr.NewError(code, message),
	}
}

// WrapMarketError 包装底层错误
func WrapMarketError(code apperr.ErrorCode, message string, cause error) *MarketError {
	return &MarketError{
		BaseError: *apperr.WrapError(code, message, cause),
	}
}
