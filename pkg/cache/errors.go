package cache

import (
	apperr "stockpick/pkg/error"
)

type CacheError struct {
	apperr.BaseError
}

const (
	// ErrCacheTimeout 表示缓存操作超时。
	ErrCacheTimeout apperr.ErrorCode = "CACHE_TIMEOUT"
	// ErrCacheMiss 表示在缓存中未找到请求的条目。
	ErrCacheMiss apperr.ErrorCode = "CACHE_MISS"
	// ErrCacheUnavailable 表示缓存后端不可用（连接失败或熔断打开）。
	ErrCacheUnavailable apperr.ErrorCode = "CACHE_UNAVAILABLE"
	// ErrCacheCorrupted 表示缓存数据已损坏。
	ErrCacheCorrupted apperr.ErrorCode = "CACHE_CORRUPTED"
)

var (
	ErrCacheMissNotFound = NewCacheError(ErrCacheMiss, "cache entry not found")
)

func NewCacheError(code apperr.ErrorCode, message string) *CacheError {
	return &CacheError{
		BaseError: *apperr.NewError(code, message),
	}
}
