// Package store 提供基于 PostgreSQL 的仓储层，
// 承载行情、指标、财务、任务与回测结果的读写。
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockpick/pkg/config"
	apperr "stockpick/pkg/error"
	"stockpick/pkg/logger"
)

const dateLayout = "2006-01-02"

// 仓储层错误码
const (
	ErrConnect    apperr.ErrorCode = "STORE_CONNECT_FAILED"
	ErrQuery      apperr.ErrorCode = "STORE_QUERY_FAILED"
	ErrWrite      apperr.ErrorCode = "STORE_WRITE_FAILED"
	ErrNotFound   apperr.ErrorCode = "STORE_NOT_FOUND"
	ErrNoCalendar apperr.ErrorCode = "STORE_NO_CALENDAR"
)

// PgxPool pgxpool.Pool 的窄接口，便于测试替身。
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store 聚合全部仓储，共享同一个连接池。
type Store struct {
	pool PgxPool

	Bars         *BarRepo
	Indicators   *IndicatorRepo
	Calendar     *CalendarRepo
	Index        *IndexRepo
	Concepts     *ConceptRepo
	Fundamentals *FundamentalRepo
	Tasks        *TaskRepo
	Results      *ResultRepo
	Picks        *PickRepo
	Plans        *PlanRepo
	Watchpool    *WatchpoolRepo
}

// New 以现有连接池组装仓储集合。
func New(pool PgxPool) *Store {
	return &Store{
		pool:         pool,
		Bars:         &BarRepo{pool: pool},
		Indicators:   &IndicatorRepo{pool: pool},
		Calendar:     &CalendarRepo{pool: pool},
		Index:        &IndexRepo{pool: pool},
		Concepts:     &ConceptRepo{pool: pool},
		Fundamentals: &FundamentalRepo{pool: pool},
		Tasks:        &TaskRepo{pool: pool},
		Results:      &ResultRepo{pool: pool},
		Picks:        &PickRepo{pool: pool},
		Plans:        &PlanRepo{pool: pool},
		Watchpool:    &WatchpoolRepo{pool: pool},
	}
}

// Connect 按配置建立连接池并组装仓储。
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, *pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, apperr.WrapError(ErrConnect, "数据库 DSN 解析失败", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, nil, apperr.WrapError(ErrConnect, "数据库连接失败", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, apperr.WrapError(ErrConnect, "数据库探活失败", err)
	}
	logger.WithComponent("store").Info("数据库连接就绪")
	return New(pool), pool, nil
}

func wrapQuery(op string, err error) error {
	return apperr.WrapError(ErrQuery, fmt.Sprintf("%s 查询失败", op), err)
}

func wrapWrite(op string, err error) error {
	return apperr.WrapError(ErrWrite, fmt.Sprintf("%s 写入失败", op), err)
}

// day 归一化到 UTC 零点，库内 date 列按此比较。
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
