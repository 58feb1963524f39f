package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperr "stockpick/pkg/error"
)

// CalendarRepo trade_calendar 表仓储，实现 market.Calendar。
// 交易所默认上交所，两市日历一致。
type CalendarRepo struct {
	pool     PgxPool
	Exchange string
}

func (r *CalendarRepo) exchange() string {
	if r.Exchange == "" {
		return "SSE"
	}
	return r.Exchange
}

// PrevOpenDay 严格早于 date 的最近交易日。
func (r *CalendarRepo) PrevOpenDay(ctx context.Context, date time.Time) (time.Time, error) {
	return r.adjacent(ctx, date, `
		SELECT cal_date FROM trade_calendar
		WHERE exchange = $1 AND is_open AND cal_date < $2
		ORDER BY cal_date DESC LIMIT 1`)
}

// NextOpenDay 严格晚于 date 的最近交易日。
func (r *CalendarRepo) NextOpenDay(ctx context.Context, date time.Time) (time.Time, error) {
	return r.adjacent(ctx, date, `
		SELECT cal_date FROM trade_calendar
		WHERE exchange = $1 AND is_open AND cal_date > $2
		ORDER BY cal_date ASC LIMIT 1`)
}

func (r *CalendarRepo) adjacent(ctx context.Context, date time.Time, sql string) (time.Time, error) {
	var out time.Time
	err := r.pool.QueryRow(ctx, sql, r.exchange(), day(date)).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, apperr.NewError(ErrNoCalendar,
			fmt.Sprintf("日历无 %s 相邻交易日", date.Format(dateLayout)))
	}
	if err != nil {
		return time.Time{}, wrapQuery("trade_calendar", err)
	}
	return day(out), nil
}

// OpenDaysBetween [start, end] 内交易日，升序。
func (r *CalendarRepo) OpenDaysBetween(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cal_date FROM trade_calendar
		WHERE exchange = $1 AND is_open AND cal_date BETWEEN $2 AND $3
		ORDER BY cal_date ASC`,
		r.exchange(), day(start), day(end))
	if err != nil {
		return nil, wrapQuery("trade_calendar 区间", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, wrapQuery("trade_calendar 区间扫描", err)
		}
		out = append(out, day(d))
	}
	return out, rows.Err()
}

// OpenDayOffset 自 ref 起回退 offset 个交易日。
// offset = 0 给出 ref 当日或之前最近的交易日。
func (r *CalendarRepo) OpenDayOffset(ctx context.Context, ref time.Time, offset int) (time.Time, error) {
	var out time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT cal_date FROM trade_calendar
		WHERE exchange = $1 AND is_open AND cal_date <= $2
		ORDER BY cal_date DESC OFFSET $3 LIMIT 1`,
		r.exchange(), day(ref), offset).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, apperr.NewError(ErrNoCalendar,
			fmt.Sprintf("日历不足以从 %s 回退 %d 个交易日", ref.Format(dateLayout), offset))
	}
	if err != nil {
		return time.Time{}, wrapQuery("trade_calendar 偏移", err)
	}
	return day(out), nil
}

// LastOpenDays 截至 ref（含）最近 n 个交易日，升序。
func (r *CalendarRepo) LastOpenDays(ctx context.Context, ref time.Time, n int) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cal_date FROM (
			SELECT cal_date FROM trade_calendar
			WHERE exchange = $1 AND is_open AND cal_date <= $2
			ORDER BY cal_date DESC LIMIT $3
		) w ORDER BY cal_date ASC`,
		r.exchange(), day(ref), n)
	if err != nil {
		return nil, wrapQuery("trade_calendar 近期", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, wrapQuery("trade_calendar 近期扫描", err)
		}
		out = append(out, day(d))
	}
	return out, rows.Err()
}
