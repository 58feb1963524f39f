package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "stockpick/pkg/error"
)

// fakeRows 以二维切片喂给 Scan 的最小 pgx.Rows 实现
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (f *fakeRows) Close()                                       {}
func (f *fakeRows) Err() error                                   { return f.err }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case **float64:
			if row[i] == nil {
				*p = nil
			} else {
				v := row[i].(float64)
				*p = &v
			}
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeRow struct {
	data []any
	err  error
}

func (f *fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	return (&fakeRows{data: [][]any{f.data}, pos: 1}).Scan(dest...)
}

// fakePool 记录 SQL 与参数并回放预置结果
type fakePool struct {
	rows    pgx.Rows
	row     pgx.Row
	lastSQL string
	args    []any
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.args = sql, args
	return pgconn.CommandTag{}, nil
}

func (f *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.args = sql, args
	return f.rows, nil
}

func (f *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.args = sql, args
	return f.row
}

func (f *fakePool) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakePool) Begin(_ context.Context) (pgx.Tx, error)                    { return nil, nil }

func dt(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBarsByRange(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{data: [][]any{
		{"600000.SH", dt(2024, 6, 13), 10.0, 10.5, 9.9, 10.2, 10.0, 2.0, 1000.0, 10200.0, 1.5, 1.1},
		{"600000.SH", dt(2024, 6, 14), 10.2, 10.8, 10.1, 10.6, 10.2, 3.9, 1500.0, 15900.0, nil, nil},
	}}}
	repo := &BarRepo{pool: pool}

	bars, err := repo.BarsByRange(context.Background(), "600000.SH", dt(2024, 6, 13), dt(2024, 6, 14))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.2, bars[0].Close)
	require.NotNil(t, bars[0].AdjFactor)
	assert.Equal(t, 1.1, *bars[0].AdjFactor)
	assert.Nil(t, bars[1].AdjFactor, "缺失复权因子扫描为 nil")
	assert.Equal(t, []any{"600000.SH", dt(2024, 6, 13), dt(2024, 6, 14)}, pool.args)
}

func TestCalendarAdjacentNoRows(t *testing.T) {
	repo := &CalendarRepo{pool: &fakePool{row: &fakeRow{err: pgx.ErrNoRows}}}
	_, err := repo.PrevOpenDay(context.Background(), dt(2024, 6, 14))
	require.Error(t, err)
	var be *apperr.BaseError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrNoCalendar, be.Code)
}

func TestCalendarNormalizesToMidnight(t *testing.T) {
	repo := &CalendarRepo{pool: &fakePool{row: &fakeRow{data: []any{
		time.Date(2024, 6, 13, 15, 0, 0, 0, time.UTC),
	}}}}
	got, err := repo.PrevOpenDay(context.Background(), dt(2024, 6, 14))
	require.NoError(t, err)
	assert.Equal(t, dt(2024, 6, 13), got)
}

func TestIndexOnDateMissing(t *testing.T) {
	repo := &IndexRepo{pool: &fakePool{row: &fakeRow{err: pgx.ErrNoRows}}}
	_, found, err := repo.IndexOnDate(context.Background(), "000300.SH", dt(2024, 6, 14))
	require.NoError(t, err)
	assert.False(t, found, "指数缺数不报错")
}

func TestWatchpoolEmptyInputs(t *testing.T) {
	repo := &WatchpoolRepo{pool: &fakePool{}}

	verified, err := repo.VerifyAccumulation(context.Background(), nil, dt(2024, 6, 14), 60, 0.20)
	require.NoError(t, err)
	assert.Empty(t, verified)

	n, err := repo.InsertT0Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, repo.SetSectorScores(context.Background(), dt(2024, 6, 14), nil))
}

func TestTaskRepoUnknownKind(t *testing.T) {
	repo := &TaskRepo{pool: &fakePool{}}
	_, err := repo.Create(context.Background(), &Task{Kind: "nope"})
	require.Error(t, err)
	var be *apperr.BaseError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrUnknownTaskKind, be.Code)
}

func TestFundamentalOverlayFillsOnlyNil(t *testing.T) {
	existing := 5.0
	overlay := 9.0

	dst := &existing
	fillIfNil(&dst, &overlay)
	assert.Equal(t, 5.0, *dst, "已有值不被估值覆盖")

	dst = nil
	fillIfNil(&dst, &overlay)
	require.NotNil(t, dst)
	assert.Equal(t, 9.0, *dst)
}
