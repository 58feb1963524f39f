package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperr "stockpick/pkg/error"
)

// TaskStatus 任务生命周期状态
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskKind 任务类别，对应各自的任务表。
type TaskKind string

const (
	KindBacktest           TaskKind = "backtest"
	KindOptimization       TaskKind = "optimization"
	KindMarketOptimization TaskKind = "market_optimization"
	KindV4Backtest         TaskKind = "v4_backtest"
)

var taskTables = map[TaskKind]string{
	KindBacktest:           "backtest_tasks",
	KindOptimization:       "optimization_tasks",
	KindMarketOptimization: "market_optimization_tasks",
	KindV4Backtest:         "v4_backtest_tasks",
}

// ErrUnknownTaskKind 未知任务类别
const ErrUnknownTaskKind apperr.ErrorCode = "STORE_UNKNOWN_TASK_KIND"

// Task 一次后台回测/寻优任务。Params 以 JSONB 存储。
type Task struct {
	ID           string             `json:"id"`
	Kind         TaskKind           `json:"kind"`
	StrategyName string             `json:"strategy_name"`
	Params       map[string]float64 `json:"params"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	Status       TaskStatus         `json:"status"`
	Progress     int                `json:"progress"`
	Total        int                `json:"total"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// TaskRepo 任务表仓储：创建与状态流转
// pending → running → completed | failed。
type TaskRepo struct {
	pool PgxPool
}

func taskTable(kind TaskKind) (string, error) {
	t, ok := taskTables[kind]
	if !ok {
		return "", apperr.NewError(ErrUnknownTaskKind, fmt.Sprintf("未知任务类别 %q", kind))
	}
	return t, nil
}

// Create 新建 pending 任务，返回生成的任务 ID。
func (r *TaskRepo) Create(ctx context.Context, t *Task) (string, error) {
	table, err := taskTable(t.Kind)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+table+`
			(id, strategy_name, params, start_date, end_date, status, progress, total)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6)`,
		id, t.StrategyName, t.Params, day(t.StartDate), day(t.EndDate), t.Total)
	if err != nil {
		return "", wrapWrite(table, err)
	}
	t.ID = id
	t.Status = TaskPending
	return id, nil
}

// Get 按 ID 读取任务。
func (r *TaskRepo) Get(ctx context.Context, kind TaskKind, id string) (*Task, error) {
	table, err := taskTable(kind)
	if err != nil {
		return nil, err
	}
	t := &Task{Kind: kind}
	err = r.pool.QueryRow(ctx, `
		SELECT id, strategy_name, params, start_date, end_date,
		       status, progress, total, COALESCE(error_message, ''),
		       created_at, updated_at
		FROM `+table+` WHERE id = $1`, id).
		Scan(&t.ID, &t.StrategyName, &t.Params, &t.StartDate, &t.EndDate,
			&t.Status, &t.Progress, &t.Total, &t.ErrorMessage,
			&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewError(ErrNotFound, fmt.Sprintf("任务 %s 不存在", id))
	}
	if err != nil {
		return nil, wrapQuery(table, err)
	}
	return t, nil
}

// MarkRunning pending → running。
func (r *TaskRepo) MarkRunning(ctx context.Context, kind TaskKind, id string) error {
	return r.setStatus(ctx, kind, id, TaskRunning, "")
}

// MarkCompleted running → completed。
func (r *TaskRepo) MarkCompleted(ctx context.Context, kind TaskKind, id string) error {
	return r.setStatus(ctx, kind, id, TaskCompleted, "")
}

// MarkFailed 记录失败原因并落终态。
func (r *TaskRepo) MarkFailed(ctx context.Context, kind TaskKind, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.setStatus(ctx, kind, id, TaskFailed, msg)
}

func (r *TaskRepo) setStatus(ctx context.Context, kind TaskKind, id string, status TaskStatus, errMsg string) error {
	table, err := taskTable(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE `+table+`
		SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`, id, status, errMsg)
	if err != nil {
		return wrapWrite(table+" 状态", err)
	}
	return nil
}

// UpdateProgress 推进进度计数。
func (r *TaskRepo) UpdateProgress(ctx context.Context, kind TaskKind, id string, progress, total int) error {
	table, err := taskTable(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE `+table+`
		SET progress = $2, total = $3, updated_at = now()
		WHERE id = $1`, id, progress, total)
	if err != nil {
		return wrapWrite(table+" 进度", err)
	}
	return nil
}
