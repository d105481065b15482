package task

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/metrics"
	"github.com/taskpilot/backend/repository"
	"github.com/taskpilot/backend/usecase"
)

// UseCase owns every mutation of stored tasks; the reconciler, the chat
// processor, and the REST handlers all go through it.
type UseCase struct {
	tasks    repository.TaskRepository
	notifier usecase.Notifier
	softCap  int
	advised  atomic.Bool
	now      func() time.Time
	logger   *zap.Logger
}

func New(tasks repository.TaskRepository, notifier usecase.Notifier, softCap int, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		notifier: notifier,
		softCap:  softCap,
		now:      time.Now,
		logger:   logger,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) (*repository.TaskPage, error) {
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, id)
}

// CreateTask validates and stores a new task. Title is sanitized and must be
// non-empty; priority is upgraded to urgent for near-term due dates.
func (uc *UseCase) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	task.Title = domain.SanitizeTitle(task.Title)
	if task.Title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "task title is empty")
	}
	if task.Status == "" {
		task.Status = domain.StatusOpen
	}
	if !task.Status.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("invalid status %q", task.Status))
	}
	task.Source = strings.ToLower(strings.TrimSpace(task.Source))
	task.Priority = domain.EffectivePriority(task.Priority, task.Due, uc.now())

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	metrics.TasksCreated.WithLabelValues(string(created.Priority)).Inc()
	if created.Status == domain.StatusOpen {
		metrics.TasksOpen.WithLabelValues(string(created.Priority)).Inc()
	}

	uc.checkSoftCap(ctx)
	return created, nil
}

// UpdateTask applies a partial update. Status may only move open to done and
// a due date change re-runs the urgency upgrade.
func (uc *UseCase) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*domain.Task, error) {
	current, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := domain.SanitizeTitle(*patch.Title)
		if title == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "task title is empty")
		}
		current.Title = title
	}
	if patch.Due != nil {
		current.Due = patch.Due.Value
	}
	if patch.Priority != nil {
		p, err := domain.ParsePriority(*patch.Priority)
		if err != nil {
			return nil, err
		}
		current.Priority = p
	}
	// The open gauge only moves after the write lands, with the priority the
	// task held while it was counted as open.
	var completedPriority domain.Priority
	if patch.Status != nil {
		next, err := domain.ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.StatusDone && next == domain.StatusOpen {
			return nil, domain.NewError(domain.ErrCodeInvalid, "a done task cannot be reopened")
		}
		if current.Status == domain.StatusOpen && next == domain.StatusDone {
			completedPriority = current.Priority
		}
		current.Status = next
	}

	if patch.Due != nil || patch.Priority != nil {
		current.Priority = domain.EffectivePriority(current.Priority, current.Due, uc.now())
	}

	if err := uc.tasks.Update(ctx, current); err != nil {
		return nil, err
	}
	if completedPriority != "" {
		metrics.TasksOpen.WithLabelValues(string(completedPriority)).Dec()
	}
	return current, nil
}

// MarkDone completes an open task.
func (uc *UseCase) MarkDone(ctx context.Context, id int64) (*domain.Task, error) {
	current, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDone() {
		return current, domain.ErrTaskAlreadyDone
	}

	current.Status = domain.StatusDone
	if err := uc.tasks.Update(ctx, current); err != nil {
		return nil, err
	}

	metrics.TasksOpen.WithLabelValues(string(current.Priority)).Dec()
	return current, nil
}

// OpenByPriority backs the /list command and the daily digest.
func (uc *UseCase) OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error) {
	return uc.tasks.OpenByPriority(ctx)
}

// checkSoftCap fires a one-time operator advisory when the stored task count
// crosses the configured cap. Creation itself never fails on the cap.
func (uc *UseCase) checkSoftCap(ctx context.Context) {
	if uc.softCap <= 0 || uc.advised.Load() {
		return
	}

	count, err := uc.tasks.Count(ctx)
	if err != nil {
		uc.logger.Warn("soft cap count failed", zap.Error(err))
		return
	}
	if count <= uc.softCap {
		return
	}
	if !uc.advised.CompareAndSwap(false, true) {
		return
	}

	metrics.SoftCapAdvisories.Inc()
	uc.logger.Warn("task count crossed the soft cap",
		zap.Int("count", count),
		zap.Int("cap", uc.softCap),
	)
	if uc.notifier != nil {
		text := fmt.Sprintf("⚠️ Task store holds %d tasks, above the configured cap of %d. Consider archiving.", count, uc.softCap)
		if err := uc.notifier.Notify(ctx, text); err != nil {
			uc.logger.Warn("soft cap notice failed", zap.Error(err))
		}
	}
}

// TaskPatch is a partial update; nil fields are untouched. Due uses a
// wrapper so "clear the due date" and "leave it alone" stay distinguishable.
type TaskPatch struct {
	Title    *string
	Due      *OptionalTime
	Status   *string
	Priority *string
}

type OptionalTime struct {
	Value *time.Time
}
