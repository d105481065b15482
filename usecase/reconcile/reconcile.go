package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
)

// Analyzer extracts task candidates from raw text.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (*domain.Analysis, error)
}

// TaskCreator stores validated tasks. Satisfied by the task usecase so the
// soft-cap advisory keeps firing in one place.
type TaskCreator interface {
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)
}

// TaskFinder locates open tasks for deduplication.
type TaskFinder interface {
	FindOpenByTitle(ctx context.Context, title, source string) (*domain.Task, error)
}

// Reconciler turns analyzed text into stored tasks, skipping exact duplicates.
type Reconciler struct {
	analyzer Analyzer
	creator  TaskCreator
	finder   TaskFinder
	now      func() time.Time
	logger   *zap.Logger
}

func New(analyzer Analyzer, creator TaskCreator, finder TaskFinder, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		analyzer: analyzer,
		creator:  creator,
		finder:   finder,
		now:      time.Now,
		logger:   logger,
	}
}

// Ingest analyzes text from a source and stores every new actionable task.
// Candidates whose sanitized title and source match an existing open task are
// duplicates and are skipped; partial title matches are new tasks.
func (r *Reconciler) Ingest(ctx context.Context, text, source string) ([]domain.Task, error) {
	analysis, err := r.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		r.logger.Warn("analysis degraded", zap.String("source", source), zap.Error(err))
	}
	if analysis == nil || len(analysis.Tasks) == 0 {
		return nil, nil
	}

	source = strings.ToLower(strings.TrimSpace(source))
	now := r.now()

	var created []domain.Task
	for _, candidate := range analysis.Tasks {
		title := domain.SanitizeTitle(candidate.Title)
		if title == "" {
			continue
		}

		existing, err := r.finder.FindOpenByTitle(ctx, title, source)
		if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			return created, err
		}
		if existing != nil {
			r.logger.Debug("skipping duplicate task",
				zap.String("title", title),
				zap.String("source", source),
			)
			continue
		}

		task := &domain.Task{
			Title:    title,
			Due:      candidate.Due,
			Status:   domain.StatusOpen,
			Source:   source,
			Priority: domain.EffectivePriority(candidate.Priority, candidate.Due, now),
		}
		stored, err := r.creator.CreateTask(ctx, task)
		if err != nil {
			return created, err
		}
		created = append(created, *stored)
	}

	if len(created) > 0 {
		r.logger.Info("tasks reconciled",
			zap.String("source", source),
			zap.Int("created", len(created)),
		)
	}
	return created, nil
}
