package repository

import (
	"context"
	"time"

	"github.com/taskpilot/backend/domain"
)

// TaskFilter narrows List results. Zero values mean "no filter".
type TaskFilter struct {
	Priorities []domain.Priority
	Statuses   []domain.Status
	Source     string
	Sort       string
	Order      string
	Page       int
	Size       int
}

// TaskPage is one page of a filtered listing plus the unpaginated total.
type TaskPage struct {
	Items []domain.Task `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Pages int           `json:"pages"`
}

// RelatedQuery describes the meeting-context lookup: open tasks whose source
// matches an attendee or whose title contains one of the keywords.
type RelatedQuery struct {
	Keywords  []string
	Attendees []string
}

type TaskRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) (*TaskPage, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Count(ctx context.Context) (int, error)
	// OpenByPriority returns all open tasks keyed by priority, each group
	// ordered by due date (nulls last) then creation time.
	OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error)
	// FindOpenByTitle locates an open task with the given case-insensitive
	// title and source, for reconciler deduplication.
	FindOpenByTitle(ctx context.Context, title, source string) (*domain.Task, error)
	FindRelated(ctx context.Context, q RelatedQuery) ([]domain.Task, error)
	CompletedSince(ctx context.Context, since time.Time) (int, error)
	All(ctx context.Context) ([]domain.Task, error)
}
