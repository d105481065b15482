package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/repository"
)

const taskColumns = "id, title, due, status, source, priority, created_at, updated_at"

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

// sortColumns whitelists caller-supplied sort keys so the ORDER BY clause is
// never built from raw input.
var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"due":        "due",
	"status":     "status",
	"priority":   "priority",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) (*repository.TaskPage, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Priorities) > 0 {
		vals := make([]string, 0, len(filter.Priorities))
		for _, p := range filter.Priorities {
			vals = append(vals, string(p))
		}
		conds = append(conds, fmt.Sprintf("priority = ANY(%s)", arg(vals)))
	}
	if len(filter.Statuses) > 0 {
		vals := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			vals = append(vals, string(s))
		}
		conds = append(conds, fmt.Sprintf("status = ANY(%s)", arg(vals)))
	}
	if filter.Source != "" {
		conds = append(conds, fmt.Sprintf("source = %s", arg(strings.ToLower(filter.Source))))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	sortCol, ok := sortColumns[filter.Sort]
	if !ok {
		sortCol = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := clampSize(filter.Size)

	query := fmt.Sprintf("SELECT %s FROM tasks%s ORDER BY %s %s LIMIT %s OFFSET %s",
		taskColumns, where, sortCol, direction, arg(size), arg((page-1)*size))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	pages := (total + size - 1) / size
	return &repository.TaskPage{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pages,
	}, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO tasks (title, due, status, source, priority)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.Title,
		nullableTime(task.Due),
		string(task.Status),
		task.Source,
		string(task.Priority),
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		due = $3,
		status = $4,
		priority = $5,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		nullableTime(task.Due),
		string(task.Status),
		string(task.Priority),
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	return count, err
}

func (r *taskRepository) OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE status = $1
	ORDER BY due ASC NULLS LAST, created_at DESC
	`, taskColumns)

	rows, err := r.pool.Query(ctx, query, string(domain.StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[domain.Priority][]domain.Task, len(domain.Priorities))
	for _, p := range domain.Priorities {
		grouped[p] = nil
	}
	for _, t := range tasks {
		grouped[t.Priority] = append(grouped[t.Priority], t)
	}
	return grouped, nil
}

func (r *taskRepository) FindOpenByTitle(ctx context.Context, title, source string) (*domain.Task, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE status = $1 AND LOWER(title) = LOWER($2) AND source = $3
	LIMIT 1
	`, taskColumns)

	row := r.pool.QueryRow(ctx, query, string(domain.StatusOpen), title, strings.ToLower(source))
	return scanTask(row)
}

func (r *taskRepository) FindRelated(ctx context.Context, q repository.RelatedQuery) ([]domain.Task, error) {
	if len(q.Keywords) == 0 && len(q.Attendees) == 0 {
		return nil, nil
	}

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, kw := range q.Keywords {
		conds = append(conds, fmt.Sprintf("title ILIKE %s", arg("%"+kw+"%")))
	}
	for _, a := range q.Attendees {
		conds = append(conds, fmt.Sprintf("source = %s", arg(strings.ToLower(a))))
	}

	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE status = %s AND (%s)
	ORDER BY
		CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
		due ASC NULLS LAST
	`, taskColumns, arg(string(domain.StatusOpen)), strings.Join(conds, " OR "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *taskRepository) CompletedSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM tasks WHERE status = $1 AND updated_at >= $2`
	var count int
	err := r.pool.QueryRow(ctx, query, string(domain.StatusDone), since).Scan(&count)
	return count, err
}

func (r *taskRepository) All(ctx context.Context) ([]domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks ORDER BY id`, taskColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		task     domain.Task
		due      *time.Time
		status   string
		priority string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&due,
		&status,
		&task.Source,
		&priority,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Due = due
	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	return &task, nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func clampSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
