package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/api/transport"
	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/pkg/httpcontext"
	"github.com/taskpilot/backend/repository"
	taskUC "github.com/taskpilot/backend/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	filter, err := parseFilter(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(page.Items, transport.PageMeta{
		Page:  page.Page,
		Size:  page.Size,
		Pages: page.Pages,
		Total: page.Total,
	}))
}

// @Summary Get one task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	task := &domain.Task{
		Title:  req.Title,
		Status: domain.StatusOpen,
		Source: req.Source,
	}
	if req.Source == "" {
		task.Source = "api"
	}
	if req.Priority != "" {
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		task.Priority = priority
	} else {
		task.Priority = domain.PriorityNormal
	}
	if req.Due != "" {
		due, err := time.Parse(time.RFC3339, req.Due)
		if err != nil {
			h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "due must be RFC 3339", err))
			return
		}
		task.Due = &due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, task)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	patch := taskUC.TaskPatch{
		Title:    req.Title,
		Status:   req.Status,
		Priority: req.Priority,
	}
	if req.Due != nil {
		if *req.Due == "" {
			patch.Due = &taskUC.OptionalTime{}
		} else {
			due, err := time.Parse(time.RFC3339, *req.Due)
			if err != nil {
				h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "due must be RFC 3339", err))
				return
			}
			patch.Due = &taskUC.OptionalTime{Value: &due}
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateTask(stdCtx, id, patch)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "task id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func parseFilter(ctx *fasthttp.RequestCtx) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{
		Source: string(ctx.QueryArgs().Peek("source")),
		Sort:   string(ctx.QueryArgs().Peek("sort")),
		Order:  string(ctx.QueryArgs().Peek("order")),
		Page:   parseInt(string(ctx.QueryArgs().Peek("page")), 1),
		Size:   parseInt(string(ctx.QueryArgs().Peek("size")), 20),
	}

	if raw := string(ctx.QueryArgs().Peek("priority")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			priority, err := domain.ParsePriority(strings.TrimSpace(part))
			if err != nil {
				return filter, err
			}
			filter.Priorities = append(filter.Priorities, priority)
		}
	}
	if raw := string(ctx.QueryArgs().Peek("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := domain.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				return filter, err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	return filter, nil
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
