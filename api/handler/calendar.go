package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/api/transport"
	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/google"
	"github.com/taskpilot/backend/pkg/httpcontext"
)

type CalendarHandler struct {
	baseHandler
	calendar *google.CalendarService
}

func NewCalendarHandler(calendar *google.CalendarService, adapter *httpcontext.Adapter, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		baseHandler: newBaseHandler(adapter, logger),
		calendar:    calendar,
	}
}

// @Summary Upcoming events
// @Tags calendar
// @Router /api/v1/calendar/events [get]
func (h *CalendarHandler) ListEvents(ctx *fasthttp.RequestCtx) {
	days := parseInt(string(ctx.QueryArgs().Peek("days")), 7)
	if days < 1 || days > 31 {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "days must be between 1 and 31"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	from := time.Now()
	events, err := h.calendar.ListWindow(stdCtx, from, from.Add(time.Duration(days)*24*time.Hour))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

// @Summary Create an event
// @Tags calendar
// @Router /api/v1/calendar/events [post]
func (h *CalendarHandler) CreateEvent(ctx *fasthttp.RequestCtx) {
	var req transport.CalendarEventRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}
	if req.Title == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "title is required"))
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "start must be RFC 3339", err))
		return
	}

	draft := &domain.EventDraft{
		Title:           req.Title,
		Start:           &start,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	event, err := h.calendar.InsertEvent(stdCtx, draft)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, event)
}
