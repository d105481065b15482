package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/pkg/httpcontext"
	"github.com/taskpilot/backend/usecase/summary"
)

type SummaryHandler struct {
	baseHandler
	uc        *summary.UseCase
	cronToken string
}

func NewSummaryHandler(uc *summary.UseCase, cronToken string, adapter *httpcontext.Adapter, logger *zap.Logger) *SummaryHandler {
	return &SummaryHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		cronToken:   cronToken,
	}
}

// @Summary Daily digest preview
// @Tags summary
// @Router /api/v1/daily-summary [get]
func (h *SummaryHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	digest, err := h.uc.Generate(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, digest)
}

// @Summary Token-gated digest trigger for external cron services
// @Tags summary
// @Router /api/v1/cron/daily-summary [get]
func (h *SummaryHandler) Trigger(ctx *fasthttp.RequestCtx) {
	token := ctx.QueryArgs().Peek("token")
	if h.cronToken == "" || subtle.ConstantTimeCompare(token, []byte(h.cronToken)) != 1 {
		h.respondError(ctx, domain.NewError(domain.ErrCodeForbidden, "invalid cron token"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Send(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"result": "sent"})
}
