package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/internal/infrastructure/inbox"
	"github.com/taskpilot/backend/internal/metrics"
	"github.com/taskpilot/backend/internal/services"
	"github.com/taskpilot/backend/pkg/httpcontext"
)

// WebhookHandler acknowledges inbound push notifications as fast as
// possible. Payloads are persisted to the inbox and processed by the
// drain cycle, so a slow downstream never turns into a delivery retry
// storm from the provider.
type WebhookHandler struct {
	baseHandler
	processor *services.InboxProcessor
}

func NewWebhookHandler(processor *services.InboxProcessor, adapter *httpcontext.Adapter, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		baseHandler: newBaseHandler(adapter, logger),
		processor:   processor,
	}
}

// @Summary Telegram bot webhook
// @Tags webhooks
// @Router /webhook/telegram [post]
func (h *WebhookHandler) Telegram(ctx *fasthttp.RequestCtx) {
	h.accept(ctx, "telegram", inbox.KindTelegram)
}

// @Summary Gmail push notification webhook
// @Tags webhooks
// @Router /webhook/gmail [post]
func (h *WebhookHandler) Gmail(ctx *fasthttp.RequestCtx) {
	h.accept(ctx, "gmail", inbox.KindGmail)
}

// @Summary Calendar event notification webhook
// @Tags webhooks
// @Router /webhook/calendar [post]
func (h *WebhookHandler) Calendar(ctx *fasthttp.RequestCtx) {
	h.accept(ctx, "calendar", inbox.KindCalendar)
}

func (h *WebhookHandler) accept(ctx *fasthttp.RequestCtx, source, kind string) {
	body := ctx.PostBody()
	if len(body) == 0 {
		metrics.WebhookRequests.WithLabelValues(source, "rejected").Inc()
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	payload := make([]byte, len(body))
	copy(payload, body)

	if err := h.processor.Enqueue(kind, payload); err != nil {
		metrics.WebhookRequests.WithLabelValues(source, "error").Inc()
		h.logger.Error("webhook enqueue failed",
			zap.String("source", source),
			zap.Error(err))
		// Still acknowledge: the provider retries on its own schedule
		// and a 5xx here only amplifies the load.
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"result": "dropped"})
		return
	}

	metrics.WebhookRequests.WithLabelValues(source, "accepted").Inc()
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"result": "queued"})
}
