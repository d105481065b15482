package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/api/transport"
	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/services"
	"github.com/taskpilot/backend/pkg/httpcontext"
)

type BackupHandler struct {
	baseHandler
	backup *services.Backup
}

func NewBackupHandler(backup *services.Backup, adapter *httpcontext.Adapter, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		baseHandler: newBaseHandler(adapter, logger),
		backup:      backup,
	}
}

// @Summary Trigger a backup
// @Tags backups
// @Router /api/v1/backup [post]
func (h *BackupHandler) Create(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.backup.Run(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]string{"result": "created"})
}

// @Summary List snapshots
// @Tags backups
// @Router /api/v1/backups [get]
func (h *BackupHandler) List(ctx *fasthttp.RequestCtx) {
	infos, err := h.backup.List()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	stats, err := h.backup.Stats()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(infos, stats))
}

// @Summary Restore from a snapshot
// @Tags backups
// @Router /api/v1/backups/restore [post]
func (h *BackupHandler) Restore(ctx *fasthttp.RequestCtx) {
	var req transport.RestoreRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Name == "" {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	restored, err := h.backup.Restore(stdCtx, req.Name)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"result":   "restored",
		"restored": restored,
	})
}
