package handler

import (
	"context"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/gin-gonic/gin"
)

// SyncUseCase is the sync orchestrator as seen by the HTTP layer
type SyncUseCase interface {
	SyncMenuToPlatform(ctx context.Context, restaurantID string, platform delivery.Platform, syncType delivery.SyncType) (*delivery.SyncOutcome, error)
	SyncAll(ctx context.Context, restaurantID string, syncType delivery.SyncType) (*delivery.BatchOutcome, error)
	ListSyncLogs(ctx context.Context, filter delivery.SyncLogFilter) ([]delivery.SyncLog, int64, error)
}

// SyncHandler handles menu sync endpoints
type SyncHandler struct {
	BaseHandler
	syncs SyncUseCase
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncs SyncUseCase) *SyncHandler {
	return &SyncHandler{syncs: syncs}
}

// syncType reads the optional {sync_type} body
func (h *SyncHandler) syncType(c *gin.Context) (delivery.SyncType, bool) {
	var req SyncRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return "", false
	}
	syncType, err := delivery.ParseSyncType(req.SyncType)
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return syncType, true
}

// Sync handles POST /sync/:platform. A missing or rejected session is
// reported as {success: false} with status 200.
func (h *SyncHandler) Sync(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	syncType, ok := h.syncType(c)
	if !ok {
		return
	}

	outcome, err := h.syncs.SyncMenuToPlatform(c.Request.Context(), restaurantID(c), platform, syncType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}

// SyncAll handles POST /sync-all
func (h *SyncHandler) SyncAll(c *gin.Context) {
	syncType, ok := h.syncType(c)
	if !ok {
		return
	}
	batch, err := h.syncs.SyncAll(c.Request.Context(), restaurantID(c), syncType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Logs handles GET /sync-logs?platform=&page=&page_size=
func (h *SyncHandler) Logs(c *gin.Context) {
	var q SyncLogListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := delivery.SyncLogFilter{
		RestaurantID: restaurantID(c),
		Page:         q.Page,
		PageSize:     q.PageSize,
	}
	if q.Platform != "" {
		platform, err := delivery.ParsePlatform(q.Platform)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.Platform = platform
	}
	filter.Normalize()

	logs, total, err := h.syncs.ListSyncLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ToSyncLogResponses(logs), total, filter.Page, filter.PageSize)
}

// RegisterRoutes mounts the sync endpoints on rg
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/:platform", h.Sync)
	rg.POST("/sync-all", h.SyncAll)
	rg.GET("/sync-logs", h.Logs)
}
