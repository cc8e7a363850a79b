package handler

import (
	"context"

	deliveryapp "github.com/deliverysync/backend/internal/application/delivery"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/gin-gonic/gin"
)

// SessionUseCase is the session manager as seen by the HTTP layer
type SessionUseCase interface {
	InitSession(ctx context.Context, restaurantID string, input deliveryapp.InitSessionInput) (*deliveryapp.ActionResult, error)
	GetSessionInfo(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.SessionInfo, error)
	TestSession(ctx context.Context, restaurantID string, platform delivery.Platform) (*deliveryapp.SessionTestResult, error)
	DeleteSession(ctx context.Context, restaurantID string, platform delivery.Platform) (*deliveryapp.ActionResult, error)
	ListSessions(ctx context.Context, restaurantID string) ([]delivery.SessionInfo, error)
	CleanupExpiredSessions(ctx context.Context, restaurantID string, maxAgeDays int) (int64, error)
}

// SessionHandler handles portal session endpoints
type SessionHandler struct {
	BaseHandler
	sessions SessionUseCase
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionUseCase) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Init handles POST /sessions/init. The request stays open while a person
// completes the login in the opened browser.
func (h *SessionHandler) Init(c *gin.Context) {
	var req InitSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	platform, err := delivery.ParsePlatform(req.Platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.sessions.InitSession(c.Request.Context(), restaurantID(c), deliveryapp.InitSessionInput{
		Platform: platform,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Status handles GET /sessions/status/:platform
func (h *SessionHandler) Status(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	info, err := h.sessions.GetSessionInfo(c.Request.Context(), restaurantID(c), platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, info)
}

// Test handles POST /sessions/test/:platform. A session the portal rejects
// is reported as {valid: false}, not as an error.
func (h *SessionHandler) Test(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	result, err := h.sessions.TestSession(c.Request.Context(), restaurantID(c), platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete handles DELETE /sessions/:platform; deleting nothing succeeds
func (h *SessionHandler) Delete(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	result, err := h.sessions.DeleteSession(c.Request.Context(), restaurantID(c), platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// List handles GET /sessions/list
func (h *SessionHandler) List(c *gin.Context) {
	infos, err := h.sessions.ListSessions(c.Request.Context(), restaurantID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if infos == nil {
		infos = []delivery.SessionInfo{}
	}
	h.Success(c, infos)
}

// Cleanup handles POST /sessions/cleanup. The body is optional.
func (h *SessionHandler) Cleanup(c *gin.Context) {
	var req CleanupSessionsRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	removed, err := h.sessions.CleanupExpiredSessions(c.Request.Context(), restaurantID(c), req.MaxAgeDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CleanupSessionsResponse{Removed: removed})
}

// RegisterRoutes mounts the session endpoints on rg
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	sessions.POST("/init", h.Init)
	sessions.GET("/status/:platform", h.Status)
	sessions.POST("/test/:platform", h.Test)
	sessions.DELETE("/:platform", h.Delete)
	sessions.GET("/list", h.List)
	sessions.POST("/cleanup", h.Cleanup)
}
