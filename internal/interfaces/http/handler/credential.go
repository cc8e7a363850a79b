package handler

import (
	"context"

	deliveryapp "github.com/deliverysync/backend/internal/application/delivery"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/gin-gonic/gin"
)

// CredentialUseCase is the credential vault as seen by the HTTP layer
type CredentialUseCase interface {
	SaveCredentials(ctx context.Context, restaurantID string, input deliveryapp.SaveCredentialsInput) (*delivery.CredentialView, error)
	GetCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.CredentialView, error)
	GetAllCredentials(ctx context.Context, restaurantID string) ([]delivery.CredentialView, error)
	UpdateCredentials(ctx context.Context, restaurantID string, platform delivery.Platform, patch delivery.CredentialPatch) (*delivery.CredentialView, error)
	DeleteCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) error
	TestCredentials(ctx context.Context, restaurantID string, input deliveryapp.TestCredentialsInput) (*deliveryapp.ActionResult, error)
}

// CredentialHandler handles credential vault endpoints. Responses never
// contain a password.
type CredentialHandler struct {
	BaseHandler
	credentials CredentialUseCase
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(credentials CredentialUseCase) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// List handles GET /credentials
func (h *CredentialHandler) List(c *gin.Context) {
	views, err := h.credentials.GetAllCredentials(c.Request.Context(), restaurantID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if views == nil {
		views = []delivery.CredentialView{}
	}
	h.Success(c, views)
}

// Get handles GET /credentials/:platform
func (h *CredentialHandler) Get(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	view, err := h.credentials.GetCredentials(c.Request.Context(), restaurantID(c), platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Create handles POST /credentials and POST /credentials/:platform
func (h *CredentialHandler) Create(c *gin.Context) {
	var req SaveCredentialsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	raw := req.Platform
	if path := c.Param("platform"); path != "" {
		raw = path
	}
	platform, err := delivery.ParsePlatform(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req.Platform != "" {
		if body, _ := delivery.ParsePlatform(req.Platform); body != platform {
			h.HandleError(c, delivery.NewValidationError("platform in body (%s) does not match path (%s)", body, platform))
			return
		}
	}

	view, err := h.credentials.SaveCredentials(c.Request.Context(), restaurantID(c), deliveryapp.SaveCredentialsInput{
		Platform:   platform,
		Username:   req.Username,
		Password:   req.Password,
		PortalURL:  req.PortalURL,
		SyncConfig: req.SyncConfig,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// Update handles PUT /credentials/:platform
func (h *CredentialHandler) Update(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	var req UpdateCredentialsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	view, err := h.credentials.UpdateCredentials(c.Request.Context(), restaurantID(c), platform, delivery.CredentialPatch{
		Username:   req.Username,
		Password:   req.Password,
		PortalURL:  req.PortalURL,
		SyncConfig: req.SyncConfig,
		IsActive:   req.IsActive,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Delete handles DELETE /credentials/:platform
func (h *CredentialHandler) Delete(c *gin.Context) {
	platform, ok := h.PathPlatform(c)
	if !ok {
		return
	}
	if err := h.credentials.DeleteCredentials(c.Request.Context(), restaurantID(c), platform); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deliveryapp.ActionResult{
		Success: true,
		Message: platform.DisplayName() + " credentials deleted",
	})
}

// Test handles POST /test-credentials. A rejected login is {success: false}
// with status 200.
func (h *CredentialHandler) Test(c *gin.Context) {
	var req TestCredentialsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	platform, err := delivery.ParsePlatform(req.Platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.credentials.TestCredentials(c.Request.Context(), restaurantID(c), deliveryapp.TestCredentialsInput{
		Platform:  platform,
		Username:  req.Username,
		Password:  req.Password,
		PortalURL: req.PortalURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes mounts the credential endpoints on rg
func (h *CredentialHandler) RegisterRoutes(rg *gin.RouterGroup) {
	creds := rg.Group("/credentials")
	creds.GET("", h.List)
	creds.POST("", h.Create)
	creds.GET("/:platform", h.Get)
	creds.POST("/:platform", h.Create)
	creds.PUT("/:platform", h.Update)
	creds.DELETE("/:platform", h.Delete)

	rg.POST("/test-credentials", h.Test)
}
