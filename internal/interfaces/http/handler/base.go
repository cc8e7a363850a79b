// Package handler implements the HTTP endpoints of the delivery sync API.
package handler

import (
	"errors"
	"net/http"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"github.com/deliverysync/backend/internal/interfaces/http/dto"
	"github.com/deliverysync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// restaurantID returns the restaurant set by the auth chain. Routes are
// mounted behind RequireRestaurant, so an empty value means a wiring bug and
// the service rejects it with an auth context error.
func restaurantID(c *gin.Context) string {
	return middleware.GetRestaurantID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BindJSON binds the request body and answers 400 on failure. It returns
// false when the handler must stop.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters and answers 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// PathPlatform parses the :platform path parameter and answers 400 when it
// is not a supported platform
func (h *BaseHandler) PathPlatform(c *gin.Context) (delivery.Platform, bool) {
	platform, err := delivery.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return platform, true
}

// HandleError converts an error into an HTTP response. Delivery errors carry
// an operator-safe message; anything else is logged and reported as internal.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var de *delivery.Error
	if errors.As(err, &de) {
		h.Error(c, dto.CodeForKind(de.Kind), de.Message)
		return
	}
	if kind := delivery.KindOf(err); kind != "" {
		h.Error(c, dto.CodeForKind(kind), delivery.UserMessage(err))
		return
	}

	logger.FromGin(c).Error("Unhandled error", zap.Error(err), zap.String("route", c.FullPath()))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
