package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/interfaces/http/dto"
	"github.com/agency/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 response for a binding error
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// Batch sends the report of an engine batch. A batch with failed items is
// answered 207 with the report as data, so callers see which items failed.
func (h *BaseHandler) Batch(c *gin.Context, report any, batchErr error) {
	if batchErr == nil {
		h.Success(c, report)
		return
	}
	resp := dto.NewErrorResponseWithRequestID(dto.ErrCodePartialBatch, batchErr.Error(), getRequestID(c))
	resp.Data = report
	c.JSON(http.StatusMultiStatus, resp)
}

// HandleError converts an error returned by the engine into a response.
// Errors without a domain code are reported as internal without detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var blocked *finance.DependencyBlockedError
	if errors.As(err, &blocked) {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeDependencyBlocked, blocked.Error(), requestID)
		resp.Error.Dependency = &dto.DependencyDetail{
			LinkType: string(blocked.LinkType),
			LinkID:   blocked.LinkID.String(),
		}
		c.JSON(http.StatusConflict, resp)
		return
	}

	if errors.Is(err, shared.ErrTransientStore) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUnavailable,
			"The store is temporarily unavailable, retry the request",
			requestID,
		))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// pathID parses the :id path parameter, answering 400 when it is not a UUID
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}
