package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader names the client-chosen key of a command request
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// Idempotency rejects a repeated command carrying an already seen
// Idempotency-Key with 409. The key is kept only when the command fully
// succeeded, so a failed or partial command may be retried with the same key.
// Requests without the header and safe methods pass through.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.GetHeader(IdempotencyKeyHeader)
		if clientKey == "" || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInvalidInput,
				"Idempotency-Key is too long",
				GetRequestID(c),
			))
			return
		}

		key := "http:" + c.Request.Method + " " + c.Request.URL.Path + ":" + clientKey
		fields := []zap.Field{zap.String("idempotency_key", clientKey), zap.String("path", c.Request.URL.Path)}

		fresh, err := store.MarkProcessed(c.Request.Context(), key, ttl)
		switch {
		case err != nil:
			logger.Warn("idempotency store unavailable, executing command anyway", append(fields, zap.Error(err))...)
			c.Next()
			return
		case !fresh:
			logger.Info("duplicate command rejected", fields...)
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"A request with this Idempotency-Key was already processed",
				GetRequestID(c),
			))
			return
		}

		c.Next()

		if status := c.Writer.Status(); status < 200 || status >= 300 || status == http.StatusMultiStatus {
			// The request context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Release(ctx, key); err != nil {
				logger.Warn("failed to release idempotency key", append(fields, zap.Error(err))...)
			}
		}
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
