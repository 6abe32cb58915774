package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"exchangelink/logger"
	"exchangelink/models"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerTenantID  = "X-Tenant-ID"

	keyRequestID = "request_id"
	keyUserID    = "user_id"
	keyTenantID  = "tenant_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger(log *logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithComponent("api").WithFields(logger.Fields{
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(keyRequestID),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.WithField("error", c.Errors.String()).Error("request failed")
		case len(c.Errors) > 0:
			entry.WithField("error", c.Errors.String()).Warn("request error")
		default:
			entry.Debug("request")
		}
	}
}

// identity reads the caller identity set by the upstream session layer.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		tenantID := c.GetHeader(headerTenantID)
		if userID == "" || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "unauthenticated",
				Message:   "missing " + headerUserID + " or " + headerTenantID + " header",
				RequestID: c.GetString(keyRequestID),
			})
			return
		}
		c.Set(keyUserID, userID)
		c.Set(keyTenantID, tenantID)
		c.Next()
	}
}

func refFrom(c *gin.Context) models.ConfigRef {
	return models.ConfigRef{
		UserID:          c.GetString(keyUserID),
		TenantID:        c.GetString(keyTenantID),
		ConfigurationID: c.Param("id"),
	}
}
