package main

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", requestIDFrom(c)),
			zap.String("remote_addr", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Request failed with server error", fields...)
		case status >= 400:
			logger.Warn("Request failed with client error", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

func Recover(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("PANIC RECOVERED",
					zap.Any("error", err),
					zap.String("request_id", requestIDFrom(c)),
					zap.String("path", c.Request.URL.Path),
				)
				errMsg := "Unexpected server error occurred"
				if errStr, ok := err.(string); ok {
					errMsg = errStr
				}
				respondError(c, ErrInternalServer(errMsg))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// BasicAuth guards every route except /healthz when both credentials are set.
// Rejections carry the same error envelope as every other failure.
func BasicAuth(username, password string) gin.HandlerFunc {
	if username == "" || password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if ok && secureEqual(user, username) && secureEqual(pass, password) {
			c.Set(gin.AuthUserKey, user)
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", `Basic realm="resumetailor"`)
		respondError(c, ErrUnauthorized("valid credentials are required"))
		c.Abort()
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func RespondWithError(c *gin.Context, err *ApiError) {
	c.JSON(err.StatusCode(), err.WithRequestID(requestIDFrom(c)))
}

// respondPageError renders the error page for browser routes.
func respondPageError(c *gin.Context, err *ApiError) {
	err.WithRequestID(requestIDFrom(c))
	c.HTML(err.StatusCode(), "error.html", gin.H{
		"Title": fmt.Sprintf("%d %s", err.Code, err.Message),
		"Error": err,
	})
}

func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/healthz" {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func respondError(c *gin.Context, err *ApiError) {
	if isAPIRequest(c) {
		RespondWithError(c, err)
		return
	}
	respondPageError(c, err)
}
