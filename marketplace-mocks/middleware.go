package main

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

type loggingResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.body.Write(b)
	return lrw.ResponseWriter.Write(b)
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lrw := &loggingResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = lrw

		c.Next()

		logger.Info("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestId", c.GetHeader("X-Request-ID"),
			"status", c.Writer.Status(),
			"response", lrw.body.String(),
		)
	}
}

type endpointCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newEndpointCounter() *endpointCounter {
	return &endpointCounter{counts: make(map[string]int)}
}

func (e *endpointCounter) middleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()

		e.mu.Lock()
		e.counts[key]++
		count := e.counts[key]
		e.mu.Unlock()

		logger.Debug("Endpoint called", "endpoint", key, "count", count)
		c.Next()
	}
}

func (e *endpointCounter) count(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[key]
}

// authMiddleware rejects requests whose bearer token differs from token. An
// empty token disables the check.
func authMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ") != token {
			c.AbortWithStatusJSON(401, gin.H{"success": false, "message": "Phiên đăng nhập đã hết hạn"})
			return
		}
		c.Next()
	}
}
