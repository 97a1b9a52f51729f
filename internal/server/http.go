package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

// Handler is the part of *core.Processor the transports need.
type Handler interface {
	Process(ctx context.Context, inv core.Invocation) core.Result
}

// HealthFunc reports readiness; nil means always ready.
type HealthFunc func(ctx context.Context) error

const headerReportKey = "X-Report-Key"

// NewHTTPHandler wires the REST surface:
//
//	POST /extract  raw document body, filename / Content-Type / X-Body-Encoding headers
//	POST /events   API-Gateway-style JSON event
//	GET  /healthz
func NewHTTPHandler(h Handler, maxBody int64, health HealthFunc, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = common.DefaultMaxBodyBytes
	}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), gin.Recovery())

	r.POST("/extract", func(c *gin.Context) {
		// read one byte past the limit so the processor can report 413
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody+1))
		if err != nil {
			c.String(http.StatusBadRequest, "❌ Error: could not read request body")
			return
		}
		isBase64, _ := strconv.ParseBool(c.Query("isBase64Encoded"))
		headers := map[string]string{
			"filename":        c.GetHeader("filename"),
			"Content-Type":    c.GetHeader("Content-Type"),
			"X-Body-Encoding": c.GetHeader("X-Body-Encoding"),
		}
		render(c, h.Process(c.Request.Context(), InvocationFromHeaders(headers, body, isBase64, "http")))
	})

	r.POST("/events", func(c *gin.Context) {
		// base64 inflates by 4/3; leave room for the envelope too
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody*2+(1<<16)))
		if err != nil {
			c.String(http.StatusBadRequest, "❌ Error: could not read request body")
			return
		}
		inv, err := ParseEvent(raw, "event")
		if err != nil {
			logger.Warn("event rejected", "error", err)
			c.String(common.StatusCode(err), "❌ Error: "+err.Error())
			return
		}
		render(c, h.Process(c.Request.Context(), inv))
	})

	r.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func render(c *gin.Context, res core.Result) {
	if res.ReportKey != "" {
		c.Header(headerReportKey, res.ReportKey)
	}
	c.String(res.StatusCode, res.Message)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader("X-Request-ID"); id != "" {
			ctx = common.WithRequestID(ctx, id)
		}
		ctx, id := common.EnsureRequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
