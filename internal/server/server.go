// Package server exposes common tag searches over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/garlicnation/commontags/profiles"
	"github.com/garlicnation/commontags/promise"
	"github.com/garlicnation/commontags/tagger"
)

// Searcher is the part of commontags.Searcher the handlers need.
type Searcher interface {
	SearchCommonTags(ctx context.Context, handles []string) *promise.Promise[[]string]
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Handles []string `json:"handles"`
	Tags    []string `json:"tags"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the HTTP API.
type Handler struct {
	searcher Searcher
	log      *zap.Logger
}

// NewHandler returns a Handler backed by searcher.
func NewHandler(searcher Searcher, log *zap.Logger) *Handler {
	return &Handler{searcher: searcher, log: log}
}

// NewEngine builds the gin engine with middleware and routes registered.
// timeout bounds each request; zero disables it.
func NewEngine(h *Handler, log *zap.Logger, timeout time.Duration) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(RequestLogger(log))
	if timeout > 0 {
		engine.Use(Timeout(timeout))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	v1 := engine.Group("/v1")
	v1.GET("/common-tags", h.CommonTags)
	return engine
}

// CommonTags handles GET /v1/common-tags?handle=a&handle=b (or handles=a,b).
func (h *Handler) CommonTags(c *gin.Context) {
	handles := parseHandles(c)

	tags, err := h.searcher.SearchCommonTags(c.Request.Context(), handles).Wait()
	if err != nil {
		status := statusFor(err)
		h.log.Warn("common tag search failed",
			zap.Strings("handles", handles),
			zap.Int("status", status),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Handles: handles, Tags: tags})
}

func parseHandles(c *gin.Context) []string {
	handles := []string{}
	raw := c.QueryArray("handle")
	for _, list := range c.QueryArray("handles") {
		raw = append(raw, strings.Split(list, ",")...)
	}
	for _, h := range raw {
		if h = strings.TrimSpace(h); h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profiles.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, profiles.ErrRateLimited), errors.Is(err, tagger.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
