// Package httpapi exposes the bridge operations as JSON endpoints for the
// browser-rendered GUI shell.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/erg0nix/chatdesk/internal/bridge"
	"github.com/erg0nix/chatdesk/internal/models"
	"github.com/erg0nix/chatdesk/internal/session"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

type Handlers struct {
	Bridge *bridge.Service
}

// NewRouter builds the gin engine. webDir, when set, is served for every
// path that is not an API route.
func NewRouter(svc *bridge.Service, webDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:       12 * time.Hour,
	}))

	h := &Handlers{Bridge: svc}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/models", h.ListModels)
	api.POST("/setup_model", h.SetupModel)
	api.POST("/process_message", h.ProcessMessage)
	api.POST("/get_info", h.GetInfo)
	api.POST("/refresh_session", h.RefreshSession)
	api.POST("/change_sys_msg", h.ChangeSystemMessage)

	if webDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(webDir))))
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

type modelEntry struct {
	Version string      `json:"version"`
	Default bool        `json:"default"`
	Rate    models.Rate `json:"price_per_million"`
}

func (h *Handlers) ListModels(c *gin.Context) {
	entries := make([]modelEntry, 0, len(models.Supported()))
	for _, version := range models.Supported() {
		rate, _ := models.RateFor(version)
		entries = append(entries, modelEntry{Version: version, Default: version == models.Default, Rate: rate})
	}

	c.JSON(http.StatusOK, gin.H{"models": entries})
}

func (h *Handlers) SetupModel(c *gin.Context) {
	var req bridge.SetupRequest
	// An empty body means every setup field takes its default.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid setup request", "kind": "bad_request"})
		return
	}

	snap, err := h.Bridge.SetupModel(req)
	if err != nil {
		c.JSON(statusFor(err), bridge.SetupFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"serialized_model": snap})
}

type modelRequest struct {
	Message         string          `json:"message"`
	SystemMessage   string          `json:"sys_msg"`
	SerializedModel json.RawMessage `json:"serialized_model"`
}

func bindModelRequest(c *gin.Context) (modelRequest, snapshot.Snapshot, bool) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": "bad_request"})
		return req, snapshot.Snapshot{}, false
	}

	snap, err := snapshot.Decode(req.SerializedModel)
	if err != nil {
		c.JSON(statusFor(err), bridge.FailureFrom(err))
		return req, snapshot.Snapshot{}, false
	}

	return req, snap, true
}

func (h *Handlers) ProcessMessage(c *gin.Context) {
	req, snap, ok := bindModelRequest(c)
	if !ok {
		return
	}

	result, err := h.Bridge.ProcessMessage(c.Request.Context(), req.Message, snap)
	if err != nil {
		c.JSON(statusFor(err), bridge.FailureFrom(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetInfo(c *gin.Context) {
	_, snap, ok := bindModelRequest(c)
	if !ok {
		return
	}

	result, err := h.Bridge.GetInfo(snap)
	if err != nil {
		c.JSON(statusFor(err), bridge.FailureFrom(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handlers) RefreshSession(c *gin.Context) {
	_, snap, ok := bindModelRequest(c)
	if !ok {
		return
	}

	result, err := h.Bridge.RefreshSession(snap)
	if err != nil {
		c.JSON(statusFor(err), bridge.FailureFrom(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handlers) ChangeSystemMessage(c *gin.Context) {
	req, snap, ok := bindModelRequest(c)
	if !ok {
		return
	}

	result, err := h.Bridge.ChangeSystemMessage(req.SystemMessage, snap)
	if err != nil {
		c.JSON(statusFor(err), bridge.FailureFrom(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func statusFor(err error) int {
	switch session.KindOf(err) {
	case session.KindConfiguration, session.KindDeserialization:
		return http.StatusBadRequest
	case session.KindContextExceeded:
		return http.StatusConflict
	case session.KindRequest, session.KindResponseParse, session.KindUnknownFinishReason:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
