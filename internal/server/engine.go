// Package server assembles the gin engine: middleware stack, route
// registration, and the small ambient handlers (healthz, images, metrics)
// that don't belong to either wire-format handler package. Adapted from the
// teacher's internal/server/builder.go + engine_helpers.go, collapsed from
// its dual-engine (openai port / gemini port) layout into the single
// listener SPEC_FULL.md §6 describes.
package server

import (
	"database/sql"
	"net/http"
	"path/filepath"
	"strings"

	"gcligateway/internal/config"
	"gcligateway/internal/dispatcher"
	"gcligateway/internal/events"
	gh "gcligateway/internal/handlers/gemini"
	oh "gcligateway/internal/handlers/openai"
	mw "gcligateway/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Dependencies bundles the already-constructed services the engine wires
// into handlers and middleware.
type Dependencies struct {
	DB         *sql.DB
	Dispatcher *dispatcher.Dispatcher
	Cfg        func() config.Config
	Events     *events.Hub
}

// BuildEngine constructs the single gin.Engine serving both wire formats.
func BuildEngine(deps Dependencies) *gin.Engine {
	cfg := deps.Cfg()
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	_ = engine.SetTrustedProxies([]string{})

	engine.Use(mw.Recovery(), mw.RequestID(), mw.Metrics(), mw.CORS(), mw.RequestLogger())
	engine.Use(mw.RateLimiterAutoKey(cfg.Quota.BaseRPM, cfg.Quota.BaseRPM*2))
	engine.Use(func(c *gin.Context) {
		c.Set("server_label", "gateway")
		c.Next()
	})

	engine.GET("/healthz", healthz(deps.DB))
	engine.GET("/metrics", mw.MetricsHandler)
	engine.GET("/images/:filename", serveImage(deps.Cfg))

	if deps.Events != nil {
		broadcaster := events.NewBroadcaster(deps.Events, nil, events.TopicUsageFinalized)
		engine.GET("/events/stream", func(c *gin.Context) {
			broadcaster.ServeWS(c.Writer, c.Request)
		})
	}

	auth := APIKeyAuth(deps.DB)

	openaiHandler := oh.New(deps.Dispatcher, deps.Cfg)
	geminiHandler := gh.New(deps.Dispatcher, deps.Cfg)

	v1 := engine.Group("/v1")
	v1.Use(auth)
	v1.GET("/models", openaiHandler.ListModels)
	v1.POST("/chat/completions", openaiHandler.ChatCompletions)

	v1beta := engine.Group("/v1beta")
	v1beta.Use(auth)
	v1beta.GET("/models", geminiHandler.ListModels)
	// Gin can't mix a ":model" path param with a literal colon-prefixed
	// action in the same segment, so the action is dispatched from a
	// trailing wildcard, the same shape as the teacher's routes_gemini.go.
	v1beta.POST("/models/:model/*action", func(c *gin.Context) {
		switch c.Param("action") {
		case ":generateContent":
			geminiHandler.GenerateContent(c)
		case ":streamGenerateContent":
			geminiHandler.StreamGenerateContent(c)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown action", "type": "invalid_request_error"}})
		}
	})

	return engine
}

func healthz(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unreachable")
			return
		}
		c.String(http.StatusOK, "ok")
	}
}

// serveImage serves a previously persisted generated-image blob from the
// configured image directory. The filename is sanitised to its base name
// to prevent path traversal outside ImageDir.
func serveImage(cfg func() config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := filepath.Base(c.Param("filename"))
		if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
			c.Status(http.StatusNotFound)
			return
		}
		dir := cfg().ImageDir
		c.File(filepath.Join(dir, name))
	}
}
