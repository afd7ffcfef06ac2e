package server

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/config"
	"github.com/openrail/provision-agent/internal/server/middlewares"
)

const apiV1 = "/api/v1"

type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server exposing the provisioning API. In
// production mode it also serves the web console statics.
func NewServer(cfg *config.Configuration, registerHandlerFn func(router *gin.RouterGroup)) (*Server, error) {
	gin.SetMode(gin.DebugMode)
	if config.ServerModeType(cfg.Server.ServerMode) == config.ServerModeProd {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	if config.ServerModeType(cfg.Server.ServerMode) == config.ServerModeProd {
		engine.Static("/static", cfg.Server.StaticsFolder)
		engine.StaticFile("/", path.Join(cfg.Server.StaticsFolder, "index.html"))
		engine.StaticFile("/favicon.ico", path.Join(cfg.Server.StaticsFolder, "favicon.ico"))

		engine.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(404, gin.H{
					"error": "API endpoint not found",
				})
				return
			}
			c.File(path.Join(cfg.Server.StaticsFolder, "index.html"))
		})
	}

	router := engine.Group(apiV1)
	router.Use(
		middlewares.Logger(),
		ginzap.RecoveryWithZap(zap.S().Desugar(), true),
	)

	registerHandlerFn(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Server.HTTPPort),
		Handler: engine,
	}

	return &Server{srv: srv}, nil
}

func (r *Server) Start(ctx context.Context) error {
	if err := r.srv.ListenAndServe(); err != nil {
		zap.S().Named("http").Errorw("failed to start server", "error", err)
		return err
	}
	return nil
}

func (r *Server) Stop(ctx context.Context) {
	if err := r.srv.Shutdown(ctx); err != nil {
		zap.S().Errorw("server shutdown", "error", err)
	}
}
