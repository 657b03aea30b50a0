package http

import (
	"context"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/adapters/signal"
	"github.com/dkeye/CineMatch/internal/app/orch"
	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/config"
)

type Deps struct {
	Orch   *orch.Orchestrator
	Gate   *auth.Gate
	Signal *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, sessions: deps.Orch.Sessions, publicURL: cfg.PublicURL}

	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/ws/signal", func(c *gin.Context) {
		deps.Signal.HandleSignal(ctx, c)
	})

	s := api.Group("/sessions", RequireIdentity(deps.Gate))
	s.POST("/create", h.createSession)
	s.POST("/join", h.joinSession)
	s.GET("/:joinCode", h.getSession)
	s.GET("/:joinCode/qr", h.sessionQR)

	return r
}
