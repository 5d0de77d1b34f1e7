// Package apiserver exposes the polling HTTP surface: start a run, read its
// log. Orchestration itself is asynchronous; every response here is served
// from the run log store.
package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/datamorph/datamorph/pkg/apiserver/handlers"
	"github.com/datamorph/datamorph/pkg/apiserver/middleware"
	"github.com/datamorph/datamorph/pkg/auth"
	"github.com/datamorph/datamorph/pkg/store"
)

type Server struct {
	router  *gin.Engine
	manager handlers.RunManager
	logs    store.RunLogStore
	tokens  *auth.RunTokenManager
	logger  *zap.Logger
}

// NewServer wires the routes. A nil token manager leaves the API open.
func NewServer(manager handlers.RunManager, logs store.RunLogStore, tokens *auth.RunTokenManager, logger *zap.Logger) *Server {
	s := &Server{
		manager: manager,
		logs:    logs,
		tokens:  tokens,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runHandler := handlers.NewRunHandler(s.manager, s.logs, s.tokens, s.logger)
	r.POST("/start", runHandler.Start)
	r.GET("/get/logs/:run_id", middleware.RunAuth(s.tokens), runHandler.GetLogs)

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
