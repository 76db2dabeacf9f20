// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evconnect/internal/http/handlers"
	"evconnect/internal/http/middleware"
	"evconnect/internal/infra"
	"evconnect/internal/logging"
	"evconnect/internal/modules/dispatch"
	"evconnect/internal/modules/location"
	"evconnect/internal/modules/servicereq"
)

const roleOperator = "operator"

type ServerDeps struct {
	Services   *servicereq.Service
	Dispatcher *dispatch.Coordinator
	Location   *location.Service
	Verifier   infra.TokenVerifier
	Metrics    http.Handler
	Log        logging.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = logging.Noop()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.deps.Log), middleware.Logging(s.deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	links := handlers.NewLinkHandler(s.deps.Dispatcher)
	r.GET("/links/:id", links.Click)

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	services := handlers.NewServiceHandler(s.deps.Services, s.deps.Dispatcher)
	api.POST("/services", services.Create)
	api.GET("/services/:id", middleware.RequireRole(roleOperator), services.Get)
	api.POST("/services/:id/assign", middleware.RequireRole(roleOperator), services.Assign)

	loc := handlers.NewLocationHandler(s.deps.Location)
	api.PUT("/agents/:id/location", loc.Update)
	api.GET("/agents/nearby", middleware.RequireRole(roleOperator), loc.Nearby)

	return r
}
