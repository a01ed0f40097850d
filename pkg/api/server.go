package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/ledger"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/orders"
	"github.com/cuemby/brigade/pkg/recipe"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Services are the domain components the HTTP API exposes
type Services struct {
	Orders    *orders.Machine
	Ledger    *ledger.Ledger
	Engine    *deduction.Engine
	Alerts    *alerts.Router
	Recipes   *recipe.Catalog
	Auth      *auth.Authenticator
	Websocket http.Handler // Mounted at /ws when set
}

// Options tunes the HTTP server
type Options struct {
	AllowedOrigins []string // Empty allows any origin
}

// Server is the brigade HTTP API
type Server struct {
	svc    Services
	engine *gin.Engine
	http   *http.Server
	logger zerolog.Logger
}

// NewServer builds the router and registers every route
func NewServer(svc Services, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:    svc,
		engine: gin.New(),
		logger: log.WithComponent("api"),
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(opts.AllowedOrigins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), metrics.GinMiddleware(), cors.New(corsCfg))
	s.routes()

	s.http = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.engine
	registerHealth(r)
	if s.svc.Websocket != nil {
		r.GET("/ws", gin.WrapH(s.svc.Websocket))
	}

	v1 := r.Group("/api/v1", s.svc.Auth.Middleware())
	{
		o := v1.Group("/orders")
		o.GET("", s.listOrders)
		o.GET("/:id", s.getOrder)
		o.GET("/:id/history", s.orderHistory)
		o.GET("/:id/stock-check", s.stockCheck)
		o.POST("", s.requireRole(types.RoleWaiter, types.RoleCaptain, types.RoleCashier, types.RoleAdmin), s.createOrder)
		o.POST("/:id/items", s.requireRole(types.RoleWaiter, types.RoleCaptain, types.RoleAdmin), s.addOrderItems)
		o.PATCH("/:id/status", s.transitionOrder)

		inv := v1.Group("/inventory")
		inv.GET("", s.listInventory)
		inv.GET("/:id", s.getInventoryItem)
		inv.GET("/:id/movements", s.listMovements)
		inv.POST("", s.requireRole(types.RoleAdmin), s.createInventoryItem)
		inv.POST("/:id/movements", s.requireRole(types.RoleAdmin, types.RoleKitchen), s.recordMovement)
		inv.DELETE("/:id", s.requireRole(types.RoleAdmin), s.deactivateInventoryItem)

		p := v1.Group("/products")
		p.GET("/:id/ingredients", s.listIngredients)
		p.POST("/:id/ingredients", s.requireRole(types.RoleAdmin), s.addIngredient)

		a := v1.Group("/alerts")
		a.GET("", s.listAlerts)
		a.POST("", s.createAlert)
		a.PATCH("/read-all", s.markAllAlertsRead)
		a.PATCH("/:id/read", s.markAlertRead)
	}
}

// requireRole runs after authentication and restricts a route to roles
func (s *Server) requireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.ActorFrom(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// Handler returns the HTTP handler, used by tests and for embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	s.logger.Info().Str("addr", addr).Msg("HTTP API listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
