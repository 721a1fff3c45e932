package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"solana-order-pay/internal/config"
	"solana-order-pay/internal/domain"
	"solana-order-pay/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HealthChecker interface {
	Health() map[string]string
}

type Server struct {
	cfg      config.Config
	checkout service.CheckoutService
	ledger   service.LedgerService
	health   HealthChecker
	engine   *gin.Engine
}

// New wires the routes. health may be nil when the ledger is in memory.
func New(cfg config.Config, checkout service.CheckoutService, ledger service.LedgerService, health HealthChecker) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		checkout: checkout,
		ledger:   ledger,
		health:   health,
		engine:   gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Server) routes() {
	s.engine.HandleMethodNotAllowed = true
	s.engine.Use(gin.Logger(), gin.Recovery())
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))
	s.engine.NoMethod(func(c *gin.Context) {
		s.err(c, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/createTransaction", s.handleCreateTransaction)
	api.POST("/orders", s.handleAddOrder)
	api.GET("/orders/purchased", s.handleHasPurchased)
	api.GET("/items/:itemID", s.handleFetchItem)
}

type createTransactionResp struct {
	Transaction string `json:"transaction"`
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	var order domain.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	built, err := s.checkout.CreateTransaction(c.Request.Context(), order)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, createTransactionResp{Transaction: built.Transaction})
}

func (s *Server) handleAddOrder(c *gin.Context) {
	var order domain.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	if err := s.ledger.AddOrder(c.Request.Context(), order); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderID": order.OrderID})
}

func (s *Server) handleHasPurchased(c *gin.Context) {
	owned, err := s.ledger.HasPurchased(c.Request.Context(), c.Query("buyer"), c.Query("itemID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchased": owned})
}

func (s *Server) handleFetchItem(c *gin.Context) {
	rec, err := s.ledger.FetchItem(c.Request.Context(), c.Query("buyer"), c.Param("itemID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up", "ledger": "memory"})
		return
	}
	stats := s.health.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

// fail maps an error class onto a status code. Internal failures never leak
// their cause to the client.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		s.err(c, http.StatusBadRequest, "BadRequest", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.err(c, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, domain.ErrNotPurchased):
		s.err(c, http.StatusForbidden, "NotPurchased", err.Error())
	case errors.Is(err, domain.ErrDuplicateReference):
		s.err(c, http.StatusConflict, "DuplicateReference", err.Error())
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		s.err(c, http.StatusInternalServerError, "ServerError", "internal server error")
	}
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": msg,
		},
	})
}
