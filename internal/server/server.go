package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fragransia-payments/internal/config"
	"fragransia-payments/internal/domain"
	"fragransia-payments/internal/usecase"
)

type Server struct {
	cfg      config.Config
	auth     *usecase.AuthService
	orders   *usecase.OrderService
	payments *usecase.PaymentService
	log      *slog.Logger
	engine   *gin.Engine
}

func New(cfg config.Config, auth *usecase.AuthService, orders *usecase.OrderService, payments *usecase.PaymentService, log *slog.Logger) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		auth:     auth,
		orders:   orders,
		payments: payments,
		log:      log,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.cors())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api", s.requireUser())
	api.POST("/orders", s.handleCreateOrder)
	api.GET("/orders/:id", s.handleGetOrder)
	api.POST("/payments/create-order", s.handleCreateProviderOrder)
	api.POST("/payments/verify", s.handleVerifyPayment)
	api.POST("/payments/refund", s.handleRefund)
	api.GET("/payments/refunds/:id", s.handleRefundStatus)
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}
		uid, err := s.auth.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", uid)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}

type createOrderReq struct {
	Items         []domain.OrderItem `json:"items" binding:"required"`
	ShippingPaise int64              `json:"shippingPaise"`
	TaxPaise      int64              `json:"taxPaise"`
	Currency      string             `json:"currency"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.orders.Create(userID(c), req.Items, req.ShippingPaise, req.TaxPaise, req.Currency)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.orders.GetForUser(c.Param("id"), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type createProviderOrderReq struct {
	OrderID  string            `json:"orderId" binding:"required"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

func (s *Server) handleCreateProviderOrder(c *gin.Context) {
	var req createProviderOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	po, err := s.payments.CreateProviderOrder(c.Request.Context(), req.OrderID, userID(c), req.Amount, req.Currency, req.Receipt, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": po.ID, "amount": po.Amount, "currency": po.Currency})
}

type verifyReq struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	OrderID           string `json:"orderId" binding:"required"`
}

func (s *Server) handleVerifyPayment(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.payments.VerifyPayment(c.Request.Context(),
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, req.OrderID, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

type refundReq struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func (s *Server) handleRefund(c *gin.Context) {
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ref, err := s.payments.InitiateRefund(c.Request.Context(), req.PaymentID, req.Amount, req.Reason, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (s *Server) handleRefundStatus(c *gin.Context) {
	ref, err := s.payments.RefundStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

// fail maps usecase errors to HTTP statuses. Signature mismatches get a
// generic client message; the detail stays in logs and the audit trail.
func (s *Server) fail(c *gin.Context, err error) {
	var sigErr *usecase.ErrInvalidSignature
	var gwErr *usecase.GatewayError
	switch {
	case errors.As(err, &sigErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payment verification failed"})
	case errors.As(err, &gwErr):
		s.log.Error("gateway failure", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable, retry later"})
	default:
		var nf usecase.ErrNotFound
		var br usecase.ErrBadRequest
		var cf usecase.ErrConflict
		switch {
		case errors.As(err, &nf):
			c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		case errors.As(err, &br):
			c.JSON(http.StatusBadRequest, gin.H{"error": br.Error()})
		case errors.As(err, &cf):
			c.JSON(http.StatusConflict, gin.H{"error": cf.Error()})
		default:
			s.log.Error("internal error", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}
