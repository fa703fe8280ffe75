package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/service"
	"order-engine/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the engine components the HTTP layer calls into.
type Services struct {
	Validator *service.CartValidator
	Builder   *service.OrderBuilder
	Orders    *service.OrderStateMachine
	Ledger    *service.StockLedger
	Guard     *service.CatalogGuard
	Products  *service.ProductReader
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		svc:    svc,
		checks: checks,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/users/:userId/cart/validation", h.validateCart)
		v1.POST("/users/:userId/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/availability", h.getAvailability)

		admin := v1.Group("/admin")
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		admin.PATCH("/orders/:id/payment-status", h.updatePaymentStatus)
		admin.PATCH("/products/:id/stock", h.updateStock)
		admin.DELETE("/products/:id", h.deleteProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// validateCart returns a verdict for every cart line
func (h *Handler) validateCart(c *gin.Context) {
	userID, ok := h.idParam(c, "userId")
	if !ok {
		return
	}

	result, err := h.svc.Validator.ValidateCart(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":             result.UserID,
		"lines":               result.Lines,
		"has_blocking_issues": result.HasBlockingIssues(),
	})
}

type placeOrderBody struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	Notes           string                 `json:"notes"`
	IdempotencyKey  string                 `json:"idempotency_key"`
}

// placeOrder handles checkout
func (h *Handler) placeOrder(c *gin.Context) {
	userID, ok := h.idParam(c, "userId")
	if !ok {
		return
	}

	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, &service.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}

	if body.IdempotencyKey == "" {
		body.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.svc.Builder.PlaceOrder(c.Request.Context(), service.PlaceOrderRequest{
		UserID:          userID,
		ShippingAddress: body.ShippingAddress,
		Notes:           body.Notes,
		IdempotencyKey:  body.IdempotencyKey,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// getProduct serves a product for display, from cache when possible
func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	product, err := h.svc.Products.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// getAvailability reads the authoritative stock for a product
func (h *Handler) getAvailability(c *gin.Context) {
	productID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	quantity, active, err := h.svc.Ledger.GetAvailable(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"quantity":   quantity,
		"is_active":  active,
	})
}

type statusBody struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus moves an order along the fulfillment track
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, &service.ValidationError{Field: "status", Message: "is required"})
		return
	}

	order, err := h.svc.Orders.UpdateOrderStatus(c.Request.Context(), orderID, models.OrderStatus(body.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// updatePaymentStatus moves an order along the payment track
func (h *Handler) updatePaymentStatus(c *gin.Context) {
	orderID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, &service.ValidationError{Field: "status", Message: "is required"})
		return
	}

	order, err := h.svc.Orders.UpdatePaymentStatus(c.Request.Context(), orderID, models.PaymentStatus(body.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type stockBody struct {
	Delta      *int `json:"delta"`
	StockCount *int `json:"stock_count"`
}

// updateStock applies a relative or absolute stock change
func (h *Handler) updateStock(c *gin.Context) {
	productID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	var body stockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, &service.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}

	var (
		product *models.Product
		err     error
	)
	switch {
	case body.Delta != nil && body.StockCount != nil:
		err = &service.ValidationError{Message: "set either delta or stock_count, not both"}
	case body.Delta != nil:
		product, err = h.svc.Ledger.Adjust(c.Request.Context(), productID, *body.Delta)
	case body.StockCount != nil:
		product, err = h.svc.Ledger.SetAbsolute(c.Request.Context(), productID, *body.StockCount)
	default:
		err = &service.ValidationError{Message: "one of delta or stock_count is required"}
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// deleteProduct deletes or deactivates a product
func (h *Handler) deleteProduct(c *gin.Context) {
	productID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Guard.DeleteProduct(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, &service.ValidationError{Field: name, Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// writeError renders an engine error with enough detail for the client to act on it.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	body := gin.H{
		"error":   kind,
		"message": err.Error(),
	}

	var (
		validationErr *service.ValidationError
		stockErr      *service.InsufficientStockError
		transitionErr *service.InvalidTransitionError
		notFoundErr   *service.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		if validationErr.Field != "" {
			body["details"] = gin.H{"field": validationErr.Field}
		}
	case errors.As(err, &stockErr):
		body["details"] = gin.H{"shortages": stockErr.Shortages}
	case errors.As(err, &transitionErr):
		body["details"] = gin.H{
			"track": transitionErr.Track,
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		}
	case errors.As(err, &notFoundErr):
		body["details"] = gin.H{"entity": notFoundErr.Entity, "id": notFoundErr.ID}
	}

	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body["message"] = "internal error"
	}

	c.AbortWithStatusJSON(status, body)
}

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition", "checkout_in_progress":
		return http.StatusConflict
	case "empty_cart", "insufficient_stock":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
