package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/service"
	"github.com/UmaimaHameed/Elegant-La-Vie/pkg/metrics"
	"github.com/UmaimaHameed/Elegant-La-Vie/pkg/middleware"
)

const maxWebhookBody = 1 << 20

type Server struct {
	engine        *gin.Engine
	products      *service.ProductService
	checkout      *service.CheckoutService
	confirmations *service.ConfirmationService
	verifier      service.WebhookVerifier
	logger        *zap.Logger
	metrics       *metrics.ServerMetrics
}

// Deps wires the server. Verifier may be nil when the processor channel is
// not configured; metrics may be nil in tests.
type Deps struct {
	Products      *service.ProductService
	Checkout      *service.CheckoutService
	Confirmations *service.ConfirmationService
	Verifier      service.WebhookVerifier
	Logger        *zap.Logger
	Metrics       *metrics.ServerMetrics
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	s := &Server{
		engine:        r,
		products:      deps.Products,
		checkout:      deps.Checkout,
		confirmations: deps.Confirmations,
		verifier:      deps.Verifier,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.POST("", s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)
		products.GET("", s.listProducts)

		v1.POST("/checkout", s.checkoutOrder)

		orders := v1.Group("/orders")
		orders.GET(":id", s.getOrder)
		orders.POST(":id/cancel", s.cancelOrder)
		orders.PATCH(":id/status", s.updateOrderStatus)

		v1.POST("/webhooks/stripe", s.stripeWebhook)
	}
}

// Product handlers
type productReq struct {
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	SalePrice   *int64 `json:"sale_price"`
	Stock       int64  `json:"stock"`
	IsActive    *bool  `json:"is_active"`
}

func (r productReq) toDomain(id int64) domain.Product {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return domain.Product{
		ID:          id,
		Name:        r.Name,
		SKU:         r.SKU,
		Description: r.Description,
		Price:       r.Price,
		SalePrice:   r.SalePrice,
		Stock:       r.Stock,
		IsActive:    active,
	}
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	p, err := s.products.Create(c.Request.Context(), req.toDomain(0))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	p, err := s.products.GetByID(c.Request.Context(), id)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body productReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	p, err := s.products.Update(c.Request.Context(), req.toDomain(id))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param id path int true "Product ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	if err := s.products.Delete(c.Request.Context(), id); err != nil {
		s.error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param min_price query int false "Min price, minor units"
// @Param max_price query int false "Max price, minor units"
// @Param active query bool false "Active only"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MaxPrice = &x
		}
	}
	f.ActiveOnly = c.Query("active") == "true"
	list, err := s.products.List(c.Request.Context(), f)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Quantity tolerates sloppy client payloads: numbers, numeric strings and
// garbage all land on an integer, with anything unusable defaulting to 1.
type Quantity int64

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*q = Quantity(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*q = Quantity(int64(f))
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
			*q = Quantity(n)
			return nil
		}
	}
	*q = 1
	return nil
}

type checkoutItemReq struct {
	ProductID int64    `json:"product_id"`
	Quantity  Quantity `json:"quantity"`
}

type checkoutReq struct {
	CustomerName  string            `json:"customer_name"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address"`
	GiftWrap      string            `json:"gift_wrap"`
	GiftMessage   string            `json:"gift_message"`
	Notes         string            `json:"notes"`
	PaymentMethod string            `json:"payment_method"`
	Items         []checkoutItemReq `json:"items"`
}

type checkoutSummary struct {
	Items        []domain.OrderItem `json:"items"`
	Subtotal     int64              `json:"subtotal"`
	ShippingFee  int64              `json:"shipping_fee"`
	GiftWrapFee  int64              `json:"gift_wrap_fee,omitempty"`
	Discount     int64              `json:"discount"`
	Total        int64              `json:"total"`
	FreeShipping bool               `json:"free_shipping"`
}

type checkoutResp struct {
	OrderID       int64           `json:"order_id"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Summary       checkoutSummary `json:"summary"`
	ClientSecret  string          `json:"client_secret,omitempty"`
	MessageURL    string          `json:"message_url,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// @Summary Checkout a cart
// @Tags checkout
// @Accept json
// @Produce json
// @Param input body checkoutReq true "Checkout request"
// @Success 201 {object} checkoutResp
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /checkout [post]
func (s *Server) checkoutOrder(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	lines := make([]service.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.CartLine{ProductID: it.ProductID, Quantity: int64(it.Quantity)})
	}
	res, err := s.checkout.Checkout(c.Request.Context(), service.CheckoutRequest{
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Address:       req.Address,
		GiftWrap:      domain.NormalizeGiftWrap(req.GiftWrap),
		GiftMessage:   req.GiftMessage,
		Notes:         req.Notes,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Items:         lines,
	})
	if err != nil {
		s.countCheckout(req.PaymentMethod, "error")
		s.error(c, err)
		return
	}
	s.countCheckout(req.PaymentMethod, "ok")
	c.JSON(http.StatusCreated, checkoutResp{
		OrderID:       res.Order.ID,
		Status:        string(res.Order.Status),
		PaymentStatus: string(res.Order.PaymentStatus),
		Summary: checkoutSummary{
			Items:        res.Order.Items,
			Subtotal:     res.Totals.Subtotal,
			ShippingFee:  res.Totals.ShippingFee,
			GiftWrapFee:  res.Totals.GiftWrapFee,
			Discount:     res.Totals.Discount,
			Total:        res.Totals.Total,
			FreeShipping: res.Totals.FreeShipping,
		},
		ClientSecret: res.Handle.ClientSecret,
		MessageURL:   res.Handle.MessageURL,
		Message:      res.Handle.Message,
	})
}

func (s *Server) countCheckout(channel, result string) {
	if s.metrics == nil {
		return
	}
	if channel == "" {
		channel = "unknown"
	}
	s.metrics.Checkouts.WithLabelValues(channel, result).Inc()
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	o, err := s.checkout.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	o, err := s.checkout.CancelOrder(c.Request.Context(), id)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type statusUpdateReq struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// @Summary Update order status (operator action)
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body statusUpdateReq true "Status update"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/status [patch]
func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	var req statusUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	o, err := s.confirmations.UpdateStatus(c.Request.Context(), id, service.StatusUpdate{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Stripe webhook receiver
// @Tags webhooks
// @Accept json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /webhooks/stripe [post]
func (s *Server) stripeWebhook(c *gin.Context) {
	if s.verifier == nil {
		s.fail(c, http.StatusNotFound, "not_configured", "processor webhook is not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.countWebhook("read_error")
		s.fail(c, http.StatusBadRequest, "invalid_payload", "could not read payload")
		return
	}
	ev, err := s.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		// signature failures are the only thing the sender may retry
		s.countWebhook("signature_invalid")
		s.fail(c, http.StatusBadRequest, "signature_invalid", "webhook signature verification failed")
		return
	}
	if ev.Type != service.EventPaymentSucceeded {
		s.countWebhook("ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if _, err := s.confirmations.HandlePaymentSucceeded(c.Request.Context(), ev); err != nil {
		s.countWebhook("error")
		s.error(c, err)
		return
	}
	s.countWebhook("ok")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) countWebhook(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Webhooks.WithLabelValues(outcome).Inc()
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (s *Server) fail(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, gin.H{"error": kind, "message": msg})
}

func (s *Server) error(c *gin.Context, err error) {
	status, kind := mapError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

// mapError translates the service taxonomy into transport codes: 400 for
// validation, 404 missing, 409 conflicts, 422 business-rule violations,
// 502 upstream channel, 500 everything unexpected.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, "invalid_payment_method"
	case errors.Is(err, service.ErrInvalidStatusValue):
		return http.StatusBadRequest, "invalid_status_value"
	case errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusBadRequest, "signature_invalid"
	case errors.Is(err, service.ErrProductUnavailable):
		return http.StatusUnprocessableEntity, "product_unavailable"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "insufficient_stock"
	case errors.Is(err, service.ErrDuplicateExternalRef):
		return http.StatusConflict, "duplicate_external_reference"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUpstreamChannel):
		return http.StatusBadGateway, "upstream_channel_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
