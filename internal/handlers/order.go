package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// OrderService is implemented by order.Engine.
type OrderService interface {
	CreateOrder(ctx context.Context, clientID int64, shippingAddress string, items []models.CreateOrderItemRequest) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (models.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (models.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (models.Order, error)
	GetOrdersByClientID(ctx context.Context, clientID int64) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	CalculateOrderTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

// HistoryReader is implemented by client.NotificationClient.
type HistoryReader interface {
	NotificationHistory(ctx context.Context, clientID int64, limit int) ([]models.NotificationRecord, error)
}

type OrderHandler struct {
	orders  OrderService
	history HistoryReader
}

func NewOrderHandler(orders OrderService, history HistoryReader) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		history: history,
	}
}

// HealthCheck returns server status
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "order-service"})
}

// ListOrders returns all orders, or one client's orders with ?client_id=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	if raw := c.Query("client_id"); raw != "" {
		clientID, ok := parseID(c, raw, "client ID")
		if !ok {
			return
		}
		h.listClientOrders(c, clientID)
		return
	}

	orders, err := h.orders.GetAllOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// ListClientOrders returns the orders placed by a client
func (h *OrderHandler) ListClientOrders(c *gin.Context) {
	clientID, ok := parseID(c, c.Param("id"), "client ID")
	if !ok {
		return
	}
	h.listClientOrders(c, clientID)
}

func (h *OrderHandler) listClientOrders(c *gin.Context, clientID int64) {
	orders, err := h.orders.GetOrdersByClientID(c.Request.Context(), clientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder returns a single order with items
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "order ID")
	if !ok {
		return
	}

	order, err := h.orders.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderTotal returns the total frozen at creation
func (h *OrderHandler) GetOrderTotal(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "order ID")
	if !ok {
		return
	}

	total, err := h.orders.CalculateOrderTotal(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "total_amount": total})
}

// CreateOrder creates a new order
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), req.ClientID, req.ShippingAddress, req.Items)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// UpdateOrderStatus updates the order status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "order ID")
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, valid := models.ParseOrderStatus(req.Status)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder cancels the order and restores its stock
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "order ID")
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// NotificationHistory returns a client's notifications, newest last, optionally ?limit=N
func (h *OrderHandler) NotificationHistory(c *gin.Context) {
	clientID, ok := parseID(c, c.Param("id"), "client ID")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.history.NotificationHistory(c.Request.Context(), clientID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_id": clientID, "notifications": records})
}

func parseID(c *gin.Context, raw, what string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what})
		return 0, false
	}
	return id, true
}
