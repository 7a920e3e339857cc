package handlers

import "github.com/gin-gonic/gin"

func NewRouter(h *OrderHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())

	router.GET("/health", h.HealthCheck)

	router.GET("/orders", h.ListOrders)
	router.POST("/orders", h.CreateOrder)
	router.GET("/orders/:id", h.GetOrder)
	router.GET("/orders/:id/total", h.GetOrderTotal)
	router.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	router.PUT("/orders/:id/cancel", h.CancelOrder)

	router.GET("/clients/:id/orders", h.ListClientOrders)
	router.GET("/clients/:id/notifications", h.NotificationHistory)

	return router
}
