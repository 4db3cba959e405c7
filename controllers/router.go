package controllers

import (
	"net/http"

	"b2b-storefront/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductController
	Cart     *CartController
	Orders   *OrderController
	Events   *EventController
}

// SetupRouter mounts health and metrics at the root and everything else under
// /api behind bearer authentication.
func SetupRouter(h Handlers, jwtSecret string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(jwtSecret, logger))
	{
		products := api.Group("/products")
		{
			products.GET("", h.Products.ListProducts)
			products.GET("/categories", h.Products.ListCategories)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", h.Cart.GetCart)
			cart.DELETE("", h.Cart.ClearCart)
			cart.POST("/items", h.Cart.AddItem)
			cart.PUT("/items/:product_id", h.Cart.SetItem)
		}

		api.POST("/checkout", h.Orders.Checkout)

		orders := api.Group("/orders")
		{
			orders.GET("", h.Orders.ListOrders)
			orders.GET("/export", h.Orders.ExportOrders)
			orders.GET("/:id", h.Orders.GetOrder)
			orders.PUT("/:id/status", h.Orders.UpdateOrderStatus)
		}

		api.GET("/events", h.Events.Stream)
	}

	return r
}
