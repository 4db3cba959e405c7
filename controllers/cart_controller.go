package controllers

import (
	"net/http"

	"b2b-storefront/cart"
	"b2b-storefront/checkout"
	"b2b-storefront/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartController struct {
	carts    cart.Store
	workflow *checkout.Workflow
	logger   *zap.Logger
}

func NewCartController(carts cart.Store, workflow *checkout.Workflow, logger *zap.Logger) *CartController {
	return &CartController{carts: carts, workflow: workflow, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type setItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the caller's cart priced, with the minimum purchase status.
func (h *CartController) GetCart(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	summary, items, err := h.workflow.Quote(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	minimum := h.workflow.Minimum()
	c.JSON(http.StatusOK, gin.H{
		"items":          items,
		"resumen":        summary,
		"minimo":         minimum,
		"alcanza_minimo": !summary.TotalWithDiscount.LessThan(minimum),
	})
}

// AddItem adds quantity units of a product to the cart.
func (h *CartController) AddItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.ErrMsgProductIDRequired})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	items, err := h.carts.Add(c.Request.Context(), actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, errs.Wrap(err, errs.ErrMsgStorageUnavailable))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SetItem stores an exact quantity; zero or less removes the product.
func (h *CartController) SetItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req setItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.ErrMsgInvalidQuantity})
		return
	}
	items, err := h.carts.Set(c.Request.Context(), actor.ID, c.Param("product_id"), req.Quantity)
	if err != nil {
		respondError(c, h.logger, errs.Wrap(err, errs.ErrMsgStorageUnavailable))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *CartController) ClearCart(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), actor.ID); err != nil {
		respondError(c, h.logger, errs.Wrap(err, errs.ErrMsgStorageUnavailable))
		return
	}
	c.Status(http.StatusNoContent)
}
