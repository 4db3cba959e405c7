package controllers

import (
	"net/http"

	"b2b-storefront/catalog"
	"b2b-storefront/errs"
	"b2b-storefront/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductController struct {
	catalog catalog.Accessor
	logger  *zap.Logger
}

func NewProductController(accessor catalog.Accessor, logger *zap.Logger) *ProductController {
	return &ProductController{catalog: accessor, logger: logger}
}

// ListProducts returns active products matching category, q and brand.
func (h *ProductController) ListProducts(c *gin.Context) {
	var filter models.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, errs.Wrap(err, errs.ErrMsgStorageUnavailable))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products, "total": len(products)})
}

// ListCategories returns the catalog grouped by category, promos last.
func (h *ProductController) ListCategories(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), models.ProductFilter{})
	if err != nil {
		respondError(c, h.logger, errs.Wrap(err, errs.ErrMsgStorageUnavailable))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": catalog.GroupByCategory(products)})
}
