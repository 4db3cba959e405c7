package controllers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"b2b-storefront/checkout"
	"b2b-storefront/errs"
	"b2b-storefront/export"
	"b2b-storefront/middlewares"
	"b2b-storefront/models"
	"b2b-storefront/orders"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeader lets clients retry a checkout without placing it twice.
const IdempotencyHeader = "Idempotency-Key"

type OrderController struct {
	workflow *checkout.Workflow
	registry *orders.Registry
	loc      *time.Location
	logger   *zap.Logger
}

func NewOrderController(workflow *checkout.Workflow, registry *orders.Registry, loc *time.Location, logger *zap.Logger) *OrderController {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderController{workflow: workflow, registry: registry, loc: loc, logger: logger}
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"estado" binding:"required"`
}

// recordOutcome counts the request under the code of the error that ended
// it. Rejections written without an error are classified by status.
func recordOutcome(c *gin.Context, operation string) {
	var err error
	if last := c.Errors.Last(); last != nil {
		err = last.Err
	} else if status := c.Writer.Status(); status == http.StatusUnauthorized {
		err = errs.NewUnauthenticated(errs.ErrMsgActorRequired)
	} else if status >= http.StatusBadRequest {
		err = errs.NewInvalidArgument(http.StatusText(status))
	}
	middlewares.RecordOrderOperation(operation, err)
}

// Checkout places the caller's cart as an order.
func (h *OrderController) Checkout(c *gin.Context) {
	defer recordOutcome(c, "checkout")
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	res, err := h.workflow.Checkout(c.Request.Context(), actor, c.GetHeader(IdempotencyHeader))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// ListOrders returns the orders visible to the caller, optionally by status.
func (h *OrderController) ListOrders(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.registry.List(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

func (h *OrderController) GetOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.ErrMsgInvalidOrderID})
		return
	}
	o, err := h.registry.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

// UpdateOrderStatus lets an admin move an order to any known status.
func (h *OrderController) UpdateOrderStatus(c *gin.Context) {
	defer recordOutcome(c, "update_status")
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.ErrMsgInvalidOrderID})
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.ErrMsgInvalidStatus})
		return
	}

	o, err := h.registry.SetStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

// ExportOrders downloads the visible order lines as an .xlsx file.
func (h *OrderController) ExportOrders(c *gin.Context) {
	defer recordOutcome(c, "export")
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	rows, err := h.registry.ExportRows(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, rows, h.loc); err != nil {
		respondError(c, h.logger, errs.Wrap(err, "Could not build the export"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(time.Now().In(h.loc))+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
