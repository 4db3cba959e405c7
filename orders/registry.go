// Package orders tracks placed orders: who may see them, the admin status
// workflow and the flat export of their lines.
package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"b2b-storefront/auth"
	"b2b-storefront/errs"
	"b2b-storefront/events"
	"b2b-storefront/models"

	"go.uber.org/zap"
)

type Registry struct {
	repo      Repository
	publisher events.Publisher
	logger    *zap.Logger
}

func NewRegistry(repo Repository, publisher events.Publisher, logger *zap.Logger) *Registry {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{repo: repo, publisher: publisher, logger: logger}
}

// List returns the orders the actor may see, newest first. Admins see every
// order annotated with the customer handle; customers only their own.
func (r *Registry) List(ctx context.Context, actor auth.Actor, statusFilter string) ([]models.Order, error) {
	if !actor.Authenticated() {
		return nil, errs.NewUnauthenticated(errs.ErrMsgActorRequired)
	}
	status, ok := models.ParseStatusFilter(statusFilter)
	if !ok {
		return nil, errs.NewInvalidArgument(errs.ErrMsgInvalidStatus)
	}

	q := Query{Status: status}
	if !auth.CanManageOrders(actor) {
		q.CustomerID = actor.ID
	}
	list, err := r.repo.List(ctx, q)
	if err != nil {
		r.logger.Error("list orders failed", zap.String("actor", actor.ID), zap.Error(err))
		return nil, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	for i := range list {
		list[i].StatusLabel = list[i].Status.Label()
		if !auth.CanManageOrders(actor) {
			list[i].CustomerHandle = ""
		}
	}
	return list, nil
}

// Get returns one order if the actor may see it. Orders of other customers
// look missing.
func (r *Registry) Get(ctx context.Context, actor auth.Actor, id int64) (models.Order, error) {
	if !actor.Authenticated() {
		return models.Order{}, errs.NewUnauthenticated(errs.ErrMsgActorRequired)
	}
	o, err := r.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return models.Order{}, errs.NewNotFound(errs.ErrMsgOrderNotFound)
	}
	if err != nil {
		r.logger.Error("get order failed", zap.Int64("order_id", id), zap.Error(err))
		return models.Order{}, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}
	if !auth.CanSeeOrder(actor, o.CustomerID) {
		return models.Order{}, errs.NewNotFound(errs.ErrMsgOrderNotFound)
	}
	o.StatusLabel = o.Status.Label()
	if !auth.CanManageOrders(actor) {
		o.CustomerHandle = ""
	}
	return o, nil
}

// SetStatus changes an order's status. Any of the known statuses may be set
// at any time, in any direction; only admins may do it. Last write wins.
func (r *Registry) SetStatus(ctx context.Context, actor auth.Actor, id int64, status models.OrderStatus) (models.Order, error) {
	if !auth.CanManageOrders(actor) {
		return models.Order{}, errs.NewPermissionDenied(errs.ErrMsgNotAdmin)
	}
	if !status.Valid() {
		return models.Order{}, errs.NewInvalidArgument(errs.ErrMsgInvalidStatus)
	}

	err := r.repo.UpdateStatus(ctx, id, status)
	if errors.Is(err, ErrNotFound) {
		return models.Order{}, errs.NewNotFound(errs.ErrMsgOrderNotFound)
	}
	if err != nil {
		r.logger.Error("update order status failed", zap.Int64("order_id", id), zap.String("status", string(status)), zap.Error(err))
		return models.Order{}, errs.Wrap(err, errs.ErrMsgStorageUnavailable)
	}

	o, err := r.Get(ctx, actor, id)
	if err != nil {
		return models.Order{}, err
	}
	r.logger.Info("order status updated", zap.Int64("order_id", id), zap.String("status", string(status)), zap.String("by", actor.ID))

	ev := events.New(events.TopicOrders, events.TypeOrderStatusUpdated, o.CustomerID, OrderEvent(o, events.TypeOrderStatusUpdated))
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.logger.Warn("publish status event failed", zap.Int64("order_id", id), zap.Error(err))
	}
	return o, nil
}

// ExportRows flattens every line of the orders the actor sees under the
// filter into one row each.
func (r *Registry) ExportRows(ctx context.Context, actor auth.Actor, statusFilter string) ([]models.ExportRow, error) {
	list, err := r.List(ctx, actor, statusFilter)
	if err != nil {
		return nil, err
	}
	var rows []models.ExportRow
	for _, o := range list {
		customer := o.CustomerHandle
		if customer == "" {
			customer = o.CustomerID
		}
		for _, l := range o.Lines {
			rows = append(rows, models.ExportRow{
				Customer:  customer,
				Article:   l.Article,
				Quantity:  l.Quantity,
				Subtotal:  l.Subtotal,
				Status:    o.Status,
				CreatedAt: o.CreatedAt,
			})
		}
	}
	return rows, nil
}

// OrderEvent builds the broker/notification payload for o.
func OrderEvent(o models.Order, typ string) models.OrderEvent {
	return models.OrderEvent{
		ID:         strconv.FormatInt(o.ID, 10) + ":" + typ,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Type:       typ,
		Status:     o.Status,
		Total:      o.Total.String(),
		Occurred:   time.Now(),
	}
}
