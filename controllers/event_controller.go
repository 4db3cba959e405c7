package controllers

import (
	"time"

	"b2b-storefront/auth"
	"b2b-storefront/events"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

type EventController struct {
	source    events.Source
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewEventController(source events.Source, logger *zap.Logger) *EventController {
	return &EventController{source: source, logger: logger, heartbeat: heartbeatInterval}
}

// filterFor selects what a caller may see: its own cart and order events,
// and every order event for admins.
func filterFor(actor auth.Actor) events.Filter {
	own := events.Owner(actor.ID)
	if auth.CanManageOrders(actor) {
		return events.Any(own, events.Topic(events.TopicOrders))
	}
	return own
}

// Stream sends the caller's events as Server-Sent Events until the client
// goes away.
func (h *EventController) Stream(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	sub := h.source.Subscribe(filterFor(actor))
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed", zap.String("actor", actor.ID))
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent(ev.Topic+"."+ev.Type, ev)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}
