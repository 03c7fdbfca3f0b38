package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/live"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
	"github.com/imrishuroy/go-pizza-storefront/internal/validation"
)

// RegisterAdminRoutes registers the staff routes behind AdminAuth.
func RegisterAdminRoutes(r *gin.Engine, d Deps) {
	v := validation.New()
	admin := r.Group("/admin", AdminAuth(d.AdminToken))

	// Reads fail open: a broken table shows an empty board, not an error.
	admin.GET("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()
		list, err := d.Orders.List(ctx)
		if err != nil {
			slog.WarnContext(ctx, "order list unavailable, serving empty board", "error", err)
			list = nil
		}
		byID := make(map[string]orders.Order, len(list))
		for _, o := range list {
			byID[o.ID] = o
		}
		c.JSON(http.StatusOK, gin.H{"orders": byID, "count": len(byID)})
	})

	// One live subscription per connection; every exit path releases it.
	admin.GET("/orders/stream", func(c *gin.Context) {
		ctx := c.Request.Context()

		// Only the newest snapshot matters, so a pending one is replaced.
		snapshots := make(chan live.Snapshot, 1)
		unsubscribe := d.Hub.OnOrdersChanged(ctx, func(s live.Snapshot) {
			for {
				select {
				case snapshots <- s:
					return
				default:
				}
				select {
				case <-snapshots:
				default:
				}
			}
		})
		defer unsubscribe()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snapshots:
				c.SSEvent("orders", s)
				c.Writer.Flush()
			}
		}
	})

	admin.PATCH("/orders/:id/status", func(c *gin.Context) {
		ctx := c.Request.Context()
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		id := c.Param("id")
		status := orders.OrderStatus(req.Status)
		if err := d.Orders.UpdateStatus(ctx, id, status); err != nil {
			writeError(c, err)
			return
		}
		d.touch()
		if err := d.publisher().Publish(ctx, events.StatusChanged(id, status)); err != nil {
			slog.WarnContext(ctx, "publish order.status_changed failed", "order_id", id, "error", err)
		}

		slog.InfoContext(ctx, "order status updated", "order_id", id, "status", status)
		c.JSON(http.StatusOK, gin.H{"orderId": id, "orderStatus": status})
	})
}
