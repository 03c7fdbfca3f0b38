package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterCheckoutRoutes(r *gin.Engine, d Deps) {
	r.GET("/checkout", func(c *gin.Context) {
		ct, err := d.Carts.Load(c.Request.Context(), session(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": viewOf(ct), "canCheckout": !ct.IsEmpty()})
	})

	r.POST("/checkout", func(c *gin.Context) {
		res, err := d.Checkout.Place(c.Request.Context(), session(c), c.GetHeader("Idempotency-Key"))
		if err != nil {
			writeError(c, err)
			return
		}

		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
			c.Header("Idempotent-Replayed", "true")
		} else {
			d.touch()
		}
		c.Header("Location", fmt.Sprintf("/admin/orders/%s", res.Order.ID))
		c.JSON(status, gin.H{
			"orderId":     res.Order.ID,
			"total":       res.Order.Total,
			"orderStatus": res.Order.OrderStatus,
		})
	})
}
