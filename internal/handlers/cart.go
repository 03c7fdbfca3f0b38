package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/validation"
)

type cartView struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total float64     `json:"total"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{Items: c.Items(), Count: c.Len(), Total: c.Total().InexactFloat64()}
}

func RegisterCartRoutes(r *gin.Engine, d Deps) {
	v := validation.New()

	r.GET("/cart", func(c *gin.Context) {
		ct, err := d.Carts.Load(c.Request.Context(), session(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(ct))
	})

	// Name and price are taken from the menu at the time of adding.
	r.POST("/cart/items", func(c *gin.Context) {
		ctx := c.Request.Context()
		var req validation.AddCartItemRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		p, err := d.Menu.Product(ctx, req.PizzaID)
		if err != nil {
			writeError(c, err)
			return
		}
		ct, err := d.Carts.Add(ctx, session(c), cart.Item{
			PizzaID: p.ID,
			Name:    p.Name,
			Qty:     1,
			Price:   p.BasePrice,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, viewOf(ct))
	})

	r.DELETE("/cart/items/:index", func(c *gin.Context) {
		idx, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			writeError(c, errors.Join(cart.ErrOutOfRange, err))
			return
		}
		ct, err := d.Carts.Remove(c.Request.Context(), session(c), idx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(ct))
	})

	r.DELETE("/cart", func(c *gin.Context) {
		if err := d.Carts.Clear(c.Request.Context(), session(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
