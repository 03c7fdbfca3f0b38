package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterMenuRoutes(r *gin.Engine, d Deps) {
	r.GET("/menu", func(c *gin.Context) {
		products, err := d.Menu.ListProducts(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	})
}
