// Package handlers is the storefront's HTTP surface.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/catalog"
	"github.com/imrishuroy/go-pizza-storefront/internal/checkout"
	"github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/live"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

// ChangeNotifier is told about order writes made by this process. Nil when a
// change stream already covers them.
type ChangeNotifier interface {
	Touch()
}

// Deps groups what the route handlers need.
type Deps struct {
	Menu       *catalog.Reader
	Carts      *cart.Store
	Checkout   *checkout.Service
	Orders     *orders.Store
	Hub        *live.Hub
	Publisher  events.Publisher
	Changes    ChangeNotifier
	AdminToken string
}

func (d Deps) touch() {
	if d.Changes != nil {
		d.Changes.Touch()
	}
}

func (d Deps) publisher() events.Publisher {
	if d.Publisher == nil {
		return events.Nop{}
	}
	return d.Publisher
}

// RegisterRoutes mounts every storefront and admin route on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	RegisterMenuRoutes(r, d)
	RegisterCartRoutes(r, d)
	RegisterCheckoutRoutes(r, d)
	RegisterAdminRoutes(r, d)
}
