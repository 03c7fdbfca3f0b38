package orders

import (
	"time"

	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
)

// Order is the item stored in the orders table. Apart from the two status
// fields a record is never modified after creation.
type Order struct {
	ID            string        `dynamodbav:"id" json:"id"` // PK, assigned on create
	Items         []cart.Item   `dynamodbav:"items" json:"items"`
	Total         float64       `dynamodbav:"total" json:"total"`
	PaymentStatus PaymentStatus `dynamodbav:"paymentStatus" json:"paymentStatus"`
	OrderStatus   OrderStatus   `dynamodbav:"orderStatus" json:"orderStatus"`
	CreatedAt     time.Time     `dynamodbav:"createdAt" json:"createdAt"`
}
