package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

// New returns a validator with the order_status tag registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	_ = v.RegisterValidation("order_status", orderStatus)
	return v
}

func orderStatus(fl validatorv10.FieldLevel) bool {
	return orders.OrderStatus(fl.Field().String()).Valid()
}
