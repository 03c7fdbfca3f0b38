package validation

// AddCartItemRequest is the payload for POST /cart/items. Name and price come
// from the menu, never from the client.
type AddCartItemRequest struct {
	PizzaID string `json:"pizzaId" validate:"required,max=128"`
}

// UpdateStatusRequest is the payload for PATCH /admin/orders/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}
