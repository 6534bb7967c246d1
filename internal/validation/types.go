package validation

// LineRequest is a single requested cart line. Prices never come from
// the client; only the product reference and quantity are accepted.
type LineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	Lines []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CancelOrderRequest is the payload for PATCH /orders/:id/cancel-request.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// UpdateStatusRequest is the payload for PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new process done error"`
}
