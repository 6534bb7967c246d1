package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with struct-level validation
// registered for the order-create request.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// reject carts that reference the same product twice; quantities
	// belong on one line
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	seen := make(map[string]struct{}, len(req.Lines))
	for _, l := range req.Lines {
		if _, dup := seen[l.ProductID]; dup {
			sl.ReportError(req.Lines, "lines", "Lines", "unique_products", l.ProductID)
			return
		}
		seen[l.ProductID] = struct{}{}
	}
}
