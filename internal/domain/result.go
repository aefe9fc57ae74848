package domain

// MutationResult is the outcome of one mutation. A result is either a success
// carrying the updated quantity or a failure carrying the ordered errors.
// Snapshot is set whenever the cart exists after the mutation.
type MutationResult struct {
	Success  bool             `json:"success"`
	CartID   string           `json:"cart_id,omitempty"`
	Quantity int              `json:"quantity"`
	Failures ValidationErrors `json:"errors,omitempty"`
	Snapshot *Snapshot        `json:"cart,omitempty"`
}

// Errors returns the validation errors of the mutation, in the order found.
func (r MutationResult) Errors() ValidationErrors {
	return r.Failures
}

func Succeeded(cartID string, quantity int, snapshot *Snapshot) MutationResult {
	return MutationResult{Success: true, CartID: cartID, Quantity: quantity, Snapshot: snapshot}
}

func Failed(cartID string, quantity int, errs ValidationErrors, snapshot *Snapshot) MutationResult {
	return MutationResult{CartID: cartID, Quantity: quantity, Failures: errs, Snapshot: snapshot}
}
