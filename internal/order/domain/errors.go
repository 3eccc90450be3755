package domain

// InvalidInputError rejects a malformed request. It is raised before any
// resource is reserved, so there is never anything to roll back.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid order request: " + e.Reason
}

var (
	ErrNoRequester       = &InvalidInputError{Reason: "requester identity is required"}
	ErrEmptyOrder        = &InvalidInputError{Reason: "order must contain at least one line"}
	ErrNoShippingAddress = &InvalidInputError{Reason: "shipping address is required"}
)
