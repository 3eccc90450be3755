package domain

import "fmt"

// NotFoundError reports a coupon code with no matching coupon.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("coupon %q not found", e.Code)
}

// ExhaustedError reports a coupon whose usage limit is already reached.
type ExhaustedError struct {
	Code string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("coupon %q has reached its usage limit", e.Code)
}

// ExpiredError reports a coupon past its expiry date.
type ExpiredError struct {
	Code string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("coupon %q has expired", e.Code)
}
