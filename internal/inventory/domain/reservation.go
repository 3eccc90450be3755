package domain

import "github.com/shopspring/decimal"

// Reservation is an opaque hold on a quantity of one product. The unit price
// is the one read in the same atomic step that decremented stock, so pricing
// always uses the price the hold was granted at.
type Reservation struct {
	Token       string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}
