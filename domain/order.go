package domain

import "time"

const maxCustomerNameLength = 128

// OrderInput carries the caller-supplied fields of a new order.
type OrderInput struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Validate checks the order-input invariants. It returns the first violation
// so the boundary can reject the request before any state is touched.
func (in OrderInput) Validate() error {
	if in.Name == "" {
		return ErrNameRequired
	}
	if len(in.Name) > maxCustomerNameLength {
		return ErrNameTooLong
	}
	if in.Amount <= 0 {
		return ErrAmountNotPositive
	}
	if !validCurrency(in.Currency) {
		return ErrCurrencyInvalid
	}
	return nil
}

// validCurrency requires exactly three uppercase ASCII letters.
func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// Order is the stored representation of a customer order. Orders are created
// once and never mutated afterwards.
type Order struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}
