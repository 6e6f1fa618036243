package domain

import "errors"

var (
	ErrNameRequired      = errors.New("customer name is required")
	ErrNameTooLong       = errors.New("customer name exceeds 128 characters")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrCurrencyInvalid   = errors.New("currency must be three uppercase letters")

	// ErrOrderNotFound is returned on a lookup miss.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists is returned when an insert would overwrite an existing order.
	ErrOrderExists = errors.New("order already exists")
	// ErrQueuePublish reports a failed submission to the orders queue. The
	// order itself is already stored when this is returned.
	ErrQueuePublish = errors.New("orders queue publish failed")
)

// IsValidation reports whether err is one of the order-input violations.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNameTooLong) ||
		errors.Is(err, ErrAmountNotPositive) ||
		errors.Is(err, ErrCurrencyInvalid)
}
