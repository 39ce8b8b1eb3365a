package cart

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock           = errors.New("product out of stock")
	ErrStockExceeded        = errors.New("not enough stock available")
	ErrLineNotFound         = errors.New("product is not in the cart")
	ErrEmptyCart            = errors.New("add products to the cart")
	ErrMissingCustomerName  = errors.New("customer name is required")
	ErrInvalidTaxID         = errors.New("invalid tax id, expected format XXXX######XXX")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrBusy                 = errors.New("checkout submission in progress")
)

const genericSubmissionMessage = "could not complete the sale"

// SubmissionError is returned by Session.Submit when the sales collaborator
// rejects the sale. The cart is left untouched so the user can retry.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// userMessager is implemented by collaborator errors that carry text meant to
// be shown verbatim.
type userMessager interface {
	UserMessage() string
}

func newSubmissionError(err error) *SubmissionError {
	msg := genericSubmissionMessage
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		msg = um.UserMessage()
	}
	return &SubmissionError{Message: msg, Err: err}
}

func stockExceeded(available int) error {
	return fmt.Errorf("%w: max available %d", ErrStockExceeded, available)
}
