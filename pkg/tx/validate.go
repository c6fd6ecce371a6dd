package tx

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTransaction is returned when a required field is missing or unusable.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Validate checks that every required field is present.
// Amount sufficiency is never checked.
func (t *Transaction) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", ErrInvalidTransaction)
	}
	if t.Sender == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidTransaction)
	}
	if t.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidTransaction)
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidTransaction)
	}
	return nil
}
