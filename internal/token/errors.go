package token

import (
	"errors"
	"fmt"
)

// ErrAdminRequired is returned when a non-admin calls an admin-only
// token operation.
var ErrAdminRequired = errors.New("token: admin privileges required")

// InsufficientFundsError reports a transfer that exceeds the source
// address's balance.
type InsufficientFundsError struct {
	Addr Address
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("token: insufficient funds for transfer from %s", e.Addr)
}

// NoAllowanceError reports a delegated transfer with no approval in place.
type NoAllowanceError struct {
	Owner   Address
	Spender Address
}

func (e *NoAllowanceError) Error() string {
	return fmt.Sprintf("token: %s has no allowance from %s", e.Spender, e.Owner)
}

// ExceedsAllowanceError reports a delegated transfer larger than the
// remaining approval.
type ExceedsAllowanceError struct {
	Amount    float64
	Allowance float64
}

func (e *ExceedsAllowanceError) Error() string {
	return fmt.Sprintf("token: transfer request %v exceeds allowance %v", e.Amount, e.Allowance)
}
