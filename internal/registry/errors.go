package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrAdminRequired guards the admin-only registry operations.
	ErrAdminRequired = errors.New("registry: admin privileges required")

	// ErrMarketAlreadyListed is returned when listing a market under a
	// name that is already taken.
	ErrMarketAlreadyListed = errors.New("registry: market is already listed")

	// ErrMarketNotListed is returned when an operation names an unknown
	// market.
	ErrMarketNotListed = errors.New("registry: market is not listed")
)

// InsufficientCollateralError reports a borrow or redeem that would push
// the account's cross-market debt past its borrowing power. Shortfall is
// the USD gap.
type InsufficientCollateralError struct {
	Shortfall float64
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("registry: insufficient collateral, short %v USD", e.Shortfall)
}
