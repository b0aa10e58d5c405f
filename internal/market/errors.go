package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAccount is returned by operations that require an existing
	// position for the caller in this market.
	ErrNoAccount = errors.New("market: no account found")

	// ErrAccountAlreadyOpened guards against double-opening a position.
	ErrAccountAlreadyOpened = errors.New("market: account is already opened")

	// ErrInsufficientCash means the market's live asset balance cannot
	// cover the requested amount.
	ErrInsufficientCash = errors.New("market: insufficient cash to pay out")

	// ErrInsufficientSupply means a redeem would burn more claim tokens
	// than exist across the whole pool.
	ErrInsufficientSupply = errors.New("market: insufficient claim-token supply")

	// ErrTimeWentBackwards is returned when the clock reads earlier than
	// the last accrual checkpoint.
	ErrTimeWentBackwards = errors.New("market: time calculation went wrong")

	// ErrLiquidationUnsupported is returned by Liquidate.
	ErrLiquidationUnsupported = errors.New("market: liquidation is not supported")
)

// InsufficientUnderlyingError reports a redeem larger than the caller's
// recorded underlying claim, independent of pool-wide liquidity.
type InsufficientUnderlyingError struct {
	Underlying float64
}

func (e *InsufficientUnderlyingError) Error() string {
	return fmt.Sprintf("market: insufficient underlying asset, you have %v", e.Underlying)
}
