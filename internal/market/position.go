package market

import (
	"time"

	"LendLedger/internal/token"
)

// Position is one account's standing in a single market: the underlying
// it has supplied, the claim tokens minted against it, and what it has
// borrowed from the pool.
type Position struct {
	UnderlyingAsset float64   `json:"underlying_asset"`
	ClaimTokens     float64   `json:"claim_tokens"`
	BorrowedAsset   float64   `json:"borrowed_asset"`
	LastCheckpoint  time.Time `json:"last_checkpoint"`
}

// openPosition registers a fresh position for addr. It is an error to
// open an address that already holds one.
func (m *Market) openPosition(addr token.Address, pos *Position) error {
	if _, ok := m.Positions[addr]; ok {
		return ErrAccountAlreadyOpened
	}
	m.Positions[addr] = pos
	return nil
}

// Position returns the position for addr, or nil when none exists.
func (m *Market) Position(addr token.Address) *Position {
	return m.Positions[addr]
}
