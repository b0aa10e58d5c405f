package market

import (
	"time"

	"LendLedger/internal/fmath"
	"LendLedger/internal/token"
)

const (
	// InitialExchangeRate prices claim tokens before any supply exists.
	InitialExchangeRate = 0.02

	// BaseBorrowRate is the annual borrow rate at zero utilization.
	BaseBorrowRate = 0.025

	// RateSlope is the extra annual borrow rate per unit of utilization.
	RateSlope = 0.2

	// DefaultCollateralFactor discounts supplied value when counting it
	// as borrowing power.
	DefaultCollateralFactor = 0.75
)

// Market is a single-asset lending pool. Supplied assets sit in the
// custody address on the external ledger; the market tracks per-account
// positions, the claim-token supply, and the outstanding lent total.
//
// A Market is not safe for concurrent use. All mutation is expected to
// flow through the engine's single command loop.
type Market struct {
	Name             string                      `json:"name"`
	Custody          token.Address               `json:"custody"`
	TotalLent        float64                     `json:"total_lent"`
	TotalSupply      float64                     `json:"total_supply"`
	CollateralFactor float64                     `json:"collateral_factor"`
	PriceUSD         float64                     `json:"price_usd"`
	LastCheckpoint   time.Time                   `json:"last_checkpoint"`
	Positions        map[token.Address]*Position `json:"positions"`

	ledger token.AssetLedger
}

// Rates is a point-in-time view of the market's derived quantities.
type Rates struct {
	Cash         float64 `json:"cash"`
	ExchangeRate float64 `json:"exchange_rate"`
	Utilization  float64 `json:"utilization"`
	BorrowRate   float64 `json:"borrow_rate"`
	EarnRate     float64 `json:"earn_rate"`
}

// New creates an empty market backed by ledger, with interest accrual
// anchored at now.
func New(name string, priceUSD float64, custody token.Address, ledger token.AssetLedger, now time.Time) *Market {
	return &Market{
		Name:             name,
		Custody:          custody,
		CollateralFactor: DefaultCollateralFactor,
		PriceUSD:         priceUSD,
		LastCheckpoint:   now,
		Positions:        make(map[token.Address]*Position),
		ledger:           ledger,
	}
}

// AttachLedger rebinds the external asset ledger after a snapshot restore.
func (m *Market) AttachLedger(ledger token.AssetLedger) {
	m.ledger = ledger
	if m.Positions == nil {
		m.Positions = make(map[token.Address]*Position)
	}
}

// Cash is the market's live balance on the external ledger.
func (m *Market) Cash() float64 {
	return m.ledger.BalanceOf(m.Custody)
}

// ExchangeRate is the price of one claim token in underlying units.
// Before any supply exists, or when the pool holds nothing at all, it
// is pinned to InitialExchangeRate so claim math never divides by a
// zero-value pool.
func (m *Market) ExchangeRate() float64 {
	cash := m.Cash()
	if fmath.ApproxZero(m.TotalSupply) || (fmath.ApproxZero(cash) && fmath.ApproxZero(m.TotalLent)) {
		return InitialExchangeRate
	}
	return (cash + m.TotalLent) / m.TotalSupply
}

// UtilizationRatio is the lent share of the pool, zero when nothing is
// lent out.
func (m *Market) UtilizationRatio() float64 {
	if fmath.ApproxZero(m.TotalLent) {
		return 0
	}
	return m.TotalLent / (m.TotalLent + m.Cash())
}

// BorrowRate is the annual rate charged to borrowers, linear in
// utilization.
func (m *Market) BorrowRate() float64 {
	return BaseBorrowRate + RateSlope*m.UtilizationRatio()
}

// EarnRate is the annual rate earned by suppliers.
func (m *Market) EarnRate() float64 {
	return m.BorrowRate() * m.UtilizationRatio()
}

// CurrentRates captures all derived quantities at once.
func (m *Market) CurrentRates() Rates {
	return Rates{
		Cash:         m.Cash(),
		ExchangeRate: m.ExchangeRate(),
		Utilization:  m.UtilizationRatio(),
		BorrowRate:   m.BorrowRate(),
		EarnRate:     m.EarnRate(),
	}
}

// AccrueInterest folds interest earned since the last checkpoint into
// TotalLent. Interest that is indistinguishable from zero leaves the
// checkpoint untouched so short gaps still compound later.
func (m *Market) AccrueInterest(now time.Time) error {
	elapsed := now.Sub(m.LastCheckpoint)
	if elapsed < 0 {
		return ErrTimeWentBackwards
	}

	interest := m.TotalLent * m.BorrowRate() * fmath.YearFraction(elapsed)
	if fmath.ApproxZero(interest) {
		return nil
	}

	m.TotalLent += interest
	m.LastCheckpoint = now
	return nil
}

// Mint supplies amount of underlying from account and credits claim
// tokens at the pre-transfer exchange rate. The asset transfer happens
// before any book mutation, so a failed transfer leaves the market
// untouched.
func (m *Market) Mint(account token.Address, amount float64, now time.Time) (float64, error) {
	if err := m.AccrueInterest(now); err != nil {
		return 0, err
	}

	minted := amount / m.ExchangeRate()

	if _, err := m.ledger.Transfer(account, m.Custody, amount); err != nil {
		return 0, err
	}

	pos := m.Positions[account]
	if pos == nil {
		pos = &Position{}
		if err := m.openPosition(account, pos); err != nil {
			return 0, err
		}
	}
	pos.UnderlyingAsset += amount
	pos.ClaimTokens += minted
	pos.LastCheckpoint = now
	m.TotalSupply += minted

	return minted, nil
}

// Redeem burns claim tokens worth amount of underlying and pays the
// underlying back to account. All validation runs before the transfer;
// the books only change once the payout has succeeded.
func (m *Market) Redeem(account token.Address, amount float64, now time.Time) (float64, error) {
	if err := m.AccrueInterest(now); err != nil {
		return 0, err
	}

	burned := amount / m.ExchangeRate()
	if m.TotalSupply < burned {
		return 0, ErrInsufficientSupply
	}
	if m.Cash() < amount {
		return 0, ErrInsufficientCash
	}
	pos := m.Positions[account]
	if pos == nil {
		return 0, ErrNoAccount
	}
	if pos.UnderlyingAsset < amount {
		return 0, &InsufficientUnderlyingError{Underlying: pos.UnderlyingAsset}
	}

	if _, err := m.ledger.Transfer(m.Custody, account, amount); err != nil {
		return 0, err
	}

	pos.UnderlyingAsset -= amount
	pos.ClaimTokens -= burned
	pos.LastCheckpoint = now
	m.TotalSupply -= burned

	return burned, nil
}

// Borrow lends amount of pool cash to account. Collateral sufficiency
// is the registry's concern; the market only checks liquidity.
func (m *Market) Borrow(account token.Address, amount float64, now time.Time) error {
	if err := m.AccrueInterest(now); err != nil {
		return err
	}
	if m.Cash() < amount {
		return ErrInsufficientCash
	}

	if _, err := m.ledger.Transfer(m.Custody, account, amount); err != nil {
		return err
	}

	pos := m.Positions[account]
	if pos == nil {
		pos = &Position{}
		if err := m.openPosition(account, pos); err != nil {
			return err
		}
	}
	pos.BorrowedAsset += amount
	pos.LastCheckpoint = now
	m.TotalLent += amount

	return nil
}

// RepayBorrow returns amount of underlying from account to the pool and
// reduces the account's debt by the same amount. The debt is not floored
// at zero; overpaying drives it negative.
func (m *Market) RepayBorrow(account token.Address, amount float64, now time.Time) error {
	if err := m.AccrueInterest(now); err != nil {
		return err
	}
	pos := m.Positions[account]
	if pos == nil {
		return ErrNoAccount
	}

	if _, err := m.ledger.Transfer(account, m.Custody, amount); err != nil {
		return err
	}

	pos.BorrowedAsset -= amount
	pos.LastCheckpoint = now
	m.TotalLent -= amount

	return nil
}

// Liquidate is declared for API completeness but not supported.
// Undercollateralized positions stay on the books until the owner
// repays.
func (m *Market) Liquidate(liquidator, account token.Address, amount float64, now time.Time) error {
	return ErrLiquidationUnsupported
}

// CollateralValueOf is the USD borrowing power of an account's supplied
// claim tokens, discounted by the collateral factor. Accounts without a
// position contribute zero.
func (m *Market) CollateralValueOf(account token.Address) float64 {
	pos := m.Positions[account]
	if pos == nil {
		return 0
	}
	return m.CollateralFactor * m.ExchangeRate() * m.PriceUSD * pos.ClaimTokens
}

// BorrowValueOf is the USD value of an account's outstanding debt.
func (m *Market) BorrowValueOf(account token.Address) float64 {
	pos := m.Positions[account]
	if pos == nil {
		return 0
	}
	return m.PriceUSD * pos.BorrowedAsset
}
