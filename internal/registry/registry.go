package registry

import (
	"sort"
	"time"

	"LendLedger/internal/fmath"
	"LendLedger/internal/market"
	"LendLedger/internal/token"
)

// Registry is the collection of listed markets plus the admin set. It
// owns the cross-market view of an account: borrowing power in one
// market backs debt in every other.
//
// Like the markets it holds, a Registry is single-threaded state driven
// by the engine's command loop.
type Registry struct {
	admins  map[token.Address]struct{}
	markets map[string]*market.Market
}

// Liquidity is the cross-market solvency view of one account in USD.
type Liquidity struct {
	Collateral float64 `json:"collateral"`
	Borrow     float64 `json:"borrow"`
}

// New creates a registry whose creator is the first admin.
func New(creator token.Address) *Registry {
	return &Registry{
		admins:  map[token.Address]struct{}{creator: {}},
		markets: make(map[string]*market.Market),
	}
}

func (r *Registry) requireAdmin(caller token.Address) error {
	if _, ok := r.admins[caller]; !ok {
		return ErrAdminRequired
	}
	return nil
}

// AddAdmin grants admin rights. Admin only.
func (r *Registry) AddAdmin(caller, admin token.Address) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	r.admins[admin] = struct{}{}
	return nil
}

// IsAdmin reports whether addr holds admin rights.
func (r *Registry) IsAdmin(addr token.Address) bool {
	_, ok := r.admins[addr]
	return ok
}

// AddMarket lists a new market under name. Admin only; names are unique.
func (r *Registry) AddMarket(caller token.Address, name string, priceUSD float64, custody token.Address, ledger token.AssetLedger, now time.Time) (*market.Market, error) {
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, ok := r.markets[name]; ok {
		return nil, ErrMarketAlreadyListed
	}

	mkt := market.New(name, priceUSD, custody, ledger, now)
	r.markets[name] = mkt
	return mkt, nil
}

// Market returns the named market or ErrMarketNotListed.
func (r *Registry) Market(name string) (*market.Market, error) {
	mkt, ok := r.markets[name]
	if !ok {
		return nil, ErrMarketNotListed
	}
	return mkt, nil
}

// MarketNames lists all markets in a stable order.
func (r *Registry) MarketNames() []string {
	names := make([]string, 0, len(r.markets))
	for name := range r.markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChangePriceOracle sets a market's USD price. Admin only.
func (r *Registry) ChangePriceOracle(caller token.Address, name string, priceUSD float64) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	mkt, err := r.Market(name)
	if err != nil {
		return err
	}
	mkt.PriceUSD = priceUSD
	return nil
}

// ChangeCollateralFactor sets a market's collateral factor. Admin only.
func (r *Registry) ChangeCollateralFactor(caller token.Address, name string, factor float64) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	mkt, err := r.Market(name)
	if err != nil {
		return err
	}
	mkt.CollateralFactor = factor
	return nil
}

// AccountLiquidity sums an account's collateral value and borrow value
// across every listed market. Markets where the account holds no
// position contribute zero to both sides.
func (r *Registry) AccountLiquidity(account token.Address) Liquidity {
	var liq Liquidity
	for _, mkt := range r.markets {
		liq.Collateral += mkt.CollateralValueOf(account)
		liq.Borrow += mkt.BorrowValueOf(account)
	}
	return liq
}

// HypotheticalLiquidity is AccountLiquidity with an extra takeout of the
// named market's asset counted on the borrow side. The takeout market
// must be listed.
func (r *Registry) HypotheticalLiquidity(account token.Address, takeoutMarket string, takeoutAmount float64) (Liquidity, error) {
	mkt, err := r.Market(takeoutMarket)
	if err != nil {
		return Liquidity{}, err
	}
	liq := r.AccountLiquidity(account)
	liq.Borrow += mkt.PriceUSD * takeoutAmount
	return liq, nil
}

// checkCollateral fails with the USD shortfall when a takeout of amount
// from the named market would leave the account undercollateralized. A
// takeout that lands exactly on the limit passes, float noise included.
// No state changes on failure.
func (r *Registry) checkCollateral(account token.Address, name string, amount float64) error {
	liq, err := r.HypotheticalLiquidity(account, name, amount)
	if err != nil {
		return err
	}
	if liq.Collateral < liq.Borrow && !fmath.ApproxEqual(liq.Collateral, liq.Borrow) {
		return &InsufficientCollateralError{Shortfall: liq.Borrow - liq.Collateral}
	}
	return nil
}

// Mint supplies underlying to the named market on behalf of account.
// Returns the claim tokens minted.
func (r *Registry) Mint(account token.Address, name string, amount float64, now time.Time) (float64, error) {
	mkt, err := r.Market(name)
	if err != nil {
		return 0, err
	}
	return mkt.Mint(account, amount, now)
}

// Redeem pays underlying out of the named market, gated on cross-market
// solvency since the redeemed tokens stop backing the account's debt.
// Returns the claim tokens burned.
func (r *Registry) Redeem(account token.Address, name string, amount float64, now time.Time) (float64, error) {
	if err := r.checkCollateral(account, name, amount); err != nil {
		return 0, err
	}
	return r.markets[name].Redeem(account, amount, now)
}

// Borrow lends pool cash to account, gated on cross-market solvency.
func (r *Registry) Borrow(account token.Address, name string, amount float64, now time.Time) error {
	if err := r.checkCollateral(account, name, amount); err != nil {
		return err
	}
	return r.markets[name].Borrow(account, amount, now)
}

// RepayBorrow pays down account's debt in the named market.
func (r *Registry) RepayBorrow(account token.Address, name string, amount float64, now time.Time) error {
	mkt, err := r.Market(name)
	if err != nil {
		return err
	}
	return mkt.RepayBorrow(account, amount, now)
}

// AccrueAll folds accrued interest into every market. Used by the
// engine before taking a snapshot.
func (r *Registry) AccrueAll(now time.Time) error {
	for _, name := range r.MarketNames() {
		if err := r.markets[name].AccrueInterest(now); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is the serializable registry state. Markets carry their own
// books; external ledger bindings are re-attached on restore.
type Snapshot struct {
	Admins  []token.Address           `json:"admins"`
	Markets map[string]*market.Market `json:"markets"`
}

// Snapshot captures the full registry state.
func (r *Registry) Snapshot() Snapshot {
	admins := make([]token.Address, 0, len(r.admins))
	for addr := range r.admins {
		admins = append(admins, addr)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i] < admins[j] })

	markets := make(map[string]*market.Market, len(r.markets))
	for name, mkt := range r.markets {
		markets[name] = mkt
	}
	return Snapshot{Admins: admins, Markets: markets}
}

// Restore rebuilds a registry from a snapshot, binding every market to
// the given ledger.
func Restore(snap Snapshot, ledger token.AssetLedger) *Registry {
	r := &Registry{
		admins:  make(map[token.Address]struct{}, len(snap.Admins)),
		markets: make(map[string]*market.Market, len(snap.Markets)),
	}
	for _, addr := range snap.Admins {
		r.admins[addr] = struct{}{}
	}
	for name, mkt := range snap.Markets {
		mkt.AttachLedger(ledger)
		r.markets[name] = mkt
	}
	return r
}
