package token

import (
	"github.com/google/uuid"
)

// Address identifies an account on the asset ledger. Market custody
// accounts use the same address space as users.
type Address string

// Receipt records a completed transfer.
type Receipt struct {
	ID     uuid.UUID `json:"id"`
	From   Address   `json:"from"`
	To     Address   `json:"to"`
	Amount float64   `json:"amount"`
}

// AssetLedger is the external collaborator that holds real asset
// balances. The lending core treats any non-nil error as a hard failure
// of the enclosing operation.
type AssetLedger interface {
	// Transfer moves amount from one address to another, failing with
	// *InsufficientFundsError when the source balance is too low.
	Transfer(from, to Address, amount float64) (*Receipt, error)

	// BalanceOf returns the current balance of an address. Unknown
	// addresses report zero.
	BalanceOf(addr Address) float64
}

// Ledger is an in-memory fungible-asset ledger for one asset.
type Ledger struct {
	name        string
	totalSupply float64
	owner       Address
	admins      map[Address]struct{}
	accounts    map[Address]float64
	allowed     map[Address]map[Address]float64
}

// NewLedger creates a ledger with the full initial supply credited to
// the owner, who is also the first admin.
func NewLedger(name string, owner Address, totalSupply float64) *Ledger {
	return &Ledger{
		name:        name,
		totalSupply: totalSupply,
		owner:       owner,
		admins:      map[Address]struct{}{owner: {}},
		accounts:    map[Address]float64{owner: totalSupply},
	}
}

// Name returns the asset name.
func (l *Ledger) Name() string { return l.name }

// TotalSupply returns the total token supply.
func (l *Ledger) TotalSupply() float64 { return l.totalSupply }

// BalanceOf returns the balance of addr, zero for unknown addresses.
func (l *Ledger) BalanceOf(addr Address) float64 {
	return l.accounts[addr]
}

// Transfer moves amount from one address to another. A self-transfer or
// zero amount is a no-op that still yields a receipt.
func (l *Ledger) Transfer(from, to Address, amount float64) (*Receipt, error) {
	if from == to || amount == 0 {
		return &Receipt{ID: uuid.New(), From: from, To: to}, nil
	}
	if l.accounts[from] < amount {
		return nil, &InsufficientFundsError{Addr: from}
	}

	l.accounts[from] -= amount
	l.accounts[to] += amount

	return &Receipt{ID: uuid.New(), From: from, To: to, Amount: amount}, nil
}

// Approve grants spender an allowance to transfer on behalf of owner.
// A repeated approval overwrites the previous allowance.
func (l *Ledger) Approve(owner, spender Address, amount float64) {
	allowances, ok := l.allowed[owner]
	if !ok {
		allowances = make(map[Address]float64)
		if l.allowed == nil {
			l.allowed = make(map[Address]map[Address]float64)
		}
		l.allowed[owner] = allowances
	}
	allowances[spender] = amount
}

// Allowance returns the remaining approval from owner to spender.
func (l *Ledger) Allowance(owner, spender Address) float64 {
	return l.allowed[owner][spender]
}

// TransferFrom moves amount from owner to spender within the granted
// allowance, decrementing the allowance on success.
func (l *Ledger) TransferFrom(owner, spender Address, amount float64) (*Receipt, error) {
	allowances, ok := l.allowed[owner]
	if !ok {
		return nil, &NoAllowanceError{Owner: owner, Spender: spender}
	}
	allowance, ok := allowances[spender]
	if !ok {
		return nil, &NoAllowanceError{Owner: owner, Spender: spender}
	}
	if allowance < amount {
		return nil, &ExceedsAllowanceError{Amount: amount, Allowance: allowance}
	}

	receipt, err := l.Transfer(owner, spender, amount)
	if err != nil {
		return nil, err
	}
	allowances[spender] = allowance - amount
	return receipt, nil
}

// AddAdmin grants admin rights. Only an existing admin may call this.
func (l *Ledger) AddAdmin(caller, admin Address) error {
	if _, ok := l.admins[caller]; !ok {
		return ErrAdminRequired
	}
	l.admins[admin] = struct{}{}
	return nil
}

// Mint increases the total supply and credits it to the caller.
// Admin only.
func (l *Ledger) Mint(caller Address, amount float64) error {
	if _, ok := l.admins[caller]; !ok {
		return ErrAdminRequired
	}
	l.totalSupply += amount
	l.accounts[caller] += amount
	return nil
}

// Burn destroys up to amount from an address, flooring at zero.
// Admin only.
func (l *Ledger) Burn(caller, from Address, amount float64) error {
	if _, ok := l.admins[caller]; !ok {
		return ErrAdminRequired
	}
	burned := amount
	if burned > l.accounts[from] {
		burned = l.accounts[from]
	}
	l.accounts[from] -= burned
	l.totalSupply -= burned
	return nil
}

// Faucet credits amount to an address straight from the owner's balance.
// Development helper; fails if the owner's balance is too low.
func (l *Ledger) Faucet(to Address, amount float64) (*Receipt, error) {
	return l.Transfer(l.owner, to, amount)
}

// Balances returns a copy of all balances for snapshot serialization.
func (l *Ledger) Balances() map[Address]float64 {
	out := make(map[Address]float64, len(l.accounts))
	for addr, bal := range l.accounts {
		out[addr] = bal
	}
	return out
}

// RestoreBalance directly sets an address balance (snapshot restore).
func (l *Ledger) RestoreBalance(addr Address, balance float64) {
	l.accounts[addr] = balance
}
