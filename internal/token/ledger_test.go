package token

import (
	"errors"
	"testing"
)

func TestTransfer(t *testing.T) {
	l := NewLedger("USD", "owner", 1000)

	receipt, err := l.Transfer("owner", "alice", 100)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if receipt.Amount != 100 {
		t.Errorf("receipt amount = %v, want 100", receipt.Amount)
	}
	if got := l.BalanceOf("alice"); got != 100 {
		t.Errorf("alice balance = %v, want 100", got)
	}
	if got := l.BalanceOf("owner"); got != 900 {
		t.Errorf("owner balance = %v, want 900", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := NewLedger("USD", "owner", 100)

	_, err := l.Transfer("owner", "alice", 200)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Addr != "owner" {
		t.Errorf("error addr = %s, want owner", insufficient.Addr)
	}
	if got := l.BalanceOf("owner"); got != 100 {
		t.Errorf("owner balance changed on failed transfer: %v", got)
	}
}

func TestTransferSelfAndZeroAreNoOps(t *testing.T) {
	l := NewLedger("USD", "owner", 100)

	if _, err := l.Transfer("owner", "owner", 50); err != nil {
		t.Errorf("self transfer: %v", err)
	}
	if _, err := l.Transfer("owner", "alice", 0); err != nil {
		t.Errorf("zero transfer: %v", err)
	}
	if got := l.BalanceOf("owner"); got != 100 {
		t.Errorf("owner balance = %v, want 100", got)
	}
	if got := l.BalanceOf("alice"); got != 0 {
		t.Errorf("alice balance = %v, want 0", got)
	}
}

func TestAllowanceFlow(t *testing.T) {
	l := NewLedger("USD", "owner", 1000)

	l.Approve("owner", "spender", 300)
	if got := l.Allowance("owner", "spender"); got != 300 {
		t.Fatalf("allowance = %v, want 300", got)
	}

	if _, err := l.TransferFrom("owner", "spender", 200); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := l.Allowance("owner", "spender"); got != 100 {
		t.Errorf("remaining allowance = %v, want 100", got)
	}
	if got := l.BalanceOf("spender"); got != 200 {
		t.Errorf("spender balance = %v, want 200", got)
	}

	_, err := l.TransferFrom("owner", "spender", 150)
	var exceeds *ExceedsAllowanceError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ExceedsAllowanceError, got %v", err)
	}

	_, err = l.TransferFrom("owner", "stranger", 10)
	var noAllowance *NoAllowanceError
	if !errors.As(err, &noAllowance) {
		t.Fatalf("expected NoAllowanceError, got %v", err)
	}
}

func TestAdminMintAndBurn(t *testing.T) {
	l := NewLedger("USD", "owner", 100)

	if err := l.Mint("stranger", 50); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("mint by stranger: got %v, want ErrAdminRequired", err)
	}

	if err := l.Mint("owner", 50); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := l.TotalSupply(); got != 150 {
		t.Errorf("total supply = %v, want 150", got)
	}
	if got := l.BalanceOf("owner"); got != 150 {
		t.Errorf("owner balance = %v, want 150", got)
	}

	// Burn floors at zero rather than failing.
	if err := l.Burn("owner", "owner", 500); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := l.BalanceOf("owner"); got != 0 {
		t.Errorf("owner balance after over-burn = %v, want 0", got)
	}
	if got := l.TotalSupply(); got != 0 {
		t.Errorf("total supply after over-burn = %v, want 0", got)
	}
}

func TestAddAdmin(t *testing.T) {
	l := NewLedger("USD", "owner", 100)

	if err := l.AddAdmin("stranger", "mallory"); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("add admin by stranger: got %v, want ErrAdminRequired", err)
	}

	if err := l.AddAdmin("owner", "alice"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := l.Mint("alice", 10); err != nil {
		t.Errorf("mint by new admin: %v", err)
	}
}

func TestFaucet(t *testing.T) {
	l := NewLedger("USD", "owner", 100)

	if _, err := l.Faucet("alice", 40); err != nil {
		t.Fatalf("faucet: %v", err)
	}
	if got := l.BalanceOf("alice"); got != 40 {
		t.Errorf("alice balance = %v, want 40", got)
	}

	if _, err := l.Faucet("bob", 100); err == nil {
		t.Error("faucet beyond owner balance should fail")
	}
}
