package registry

import (
	"errors"
	"math"
	"testing"
	"time"

	"LendLedger/internal/token"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newTestRegistry(t *testing.T) (*Registry, *token.Ledger) {
	t.Helper()
	ledger := token.NewLedger("USD", "treasury", 1_000_000)
	if _, err := ledger.Faucet("alice", 1000); err != nil {
		t.Fatalf("fund alice: %v", err)
	}
	if _, err := ledger.Faucet("bob", 1000); err != nil {
		t.Fatalf("fund bob: %v", err)
	}
	reg := New("admin")
	if _, err := reg.AddMarket("admin", "wbtc", 1.0, "custody:wbtc", ledger, t0); err != nil {
		t.Fatalf("list wbtc: %v", err)
	}
	return reg, ledger
}

func TestAddMarketAdminGating(t *testing.T) {
	reg, ledger := newTestRegistry(t)

	if _, err := reg.AddMarket("mallory", "eth", 2.0, "custody:eth", ledger, t0); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("listing by non-admin: got %v, want ErrAdminRequired", err)
	}
	if _, err := reg.AddMarket("admin", "wbtc", 1.0, "custody:wbtc2", ledger, t0); !errors.Is(err, ErrMarketAlreadyListed) {
		t.Errorf("duplicate listing: got %v, want ErrMarketAlreadyListed", err)
	}

	if _, err := reg.AddMarket("admin", "eth", 2.0, "custody:eth", ledger, t0); err != nil {
		t.Fatalf("list eth: %v", err)
	}
	names := reg.MarketNames()
	if len(names) != 2 || names[0] != "eth" || names[1] != "wbtc" {
		t.Errorf("market names = %v, want [eth wbtc]", names)
	}
}

func TestAddAdmin(t *testing.T) {
	reg, ledger := newTestRegistry(t)

	if err := reg.AddAdmin("mallory", "mallory"); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("self-grant by non-admin: got %v, want ErrAdminRequired", err)
	}
	if err := reg.AddAdmin("admin", "alice"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if !reg.IsAdmin("alice") {
		t.Error("alice not admin after grant")
	}
	if _, err := reg.AddMarket("alice", "eth", 2.0, "custody:eth", ledger, t0); err != nil {
		t.Errorf("listing by new admin: %v", err)
	}
}

func TestUnlistedMarketOperations(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Market("doge"); !errors.Is(err, ErrMarketNotListed) {
		t.Errorf("lookup: got %v, want ErrMarketNotListed", err)
	}
	if _, err := reg.Mint("alice", "doge", 10, t0); !errors.Is(err, ErrMarketNotListed) {
		t.Errorf("mint: got %v, want ErrMarketNotListed", err)
	}
	if err := reg.Borrow("alice", "doge", 10, t0); !errors.Is(err, ErrMarketNotListed) {
		t.Errorf("borrow: got %v, want ErrMarketNotListed", err)
	}
	if _, err := reg.HypotheticalLiquidity("alice", "doge", 10); !errors.Is(err, ErrMarketNotListed) {
		t.Errorf("hypothetical liquidity: got %v, want ErrMarketNotListed", err)
	}
}

func TestBorrowCollateralGating(t *testing.T) {
	reg, _ := newTestRegistry(t)

	// 100 supplied at rate 0.02 mints 5000 claims; collateral value is
	// 0.75 * 0.02 * 1.0 * 5000 = 75 USD.
	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := reg.Borrow("alice", "wbtc", 80, t0)
	var short *InsufficientCollateralError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientCollateralError, got %v", err)
	}
	if !approxEq(short.Shortfall, 5) {
		t.Errorf("shortfall = %v, want 5", short.Shortfall)
	}

	// Rejected takeout leaves the books untouched.
	mkt, _ := reg.Market("wbtc")
	if mkt.TotalLent != 0 {
		t.Errorf("total lent mutated by rejected borrow: %v", mkt.TotalLent)
	}
	if pos := mkt.Position("alice"); !approxEq(pos.BorrowedAsset, 0) {
		t.Errorf("position mutated by rejected borrow: %+v", pos)
	}

	if err := reg.Borrow("alice", "wbtc", 70, t0); err != nil {
		t.Fatalf("borrow within collateral: %v", err)
	}
	if !approxEq(mkt.TotalLent, 70) {
		t.Errorf("total lent = %v, want 70", mkt.TotalLent)
	}
}

func TestBorrowExactlyAtCollateralLimit(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Borrow("alice", "wbtc", 75, t0); err != nil {
		t.Errorf("borrow at exact limit: %v", err)
	}
}

func TestRedeemCollateralGating(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Borrow("alice", "wbtc", 70, t0); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Pulling 10 underlying would push the hypothetical borrow side to
	// 80 against 75 of collateral.
	_, err := reg.Redeem("alice", "wbtc", 10, t0)
	var short *InsufficientCollateralError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientCollateralError, got %v", err)
	}

	if _, err := reg.Redeem("alice", "wbtc", 4, t0); err != nil {
		t.Fatalf("redeem within collateral: %v", err)
	}
}

func TestCrossMarketLiquidity(t *testing.T) {
	reg, ledger := newTestRegistry(t)
	if _, err := reg.AddMarket("admin", "eth", 2.0, "custody:eth", ledger, t0); err != nil {
		t.Fatalf("list eth: %v", err)
	}

	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint wbtc: %v", err)
	}
	if _, err := reg.Mint("alice", "eth", 100, t0); err != nil {
		t.Fatalf("mint eth: %v", err)
	}

	// 75 from wbtc plus 0.75 * 0.02 * 2.0 * 5000 = 150 from eth.
	liq := reg.AccountLiquidity("alice")
	if !approxEq(liq.Collateral, 225) {
		t.Errorf("collateral = %v, want 225", liq.Collateral)
	}
	if !approxEq(liq.Borrow, 0) {
		t.Errorf("borrow = %v, want 0", liq.Borrow)
	}

	// Collateral in eth backs a wbtc borrow that wbtc alone could not.
	if err := reg.Borrow("alice", "wbtc", 90, t0); err != nil {
		t.Fatalf("cross-collateralized borrow: %v", err)
	}

	liq = reg.AccountLiquidity("alice")
	if !approxEq(liq.Borrow, 90) {
		t.Errorf("borrow after takeout = %v, want 90", liq.Borrow)
	}

	hyp, err := reg.HypotheticalLiquidity("alice", "eth", 50)
	if err != nil {
		t.Fatalf("hypothetical liquidity: %v", err)
	}
	if !approxEq(hyp.Borrow, 90+2.0*50) {
		t.Errorf("hypothetical borrow = %v, want 190", hyp.Borrow)
	}
}

func TestChangePriceOracle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if err := reg.ChangePriceOracle("mallory", "wbtc", 3.0); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("price change by non-admin: got %v, want ErrAdminRequired", err)
	}
	if err := reg.ChangePriceOracle("admin", "doge", 3.0); !errors.Is(err, ErrMarketNotListed) {
		t.Errorf("price change on unlisted market: got %v, want ErrMarketNotListed", err)
	}

	if err := reg.ChangePriceOracle("admin", "wbtc", 3.0); err != nil {
		t.Fatalf("price change: %v", err)
	}
	mkt, _ := reg.Market("wbtc")
	if mkt.PriceUSD != 3.0 {
		t.Errorf("price = %v, want 3.0", mkt.PriceUSD)
	}

	// A price move scales borrowing power immediately.
	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	liq := reg.AccountLiquidity("alice")
	if !approxEq(liq.Collateral, 3*75) {
		t.Errorf("collateral at tripled price = %v, want 225", liq.Collateral)
	}
}

func TestChangeCollateralFactor(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if err := reg.ChangeCollateralFactor("mallory", "wbtc", 0.5); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("factor change by non-admin: got %v, want ErrAdminRequired", err)
	}
	if err := reg.ChangeCollateralFactor("admin", "wbtc", 0.5); err != nil {
		t.Fatalf("factor change: %v", err)
	}
	mkt, _ := reg.Market("wbtc")
	if mkt.CollateralFactor != 0.5 {
		t.Errorf("collateral factor = %v, want 0.5", mkt.CollateralFactor)
	}
}

func TestAccrueAll(t *testing.T) {
	reg, ledger := newTestRegistry(t)
	if _, err := reg.AddMarket("admin", "eth", 2.0, "custody:eth", ledger, t0); err != nil {
		t.Fatalf("list eth: %v", err)
	}
	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Borrow("alice", "wbtc", 50, t0); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	oneYear := time.Duration(364.25 * 24 * float64(time.Hour))
	if err := reg.AccrueAll(t0.Add(oneYear)); err != nil {
		t.Fatalf("accrue all: %v", err)
	}

	mkt, _ := reg.Market("wbtc")
	if !approxEq(mkt.TotalLent, 56.25) {
		t.Errorf("wbtc total lent = %v, want 56.25", mkt.TotalLent)
	}
}

func TestSnapshotRestore(t *testing.T) {
	reg, ledger := newTestRegistry(t)
	if err := reg.AddAdmin("admin", "alice"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := reg.Mint("alice", "wbtc", 100, t0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Borrow("alice", "wbtc", 50, t0); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	snap := reg.Snapshot()
	if len(snap.Admins) != 2 || snap.Admins[0] != "admin" || snap.Admins[1] != "alice" {
		t.Errorf("snapshot admins = %v, want [admin alice]", snap.Admins)
	}

	restored := Restore(snap, ledger)
	if !restored.IsAdmin("alice") {
		t.Error("admin set lost in restore")
	}
	mkt, err := restored.Market("wbtc")
	if err != nil {
		t.Fatalf("market lost in restore: %v", err)
	}
	if !approxEq(mkt.TotalLent, 50) {
		t.Errorf("restored total lent = %v, want 50", mkt.TotalLent)
	}
	// The restored market must be bound to a live ledger again.
	if !approxEq(mkt.Cash(), 50) {
		t.Errorf("restored cash = %v, want 50", mkt.Cash())
	}
}
