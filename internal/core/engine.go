package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LendLedger/internal/event"
	"LendLedger/internal/market"
	"LendLedger/internal/observability"
	"LendLedger/internal/registry"
	"LendLedger/internal/token"

	"github.com/google/uuid"
)

// Clock supplies the engine's notion of now. Production wiring passes
// time.Now; tests pass a controlled clock so accrual is reproducible.
type Clock func() time.Time

// Output is what the engine emits per applied operation.
type Output struct {
	Envelope *event.Envelope
}

type result struct {
	value any
	err   error
}

type command struct {
	name string
	run  func(now time.Time) (any, error)
	done chan result
}

// Engine serializes every state-changing and state-reading operation
// through a single goroutine, keeping the registry and markets free of
// locks. Applied operations are emitted as envelopes: a blocking send
// to the persist channel and a drop-on-full send to the publish channel.
type Engine struct {
	sequence int64
	registry *registry.Registry
	ledger   token.AssetLedger
	clock    Clock
	metrics  *observability.Metrics

	commands    chan command
	persistChan chan<- Output
	publishChan chan<- Output
}

// NewEngine wires an engine around existing registry state. startSequence
// is the next envelope sequence to assign, normally one past the last
// persisted operation.
func NewEngine(
	reg *registry.Registry,
	ledger token.AssetLedger,
	startSequence int64,
	clock Clock,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		sequence:    startSequence,
		registry:    reg,
		ledger:      ledger,
		clock:       clock,
		metrics:     metrics,
		commands:    make(chan command, 256),
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// Run drains the command channel until ctx is cancelled. It must be the
// only goroutine touching the registry.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			start := time.Now()
			value, err := cmd.run(e.clock())
			cmd.done <- result{value: value, err: err}

			if e.metrics != nil {
				status := "ok"
				if err != nil {
					status = "error"
				}
				e.metrics.OpsProcessed.WithLabelValues(cmd.name, status).Inc()
				e.metrics.OpDuration.WithLabelValues(cmd.name).Observe(time.Since(start).Seconds())
				e.metrics.EngineSequence.Set(float64(e.sequence))
			}
		}
	}
}

func (e *Engine) submit(ctx context.Context, name string, run func(now time.Time) (any, error)) (any, error) {
	cmd := command{name: name, run: run, done: make(chan result, 1)}

	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// emit assigns a sequence and fans the envelope out. The persist send
// blocks so no applied operation is ever lost; the publish send drops
// when the publisher falls behind.
func (e *Engine) emit(caller token.Address, evt event.Event, now time.Time) {
	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: unmarshalable event %T: %v", evt, err))
	}

	envelope := &event.Envelope{
		Sequence:  e.sequence,
		EventID:   uuid.New(),
		EventType: evt.EventType(),
		Market:    evt.MarketName(),
		Caller:    string(caller),
		Timestamp: now,
		Payload:   payload,
	}
	e.sequence++

	output := Output{Envelope: envelope}

	e.persistChan <- output

	select {
	case e.publishChan <- output:
	default:
	}
}

// AddMarket lists a new market backed by the engine's asset ledger.
func (e *Engine) AddMarket(ctx context.Context, caller token.Address, name string, priceUSD float64, custody token.Address) error {
	_, err := e.submit(ctx, "add_market", func(now time.Time) (any, error) {
		mkt, err := e.registry.AddMarket(caller, name, priceUSD, custody, e.ledger, now)
		if err != nil {
			return nil, err
		}
		e.emit(caller, &event.MarketCreated{
			Market:           name,
			PriceUSD:         mkt.PriceUSD,
			CollateralFactor: mkt.CollateralFactor,
			Custody:          string(custody),
		}, now)
		return nil, nil
	})
	return err
}

// Mint supplies underlying into a market and returns the claim tokens
// minted.
func (e *Engine) Mint(ctx context.Context, caller token.Address, name string, amount float64) (float64, error) {
	value, err := e.submit(ctx, "mint", func(now time.Time) (any, error) {
		minted, err := e.registry.Mint(caller, name, amount, now)
		if err != nil {
			return nil, err
		}
		mkt, _ := e.registry.Market(name)
		e.emit(caller, &event.Minted{
			Market:       name,
			Account:      string(caller),
			Amount:       amount,
			ClaimTokens:  minted,
			ExchangeRate: mkt.ExchangeRate(),
		}, now)
		return minted, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// Redeem pays underlying out of a market and returns the claim tokens
// burned.
func (e *Engine) Redeem(ctx context.Context, caller token.Address, name string, amount float64) (float64, error) {
	value, err := e.submit(ctx, "redeem", func(now time.Time) (any, error) {
		burned, err := e.registry.Redeem(caller, name, amount, now)
		if err != nil {
			return nil, err
		}
		mkt, _ := e.registry.Market(name)
		e.emit(caller, &event.Redeemed{
			Market:       name,
			Account:      string(caller),
			Amount:       amount,
			ClaimTokens:  burned,
			ExchangeRate: mkt.ExchangeRate(),
		}, now)
		return burned, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// Borrow lends pool cash to the caller.
func (e *Engine) Borrow(ctx context.Context, caller token.Address, name string, amount float64) error {
	_, err := e.submit(ctx, "borrow", func(now time.Time) (any, error) {
		if err := e.registry.Borrow(caller, name, amount, now); err != nil {
			return nil, err
		}
		mkt, _ := e.registry.Market(name)
		e.emit(caller, &event.Borrowed{
			Market:    name,
			Account:   string(caller),
			Amount:    amount,
			TotalLent: mkt.TotalLent,
		}, now)
		return nil, nil
	})
	return err
}

// RepayBorrow pays down the caller's debt.
func (e *Engine) RepayBorrow(ctx context.Context, caller token.Address, name string, amount float64) error {
	_, err := e.submit(ctx, "repay_borrow", func(now time.Time) (any, error) {
		if err := e.registry.RepayBorrow(caller, name, amount, now); err != nil {
			return nil, err
		}
		mkt, _ := e.registry.Market(name)
		e.emit(caller, &event.Repaid{
			Market:    name,
			Account:   string(caller),
			Amount:    amount,
			TotalLent: mkt.TotalLent,
		}, now)
		return nil, nil
	})
	return err
}

// ChangePriceOracle sets a market's USD price. Admin only.
func (e *Engine) ChangePriceOracle(ctx context.Context, caller token.Address, name string, priceUSD float64) error {
	_, err := e.submit(ctx, "change_price_oracle", func(now time.Time) (any, error) {
		if err := e.registry.ChangePriceOracle(caller, name, priceUSD); err != nil {
			return nil, err
		}
		e.emit(caller, &event.PriceChanged{Market: name, PriceUSD: priceUSD}, now)
		return nil, nil
	})
	return err
}

// ChangeCollateralFactor sets a market's collateral factor. Admin only.
func (e *Engine) ChangeCollateralFactor(ctx context.Context, caller token.Address, name string, factor float64) error {
	_, err := e.submit(ctx, "change_collateral_factor", func(now time.Time) (any, error) {
		if err := e.registry.ChangeCollateralFactor(caller, name, factor); err != nil {
			return nil, err
		}
		e.emit(caller, &event.CollateralFactorChanged{Market: name, CollateralFactor: factor}, now)
		return nil, nil
	})
	return err
}

// AddAdmin grants registry admin rights. Admin only.
func (e *Engine) AddAdmin(ctx context.Context, caller, admin token.Address) error {
	_, err := e.submit(ctx, "add_admin", func(now time.Time) (any, error) {
		if err := e.registry.AddAdmin(caller, admin); err != nil {
			return nil, err
		}
		e.emit(caller, &event.AdminAdded{Admin: string(admin)}, now)
		return nil, nil
	})
	return err
}

// MarketNames lists the registered markets.
func (e *Engine) MarketNames(ctx context.Context) ([]string, error) {
	value, err := e.submit(ctx, "market_names", func(now time.Time) (any, error) {
		return e.registry.MarketNames(), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

// Rates returns a market's derived quantities after accruing interest
// up to now.
func (e *Engine) Rates(ctx context.Context, name string) (market.Rates, error) {
	value, err := e.submit(ctx, "rates", func(now time.Time) (any, error) {
		mkt, err := e.registry.Market(name)
		if err != nil {
			return nil, err
		}
		if err := mkt.AccrueInterest(now); err != nil {
			return nil, err
		}
		return mkt.CurrentRates(), nil
	})
	if err != nil {
		return market.Rates{}, err
	}
	return value.(market.Rates), nil
}

// Position returns account's position in a market. The boolean is false
// when the account has none.
func (e *Engine) Position(ctx context.Context, name string, account token.Address) (market.Position, bool, error) {
	value, err := e.submit(ctx, "position", func(now time.Time) (any, error) {
		mkt, err := e.registry.Market(name)
		if err != nil {
			return nil, err
		}
		return mkt.Position(account), nil
	})
	if err != nil {
		return market.Position{}, false, err
	}
	pos, _ := value.(*market.Position)
	if pos == nil {
		return market.Position{}, false, nil
	}
	return *pos, true, nil
}

// AccountLiquidity returns an account's cross-market solvency view.
func (e *Engine) AccountLiquidity(ctx context.Context, account token.Address) (registry.Liquidity, error) {
	value, err := e.submit(ctx, "account_liquidity", func(now time.Time) (any, error) {
		return e.registry.AccountLiquidity(account), nil
	})
	if err != nil {
		return registry.Liquidity{}, err
	}
	return value.(registry.Liquidity), nil
}

// HypotheticalLiquidity projects an account's solvency after an extra
// takeout from the named market.
func (e *Engine) HypotheticalLiquidity(ctx context.Context, account token.Address, name string, amount float64) (registry.Liquidity, error) {
	value, err := e.submit(ctx, "hypothetical_liquidity", func(now time.Time) (any, error) {
		return e.registry.HypotheticalLiquidity(account, name, amount)
	})
	if err != nil {
		return registry.Liquidity{}, err
	}
	return value.(registry.Liquidity), nil
}

// SnapshotState accrues every market to now and captures the registry
// state plus the engine sequence for persistence.
func (e *Engine) SnapshotState(ctx context.Context) (registry.Snapshot, int64, error) {
	type snapAndSeq struct {
		snap registry.Snapshot
		seq  int64
	}
	value, err := e.submit(ctx, "snapshot", func(now time.Time) (any, error) {
		if err := e.registry.AccrueAll(now); err != nil {
			return nil, err
		}
		return snapAndSeq{snap: e.registry.Snapshot(), seq: e.sequence}, nil
	})
	if err != nil {
		return registry.Snapshot{}, 0, err
	}
	s := value.(snapAndSeq)
	return s.snap, s.seq, nil
}
