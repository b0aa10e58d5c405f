package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager stores and loads full-state snapshots used for warm
// restarts: registry books plus asset ledger balances at a sequence.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable full state at a point in time.
type SnapshotData struct {
	Sequence  int64                     `json:"sequence"`
	Admins    []string                  `json:"admins"`
	Markets   map[string]MarketSnapshot `json:"markets"`
	Balances  map[string]float64        `json:"balances"`
	CreatedAt time.Time                 `json:"created_at"`
}

// MarketSnapshot is one market's books.
type MarketSnapshot struct {
	Name             string                      `json:"name"`
	Custody          string                      `json:"custody"`
	TotalLent        float64                     `json:"total_lent"`
	TotalSupply      float64                     `json:"total_supply"`
	CollateralFactor float64                     `json:"collateral_factor"`
	PriceUSD         float64                     `json:"price_usd"`
	LastCheckpoint   time.Time                   `json:"last_checkpoint"`
	Positions        map[string]PositionSnapshot `json:"positions"`
}

// PositionSnapshot is one account's standing in a market.
type PositionSnapshot struct {
	UnderlyingAsset float64   `json:"underlying_asset"`
	ClaimTokens     float64   `json:"claim_tokens"`
	BorrowedAsset   float64   `json:"borrowed_asset"`
	LastCheckpoint  time.Time `json:"last_checkpoint"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot, overwriting any snapshot already
// stored at the same sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO lend_log.snapshots
			(snapshot_id, sequence, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), snap.Sequence, data, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, or nil on a cold
// start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM lend_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}
