package event

// MarketCreated records the listing of a new market.
type MarketCreated struct {
	Market           string  `json:"market"`
	PriceUSD         float64 `json:"price_usd"`
	CollateralFactor float64 `json:"collateral_factor"`
	Custody          string  `json:"custody"`
}

func (m *MarketCreated) EventType() EventType { return EventTypeMarketCreated }

func (m *MarketCreated) MarketName() *string { return &m.Market }

// PriceChanged records an oracle price update for a market.
type PriceChanged struct {
	Market   string  `json:"market"`
	PriceUSD float64 `json:"price_usd"`
}

func (p *PriceChanged) EventType() EventType { return EventTypePriceChanged }

func (p *PriceChanged) MarketName() *string { return &p.Market }

// CollateralFactorChanged records a risk-parameter update for a market.
type CollateralFactorChanged struct {
	Market           string  `json:"market"`
	CollateralFactor float64 `json:"collateral_factor"`
}

func (c *CollateralFactorChanged) EventType() EventType { return EventTypeCollateralFactorChanged }

func (c *CollateralFactorChanged) MarketName() *string { return &c.Market }

// AdminAdded records a grant of registry admin rights.
type AdminAdded struct {
	Admin string `json:"admin"`
}

func (a *AdminAdded) EventType() EventType { return EventTypeAdminAdded }

func (a *AdminAdded) MarketName() *string { return nil }
