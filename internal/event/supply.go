package event

// Minted records a supply of underlying into a market.
type Minted struct {
	Market       string  `json:"market"`
	Account      string  `json:"account"`
	Amount       float64 `json:"amount"`
	ClaimTokens  float64 `json:"claim_tokens"`
	ExchangeRate float64 `json:"exchange_rate"`
}

func (m *Minted) EventType() EventType { return EventTypeMinted }

func (m *Minted) MarketName() *string { return &m.Market }

// Redeemed records a payout of underlying from a market.
type Redeemed struct {
	Market       string  `json:"market"`
	Account      string  `json:"account"`
	Amount       float64 `json:"amount"`
	ClaimTokens  float64 `json:"claim_tokens"`
	ExchangeRate float64 `json:"exchange_rate"`
}

func (r *Redeemed) EventType() EventType { return EventTypeRedeemed }

func (r *Redeemed) MarketName() *string { return &r.Market }
