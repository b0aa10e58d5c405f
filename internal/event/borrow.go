package event

// Borrowed records pool cash lent to an account.
type Borrowed struct {
	Market    string  `json:"market"`
	Account   string  `json:"account"`
	Amount    float64 `json:"amount"`
	TotalLent float64 `json:"total_lent"`
}

func (b *Borrowed) EventType() EventType { return EventTypeBorrowed }

func (b *Borrowed) MarketName() *string { return &b.Market }

// Repaid records debt paid back into a market.
type Repaid struct {
	Market    string  `json:"market"`
	Account   string  `json:"account"`
	Amount    float64 `json:"amount"`
	TotalLent float64 `json:"total_lent"`
}

func (r *Repaid) EventType() EventType { return EventTypeRepaid }

func (r *Repaid) MarketName() *string { return &r.Market }
