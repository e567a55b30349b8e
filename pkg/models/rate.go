package models

// RateQuery identifies the currency pair of one fetch attempt
type RateQuery struct {
	SellCurrency string `json:"sellCurrency"`
	BuyCurrency  string `json:"buyCurrency"`
}

// Pair renders the query as SELL/BUY
func (q RateQuery) Pair() string {
	return q.SellCurrency + "/" + q.BuyCurrency
}

// RateResult represents a rate returned by the pricing service
type RateResult struct {
	ID            string  `json:"id"`
	SellCurrency  string  `json:"sellCurrency"`
	BuyCurrency   string  `json:"buyCurrency"`
	RetailRate    float64 `json:"retailRate"`
	WholesaleRate float64 `json:"wholesaleRate,omitempty"`
	Indicative    bool    `json:"indicative"`
	CreatedAt     string  `json:"createdAt,omitempty"`
	ValidUntil    string  `json:"validUntil,omitempty"`
}
