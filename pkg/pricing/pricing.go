package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultMargin is the fractional markup applied to the retail rate
const DefaultMargin = 0.005

// MarkupParams are the inputs of CalculateMarkup
type MarkupParams struct {
	ExchangeRate float64
	Margin       float64
}

// CalculateMarkup returns (1 - margin) * exchangeRate.
// Margins outside [0,1) are not rejected; rounding is left to the caller.
func CalculateMarkup(p MarkupParams) float64 {
	return (1 - p.Margin) * p.ExchangeRate
}

// Quote holds the amounts derived from an amount and a rate
type Quote struct {
	Amount       float64
	ExchangeRate float64
	Margin       float64
	OFXRate      float64
	TrueAmount   float64
	OFXAmount    float64
}

// NewQuote derives both pricing views for an amount
func NewQuote(amount, exchangeRate, margin float64) Quote {
	ofxRate := CalculateMarkup(MarkupParams{ExchangeRate: exchangeRate, Margin: margin})
	return Quote{
		Amount:       amount,
		ExchangeRate: exchangeRate,
		Margin:       margin,
		OFXRate:      ofxRate,
		TrueAmount:   amount * exchangeRate,
		OFXAmount:    amount * ofxRate,
	}
}

// TrueAmountText is the true amount formatted for display
func (q Quote) TrueAmountText() string {
	return FormatAmount(q.TrueAmount)
}

// OFXAmountText is the marked-up amount formatted for display
func (q Quote) OFXAmountText() string {
	return FormatAmount(q.OFXAmount)
}

// FormatAmount renders a value with two decimals, or "-" when it is not a number
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatRate renders a rate with up to six significant decimals
func FormatRate(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).Round(6).String()
}
