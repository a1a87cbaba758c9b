package entity

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// MinorUnits is an amount of money in the smallest unit of its currency (paise, cents).
type MinorUnits int64

func (m MinorUnits) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount in major units, e.g. 118125 -> "1181.25".
func (m MinorUnits) String() string {
	return m.Decimal().StringFixed(2)
}

// ParseMinorUnits accepts a major-unit amount such as "450" or "450.5".
func ParseMinorUnits(amount string) (MinorUnits, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, NewValidationError("amount", "not a decimal number")
	}
	if !d.Equal(d.Round(2)) {
		return 0, NewValidationError("amount", "more than two decimal places")
	}
	return NewMinorUnits("amount", d.Shift(2))
}

// NewMinorUnits converts a whole number of minor units. Negative amounts and
// amounts beyond what MinorUnits can hold fail validation under field.
func NewMinorUnits(field string, d decimal.Decimal) (MinorUnits, error) {
	if d.IsNegative() {
		return 0, NewValidationError(field, "must not be negative")
	}
	if d.GreaterThan(maxMinorUnits) {
		return 0, NewValidationError(field, "amount is too large")
	}
	return MinorUnits(d.IntPart()), nil
}

type PriceBreakdown struct {
	UnitPrice   MinorUnits `json:"unit_price"`
	AdultTotal  MinorUnits `json:"adult_total"`
	ChildTotal  MinorUnits `json:"child_total"`
	InfantTotal MinorUnits `json:"infant_total"`
	ServiceFee  MinorUnits `json:"service_fee"`
	Total       MinorUnits `json:"total"`
	Currency    string     `json:"currency"`
}

func (p PriceBreakdown) Subtotal() MinorUnits {
	return p.AdultTotal + p.ChildTotal + p.InfantTotal
}
