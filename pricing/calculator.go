package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"travels/entity"
)

var (
	childRate      = decimal.RequireFromString("0.5")
	serviceFeeRate = decimal.RequireFromString("0.05")
)

// ComputePrice prices a package for the given traveler mix.
// Amounts are rounded half away from zero to whole minor units.
func ComputePrice(unitPrice entity.MinorUnits, adults, children, infants int) (entity.PriceBreakdown, error) {
	if unitPrice < 0 {
		return entity.PriceBreakdown{}, entity.NewValidationError("unit_price", "must not be negative")
	}
	if adults < 0 || children < 0 || infants < 0 {
		return entity.PriceBreakdown{}, entity.NewValidationError("travelers", "counts must not be negative")
	}
	if adults < 1 {
		return entity.PriceBreakdown{}, entity.NewValidationError("adults", "at least one adult is required")
	}
	if infants > adults {
		return entity.PriceBreakdown{}, entity.NewValidationError("infants", "each infant must travel with an adult")
	}

	unit := decimal.NewFromInt(int64(unitPrice))

	adultTotal := unit.Mul(decimal.NewFromInt(int64(adults)))
	childTotal := unit.Mul(decimal.NewFromInt(int64(children))).Mul(childRate).Round(0)
	infantTotal := decimal.Zero
	serviceFee := adultTotal.Add(childTotal).Add(infantTotal).Mul(serviceFeeRate).Round(0)

	total, err := entity.NewMinorUnits("unit_price", adultTotal.Add(childTotal).Add(infantTotal).Add(serviceFee))
	if err != nil {
		return entity.PriceBreakdown{}, err
	}

	// every part is bounded by the total, so none of them can overflow
	breakdown := entity.PriceBreakdown{
		UnitPrice:   unitPrice,
		AdultTotal:  entity.MinorUnits(adultTotal.IntPart()),
		ChildTotal:  entity.MinorUnits(childTotal.IntPart()),
		InfantTotal: entity.MinorUnits(infantTotal.IntPart()),
		ServiceFee:  entity.MinorUnits(serviceFee.IntPart()),
		Total:       total,
	}

	return breakdown, nil
}

// CountTravelers splits travelers by tier.
func CountTravelers(travelers []entity.Traveler) (adults, children, infants int) {
	ofType := func(travelerType entity.TravelerType) func(entity.Traveler) bool {
		return func(t entity.Traveler) bool { return t.Type == travelerType }
	}

	return lo.CountBy(travelers, ofType(entity.TravelerTypeAdult)),
		lo.CountBy(travelers, ofType(entity.TravelerTypeChild)),
		lo.CountBy(travelers, ofType(entity.TravelerTypeInfant))
}
