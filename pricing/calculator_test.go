package pricing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/entity"
	"travels/pricing"
)

func TestComputePrice(t *testing.T) {
	testCases := []struct {
		Name      string
		UnitPrice entity.MinorUnits
		Adults    int
		Children  int
		Infants   int
		Expected  entity.PriceBreakdown
	}{
		{
			Name:      "two adults one child",
			UnitPrice: 45000,
			Adults:    2,
			Children:  1,
			Expected: entity.PriceBreakdown{
				UnitPrice:   45000,
				AdultTotal:  90000,
				ChildTotal:  22500,
				InfantTotal: 0,
				ServiceFee:  5625,
				Total:       118125,
			},
		},
		{
			Name:      "single adult",
			UnitPrice: 100000,
			Adults:    1,
			Expected: entity.PriceBreakdown{
				UnitPrice:  100000,
				AdultTotal: 100000,
				ServiceFee: 5000,
				Total:      105000,
			},
		},
		{
			Name:      "infants are free",
			UnitPrice: 20000,
			Adults:    2,
			Infants:   2,
			Expected: entity.PriceBreakdown{
				UnitPrice:  20000,
				AdultTotal: 40000,
				ServiceFee: 2000,
				Total:      42000,
			},
		},
		{
			Name:      "half minor unit rounds up",
			UnitPrice: 101,
			Adults:    1,
			Children:  1,
			Expected: entity.PriceBreakdown{
				UnitPrice:  101,
				AdultTotal: 101,
				ChildTotal: 51,
				ServiceFee: 8,
				Total:      160,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			price, err := pricing.ComputePrice(tc.UnitPrice, tc.Adults, tc.Children, tc.Infants)
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, price)
		})
	}
}

func TestComputePrice_example_in_major_units(t *testing.T) {
	unitPrice, err := entity.ParseMinorUnits("450")
	require.NoError(t, err)

	price, err := pricing.ComputePrice(unitPrice, 2, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, "900.00", price.AdultTotal.String())
	assert.Equal(t, "225.00", price.ChildTotal.String())
	assert.Equal(t, "0.00", price.InfantTotal.String())
	assert.Equal(t, "56.25", price.ServiceFee.String())
	assert.Equal(t, "1181.25", price.Total.String())
}

func TestComputePrice_invariants(t *testing.T) {
	for _, unitPrice := range []entity.MinorUnits{0, 1, 99, 45000, 123457} {
		for adults := 1; adults <= 4; adults++ {
			for children := 0; children <= 3; children++ {
				for infants := 0; infants <= adults; infants++ {
					price, err := pricing.ComputePrice(unitPrice, adults, children, infants)
					require.NoError(t, err)

					assert.Equal(t, price.AdultTotal+price.ChildTotal+price.InfantTotal+price.ServiceFee, price.Total)
					assert.Zero(t, price.InfantTotal)

					// fee is 5% of subtotal, within half a minor unit
					diff := int64(price.ServiceFee)*20 - int64(price.Subtotal())
					assert.LessOrEqual(t, abs(diff), int64(10))
					if int64(price.Subtotal())%20 == 0 {
						assert.Zero(t, diff)
					}
				}
			}
		}
	}
}

func TestComputePrice_validation(t *testing.T) {
	testCases := []struct {
		Name      string
		UnitPrice entity.MinorUnits
		Adults    int
		Children  int
		Infants   int
	}{
		{Name: "no adults", UnitPrice: 100, Adults: 0},
		{Name: "negative children", UnitPrice: 100, Adults: 1, Children: -1},
		{Name: "negative infants", UnitPrice: 100, Adults: 1, Infants: -1},
		{Name: "more infants than adults", UnitPrice: 100, Adults: 1, Infants: 2},
		{Name: "negative unit price", UnitPrice: -1, Adults: 1},
		{Name: "adult total overflows", UnitPrice: 5_000_000_000_000_000_000, Adults: 2},
		{Name: "service fee overflows", UnitPrice: math.MaxInt64, Adults: 1},
		{Name: "subtotal overflows", UnitPrice: 4_000_000_000_000_000_000, Adults: 2, Children: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := pricing.ComputePrice(tc.UnitPrice, tc.Adults, tc.Children, tc.Infants)
			assert.ErrorIs(t, err, entity.ErrValidation)
		})
	}
}

func TestComputePrice_largest_amount(t *testing.T) {
	price, err := pricing.ComputePrice(100_000_000_000_000_000, 1, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, entity.MinorUnits(5_000_000_000_000_000), price.ServiceFee)
	assert.Equal(t, entity.MinorUnits(105_000_000_000_000_000), price.Total)
}

func TestCountTravelers(t *testing.T) {
	adults, children, infants := pricing.CountTravelers([]entity.Traveler{
		{Type: entity.TravelerTypeAdult},
		{Type: entity.TravelerTypeInfant},
		{Type: entity.TravelerTypeAdult},
		{Type: entity.TravelerTypeChild},
	})

	assert.Equal(t, 2, adults)
	assert.Equal(t, 1, children)
	assert.Equal(t, 1, infants)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
