package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

func TestComputeBreakdown(t *testing.T) {
	// Two repair lines at 100.00 and 50.00, 10% off the first line and a
	// fixed 5.00 website discount.
	items := []bookingapi.LineItem{
		{Name: "Screen replacement", Quantity: 1, UnitPrice: 10000, Discount: bookingapi.Discount{Type: bookingapi.DiscountPercentage, Value: 10}},
		{Name: "Battery replacement", Quantity: 1, UnitPrice: 5000},
	}
	websiteDiscount := bookingapi.Discount{Type: bookingapi.DiscountAmount, Value: 500}

	breakdown := ComputeBreakdown("EUR", items, websiteDiscount)

	assert.Equal(t, int64(15000), breakdown.Subtotal)
	assert.Equal(t, int64(1000), breakdown.ItemDiscount)
	assert.Equal(t, int64(14000), breakdown.PriceAfterItemDiscount)
	assert.Equal(t, int64(500), breakdown.WebsiteDiscountAmount)
	assert.Equal(t, int64(1500), breakdown.TotalDiscount)
	assert.Equal(t, int64(2700), breakdown.VATAmount)
	assert.Equal(t, int64(16200), breakdown.TotalAmount)
	assert.False(t, breakdown.Clamped)
	assert.False(t, breakdown.Estimated)
}

func TestComputeBreakdownSkipsZeroQuantityLines(t *testing.T) {
	items := []bookingapi.LineItem{
		{Name: "Case", Quantity: 0, UnitPrice: 2000},
		{Name: "Charger", Quantity: 2, UnitPrice: 1500},
	}

	breakdown := ComputeBreakdown("EUR", items, bookingapi.Discount{})

	assert.Equal(t, int64(3000), breakdown.Subtotal)
	assert.Equal(t, int64(3600), breakdown.TotalAmount)
}

func TestComputeBreakdownClampsNegativeTotal(t *testing.T) {
	items := []bookingapi.LineItem{
		{Name: "Cable", Quantity: 1, UnitPrice: 500},
	}
	// Fixed website discount larger than the goods value.
	breakdown := ComputeBreakdown("EUR", items, bookingapi.Discount{Type: bookingapi.DiscountAmount, Value: 10000})

	assert.Equal(t, int64(0), breakdown.TotalAmount)
	assert.False(t, breakdown.Clamped, "amount discounts clamp per step, total stays non-negative")
	assert.GreaterOrEqual(t, breakdown.TotalAmount, int64(0))
}

func TestComputeBreakdownNeverNegative(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 250; i++ {
		itemCount := 1 + rnd.Intn(4)
		items := make([]bookingapi.LineItem, 0, itemCount)
		for j := 0; j < itemCount; j++ {
			items = append(items, bookingapi.LineItem{
				Name:      "item",
				Quantity:  rnd.Intn(4),
				UnitPrice: int64(rnd.Intn(50000)),
				Discount:  randomDiscount(rnd),
			})
		}

		breakdown := ComputeBreakdown("EUR", items, randomDiscount(rnd))

		assert.GreaterOrEqual(t, breakdown.TotalAmount, int64(0))
		assert.GreaterOrEqual(t, breakdown.Subtotal, breakdown.PriceAfterItemDiscount)
	}
}

func randomDiscount(rnd *rand.Rand) bookingapi.Discount {
	switch rnd.Intn(3) {
	case 0:
		return bookingapi.Discount{Type: bookingapi.DiscountPercentage, Value: float64(rnd.Intn(120))}
	case 1:
		return bookingapi.Discount{Type: bookingapi.DiscountAmount, Value: float64(rnd.Intn(60000))}
	default:
		return bookingapi.Discount{}
	}
}

func TestApplyLineDiscounts(t *testing.T) {
	items := []bookingapi.LineItem{
		{Name: "Screen replacement", Quantity: 1, UnitPrice: 10000, Discount: bookingapi.Discount{Type: bookingapi.DiscountPercentage, Value: 10}},
		{Name: "Battery replacement", Quantity: 1, UnitPrice: 5000},
		{Name: "Freebie", Quantity: 1, UnitPrice: 1000, Discount: bookingapi.Discount{Type: bookingapi.DiscountAmount, Value: 2500}},
	}

	priced := ApplyLineDiscounts(items)

	assert.Equal(t, int64(9000), priced[0].FinalPrice)
	assert.Equal(t, int64(5000), priced[1].FinalPrice, "no discount means final equals unit price")
	assert.Equal(t, int64(0), priced[2].FinalPrice, "a discount exceeding the base clamps to zero")

	for i := range priced {
		assert.LessOrEqual(t, priced[i].FinalPrice, priced[i].UnitPrice)
	}
}
