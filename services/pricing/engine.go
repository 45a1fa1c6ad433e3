package pricing

import (
	"math"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

// VATRatePercentage is the fixed display VAT rate. The authoritative VAT
// amount comes from the pricing authority.
const VATRatePercentage = 20

// ComputeBreakdown derives a price breakdown from locally known base prices.
// It is pure: the result is used for optimistic display and as the fallback
// when the pricing authority cannot be reached.
func ComputeBreakdown(currency string, items []bookingapi.LineItem, websiteDiscount bookingapi.Discount) bookingapi.PriceBreakdown {
	var subtotal, itemDiscount int64

	for _, item := range items {
		// zero-quantity lines do not participate
		if item.Quantity <= 0 {
			continue
		}

		base := item.UnitPrice
		lineFinal := applyDiscount(base, item.Discount)

		subtotal += base * int64(item.Quantity)
		itemDiscount += (base - lineFinal) * int64(item.Quantity)
	}

	priceAfterItemDiscount := subtotal - itemDiscount
	afterWebsiteDiscount := applyDiscount(priceAfterItemDiscount, websiteDiscount)
	websiteDiscountAmount := priceAfterItemDiscount - afterWebsiteDiscount

	vatAmount := int64(math.Round(float64(afterWebsiteDiscount) * VATRatePercentage / 100))
	totalAmount := afterWebsiteDiscount + vatAmount

	clamped := false
	if totalAmount < 0 {
		totalAmount = 0
		clamped = true
	}

	websiteDiscountPercentage := float64(0)
	if websiteDiscount.Type == bookingapi.DiscountPercentage {
		websiteDiscountPercentage = clampPercentage(websiteDiscount.Value)
	}

	return bookingapi.PriceBreakdown{
		Currency:                  currency,
		Subtotal:                  subtotal,
		ItemDiscount:              itemDiscount,
		PriceAfterItemDiscount:    priceAfterItemDiscount,
		WebsiteDiscountPercentage: websiteDiscountPercentage,
		WebsiteDiscountAmount:     websiteDiscountAmount,
		TotalDiscount:             itemDiscount + websiteDiscountAmount,
		VATRate:                   VATRatePercentage,
		VATAmount:                 vatAmount,
		TotalAmount:               totalAmount,
		Clamped:                   clamped,
	}
}

// ApplyLineDiscounts returns a copy of the items with FinalPrice set to the
// discounted unit price.
func ApplyLineDiscounts(items []bookingapi.LineItem) []bookingapi.LineItem {
	priced := make([]bookingapi.LineItem, 0, len(items))
	for _, item := range items {
		item.FinalPrice = applyDiscount(item.UnitPrice, item.Discount)
		priced = append(priced, item)
	}
	return priced
}

// applyDiscount never returns a negative price: a discount exceeding the
// base clamps to zero.
func applyDiscount(base int64, discount bookingapi.Discount) int64 {
	value := discount.Value
	if value < 0 {
		value = 0
	}

	switch discount.Type {
	case bookingapi.DiscountPercentage:
		value = clampPercentage(value)
		return int64(math.Round(float64(base) * (100 - value) / 100))
	case bookingapi.DiscountAmount:
		discounted := base - int64(math.Round(value))
		if discounted < 0 {
			return 0
		}
		return discounted
	default:
		return base
	}
}

func clampPercentage(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
