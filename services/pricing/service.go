package pricing

import (
	"context"

	"github.com/deviceclinic/bookingbackend/lib/mylog"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

type Service struct {
	calculator Calculator
	logger     mylog.Logger
}

func NewService(calculator Calculator) *Service {
	return &Service{
		calculator: calculator,
		logger:     mylog.New("pricing"),
	}
}

// PriceBooking computes the price breakdown for a booking and the discounted
// per-line prices. The breakdown is always derived locally first so the
// shopper sees figures even when the pricing authority is down; when the
// authority does answer, its figures win.
func (s *Service) PriceBooking(c context.Context, domain bookingapi.Domain, currency string, items []bookingapi.LineItem, websiteDiscount bookingapi.Discount) (bookingapi.PriceBreakdown, []bookingapi.LineItem) {
	local := ComputeBreakdown(currency, items, websiteDiscount)
	pricedItems := ApplyLineDiscounts(items)

	if local.Clamped {
		s.logger.Log(c, "", mylog.SeverityError, "Negative total clamped to zero for %s booking, discount data needs attention", domain)
	}

	resp, err := s.calculator.Calculate(c, domain, calculationRequest(currency, items, websiteDiscount))
	if err != nil {
		s.logger.Log(c, "", mylog.SeverityWarn, "Pricing authority unreachable for %s booking, using estimated figures: %s", domain, err)
		local.Estimated = true
		return local, pricedItems
	}

	breakdown := local
	breakdown.Subtotal = resp.Subtotal
	breakdown.TotalDiscount = resp.DiscountAmount
	breakdown.WebsiteDiscountPercentage = resp.DiscountPercentage
	breakdown.VATAmount = resp.VAT
	breakdown.TotalAmount = resp.TotalAmount

	// Re-derive the dependent fields from the authoritative aggregates so
	// the displayed breakdown stays internally consistent even when the
	// authority disagrees with the local figures.
	breakdown.PriceAfterItemDiscount = breakdown.Subtotal - breakdown.ItemDiscount
	if breakdown.WebsiteDiscountPercentage != 0 {
		breakdown.WebsiteDiscountAmount = 0
	} else {
		breakdown.WebsiteDiscountAmount = breakdown.TotalDiscount - breakdown.ItemDiscount
		if breakdown.WebsiteDiscountAmount < 0 {
			breakdown.WebsiteDiscountAmount = 0
		}
	}

	if breakdown.TotalAmount != local.TotalAmount {
		s.logger.Log(c, "", mylog.SeverityWarn, "Pricing discrepancy for %s booking: local total %d, authoritative total %d", domain, local.TotalAmount, breakdown.TotalAmount)
	}

	return breakdown, pricedItems
}

func calculationRequest(currency string, items []bookingapi.LineItem, websiteDiscount bookingapi.Discount) CalculationRequest {
	req := CalculationRequest{
		Currency:        currency,
		WebsiteDiscount: discountSpec(websiteDiscount),
	}
	for _, item := range items {
		req.Items = append(req.Items, CalculationItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  discountSpec(item.Discount),
		})
	}
	return req
}

func discountSpec(discount bookingapi.Discount) *DiscountSpec {
	if discount.Type == "" || discount.Type == bookingapi.DiscountNone {
		return nil
	}
	return &DiscountSpec{
		Type:  string(discount.Type),
		Value: discount.Value,
	}
}
