package pricing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

var exampleItems = []bookingapi.LineItem{
	{Name: "Screen replacement", Quantity: 1, UnitPrice: 10000, Discount: bookingapi.Discount{Type: bookingapi.DiscountPercentage, Value: 10}},
	{Name: "Battery replacement", Quantity: 1, UnitPrice: 5000},
}

var exampleWebsiteDiscount = bookingapi.Discount{Type: bookingapi.DiscountAmount, Value: 500}

func TestPriceBookingUsesAuthoritativeFigures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := context.TODO()

	calculator := NewMockCalculator(ctrl)
	calculator.EXPECT().
		Calculate(gomock.Any(), bookingapi.DomainRepair, gomock.Any()).
		Return(CalculationResponse{
			Subtotal:       15000,
			DiscountAmount: 1500,
			VAT:            2700,
			TotalAmount:    16200,
		}, nil)

	breakdown, priced := NewService(calculator).PriceBooking(c, bookingapi.DomainRepair, "EUR", exampleItems, exampleWebsiteDiscount)

	assert.False(t, breakdown.Estimated)
	assert.Equal(t, int64(15000), breakdown.Subtotal)
	assert.Equal(t, int64(1500), breakdown.TotalDiscount)
	assert.Equal(t, int64(2700), breakdown.VATAmount)
	assert.Equal(t, int64(16200), breakdown.TotalAmount)
	assert.Equal(t, int64(9000), priced[0].FinalPrice)
	assert.Equal(t, int64(5000), priced[1].FinalPrice)
}

func TestPriceBookingReconcilesSilently(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := context.TODO()

	// The authority disagrees with the local figures. Its total wins without
	// failing the booking.
	calculator := NewMockCalculator(ctrl)
	calculator.EXPECT().
		Calculate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(CalculationResponse{
			Subtotal:       15000,
			DiscountAmount: 1500,
			VAT:            2760,
			TotalAmount:    16260,
		}, nil)

	breakdown, _ := NewService(calculator).PriceBooking(c, bookingapi.DomainRepair, "EUR", exampleItems, exampleWebsiteDiscount)

	assert.False(t, breakdown.Estimated)
	assert.Equal(t, int64(16260), breakdown.TotalAmount)
}

func TestPriceBookingKeepsBreakdownConsistent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := context.TODO()

	// The authority reports a higher subtotal and a bigger total discount
	// than computed locally. The derived fields must follow the
	// authoritative aggregates, not the local estimate.
	calculator := NewMockCalculator(ctrl)
	calculator.EXPECT().
		Calculate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(CalculationResponse{
			Subtotal:       15200,
			DiscountAmount: 1700,
			VAT:            2700,
			TotalAmount:    16200,
		}, nil)

	breakdown, _ := NewService(calculator).PriceBooking(c, bookingapi.DomainRepair, "EUR", exampleItems, exampleWebsiteDiscount)

	assert.Equal(t, int64(15200), breakdown.Subtotal)
	assert.Equal(t, int64(1000), breakdown.ItemDiscount)
	assert.Equal(t, int64(14200), breakdown.PriceAfterItemDiscount)
	assert.Equal(t, int64(700), breakdown.WebsiteDiscountAmount)
	assert.Equal(t, int64(1700), breakdown.TotalDiscount)
	assert.Equal(t, breakdown.Subtotal, breakdown.ItemDiscount+breakdown.PriceAfterItemDiscount)
	assert.Equal(t, breakdown.TotalDiscount, breakdown.ItemDiscount+breakdown.WebsiteDiscountAmount)
}

func TestPriceBookingFallsBackToEstimate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := context.TODO()

	calculator := NewMockCalculator(ctrl)
	calculator.EXPECT().
		Calculate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(CalculationResponse{}, fmt.Errorf("connection refused"))

	breakdown, priced := NewService(calculator).PriceBooking(c, bookingapi.DomainRepair, "EUR", exampleItems, exampleWebsiteDiscount)

	assert.True(t, breakdown.Estimated)
	assert.Equal(t, int64(15000), breakdown.Subtotal)
	assert.Equal(t, int64(1000), breakdown.ItemDiscount)
	assert.Equal(t, int64(14000), breakdown.PriceAfterItemDiscount)
	assert.Equal(t, int64(500), breakdown.WebsiteDiscountAmount)
	assert.Equal(t, int64(2700), breakdown.VATAmount)
	assert.Equal(t, int64(16200), breakdown.TotalAmount)
	assert.Len(t, priced, 2)
}

func TestCalculationRequestWireShape(t *testing.T) {
	req := calculationRequest("EUR", exampleItems, exampleWebsiteDiscount)

	assert.Equal(t, "EUR", req.Currency)
	assert.Len(t, req.Items, 2)
	assert.Equal(t, "percentage", req.Items[0].Discount.Type)
	assert.Nil(t, req.Items[1].Discount, "undiscounted lines omit the discount")
	assert.Equal(t, "amount", req.WebsiteDiscount.Type)
	assert.Equal(t, float64(500), req.WebsiteDiscount.Value)
}
