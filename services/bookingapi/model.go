package bookingapi

import "fmt"

// Domain is the product family of a booking. It determines which backend
// resource family handles the order.
type Domain string

const (
	DomainRepair     Domain = "repair"
	DomainDeviceSale Domain = "device_sale"
	DomainAccessory  Domain = "accessory"
)

func (d Domain) IsValid() bool {
	switch d {
	case DomainRepair, DomainDeviceSale, DomainAccessory:
		return true
	}
	return false
}

type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// Discount is either a percentage in [0,100] or a fixed amount in minor units.
type Discount struct {
	Type  DiscountType `json:"type" form:"type"`
	Value float64      `json:"value" form:"value"`
}

// All monetary values are in minor units (cents).
type LineItem struct {
	Name       string   `json:"name" form:"name"`
	Quantity   int      `json:"quantity" form:"quantity"`
	UnitPrice  int64    `json:"unitPrice" form:"unitPrice"`
	FinalPrice int64    `json:"finalPrice" form:"finalPrice"`
	Discount   Discount `json:"discount" form:"discount"`
}

type PriceBreakdown struct {
	Currency                  string  `json:"currency"`
	Subtotal                  int64   `json:"subtotal"`
	ItemDiscount              int64   `json:"itemDiscount"`
	PriceAfterItemDiscount    int64   `json:"priceAfterItemDiscount"`
	WebsiteDiscountPercentage float64 `json:"websiteDiscountPercentage"`
	WebsiteDiscountAmount     int64   `json:"websiteDiscountAmount"`
	TotalDiscount             int64   `json:"totalDiscount"`
	VATRate                   float64 `json:"vatRate"`
	VATAmount                 int64   `json:"vatAmount"`
	TotalAmount               int64   `json:"totalAmount"`

	// Estimated is set when the pricing authority could not be reached and
	// the figures were computed from locally known base prices only.
	Estimated bool `json:"estimated,omitempty"`

	// Clamped signals that a negative total was clamped to zero. That is a
	// data error upstream, never something to charge or display.
	Clamped bool `json:"-"`
}

// ScheduleSlot is a requested repair appointment at minute resolution,
// expressed in the repair venue's local time.
type ScheduleSlot struct {
	Date string `json:"date" form:"date"` // 2006-01-02
	Time string `json:"time" form:"time"` // 15:04
}

func (s ScheduleSlot) String() string {
	return fmt.Sprintf("%s %s", s.Date, s.Time)
}

// Display carries denormalized human-readable fields for the read-only
// order summary.
type Display struct {
	ProductName string `json:"productName" form:"productName"`
	ModelName   string `json:"modelName" form:"modelName"`
	Brand       string `json:"brand" form:"brand"`
}

// BookingContext is the unit of state carried from the item-selection step
// to the payment step. It lives encoded in the shopper's session slot and
// is cleared only after a backend-acknowledged successful payment.
type BookingContext struct {
	BookingUID      string         `json:"bookingUid"`
	Domain          Domain         `json:"domain"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Items           []LineItem     `json:"items"`
	OrderID         string         `json:"orderId,omitempty"`
	PaymentIntentID string         `json:"paymentIntentId,omitempty"`
	ClientSecret    string         `json:"clientSecret,omitempty"`
	Schedule        *ScheduleSlot  `json:"schedule,omitempty"`
	PriceBreakdown  PriceBreakdown `json:"priceBreakdown"`
	Display         Display        `json:"display"`
}

const (
	// SessionKeyBooking is the session slot holding the encoded context.
	SessionKeyBooking = "bkp"
	// SessionKeyLegacyBooking is the plain-JSON slot written by older
	// sessions; read-only for backward compatibility.
	SessionKeyLegacyBooking = "bookingPayment"
)
