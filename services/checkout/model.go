package checkout

import (
	"fmt"
	"time"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

// AttemptStatus is the provider-independent state of a payment attempt.
type AttemptStatus string

const (
	AttemptCreated        AttemptStatus = "created"
	AttemptProcessing     AttemptStatus = "processing"
	AttemptRequiresAction AttemptStatus = "requires_action"
	AttemptSucceeded      AttemptStatus = "succeeded"
	AttemptFailed         AttemptStatus = "failed"
)

// PaymentAttempt travels inside the stored checkout record so that the
// ConfirmationSent guard is shared by the immediate and redirect-return
// paths.
type PaymentAttempt struct {
	Status           AttemptStatus
	ConfirmationSent bool
	Confirmed        bool
	PaymentMethod    string
	FailureMessage   string `datastore:",noindex"`
}

type CheckoutContext struct {
	BookingUID string
	SessionUID string
	// PaymentIntentID is duplicated out of Booking so the record can be
	// found by intent after the session slot is gone.
	PaymentIntentID string
	CreatedAt       time.Time
	LastModified    *time.Time
	Booking         bookingapi.BookingContext `datastore:",noindex"`
	Attempt         PaymentAttempt
}

type Amount struct {
	Currency string
	Value    int64
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %.2f", a.Currency, float64(a.Value)/100.0)
}

// CheckoutPageInfo is what the payment page needs to mount the payment
// element and render the order summary.
type CheckoutPageInfo struct {
	BookingUID   string
	ClientSecret string
	Amount       Amount
	Breakdown    bookingapi.PriceBreakdown
	Items        []bookingapi.LineItem
	Schedule     *bookingapi.ScheduleSlot
	Display      bookingapi.Display
}

// Outcome is the converged result of a payment attempt, whichever entry
// path produced it.
type Outcome struct {
	BookingUID  string
	Status      AttemptStatus
	RedirectURL string `json:",omitempty"` // provider action required
	SuccessURL  string `json:",omitempty"` // post-purchase page
	Message     string `json:",omitempty"`
}
