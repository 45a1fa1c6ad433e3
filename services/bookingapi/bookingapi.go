package bookingapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	formcodec "github.com/go-playground/form/v4"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
)

// BookingForm is the finalized item/service selection posted by the
// storefront when the shopper proceeds to payment.
type BookingForm struct {
	Currency        string       `form:"currency"`
	Items           []LineItem   `form:"items"`
	WebsiteDiscount Discount     `form:"websiteDiscount"`
	Schedule        ScheduleSlot `form:"schedule"`
	Customer        Customer     `form:"customer"`
	Display         Display      `form:"display"`
	ReturnURL       string       `form:"returnUrl"`
}

type Customer struct {
	FirstName   string  `form:"firstName"`
	LastName    string  `form:"lastName"`
	Email       string  `form:"email"`
	PhoneNumber string  `form:"phone"`
	Address     Address `form:"address"`
}

type Address struct {
	Street      string `form:"street"`
	HouseNumber string `form:"houseNumber"`
	PostalCode  string `form:"postalCode"`
	City        string `form:"city"`
	Country     string `form:"country"`
}

func NewFromRequest(r *http.Request) (BookingForm, error) {
	err := r.ParseForm()
	if err != nil {
		return BookingForm{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (BookingForm, error) {
	booking := BookingForm{}
	err := formcodec.NewDecoder().Decode(&booking, values)
	if err != nil {
		return booking, fmt.Errorf("error decoding form: %s", err)
	}

	return booking, nil
}

func (f BookingForm) ToForm() (url.Values, error) {
	values, err := formcodec.NewEncoder().Encode(f)
	if err != nil {
		return nil, fmt.Errorf("error encoding form: %s", err)
	}

	return values, nil
}

// Validate checks the locally resolvable required fields. Failures here
// block submission and never reach the network. Device sales and
// accessories are shipped, so those bookings also need a delivery address.
func (f BookingForm) Validate(domain Domain) error {
	missing := []string{}

	if len(f.Items) == 0 {
		missing = append(missing, "items")
	}
	if f.Currency == "" {
		missing = append(missing, "currency")
	}
	if f.Customer.FirstName == "" || f.Customer.LastName == "" {
		missing = append(missing, "customer name")
	}
	if f.Customer.Email == "" {
		missing = append(missing, "customer email")
	}
	if f.Customer.PhoneNumber == "" {
		missing = append(missing, "customer phone")
	}
	if domain == DomainDeviceSale || domain == DomainAccessory {
		if !f.Customer.Address.isComplete() {
			missing = append(missing, "delivery address")
		}
	}

	if len(missing) > 0 {
		return myerrors.NewInvalidInputErrorf("missing mandatory field(s): %s", strings.Join(missing, ", "))
	}

	return nil
}

func (a Address) isComplete() bool {
	return a.Street != "" && a.HouseNumber != "" && a.PostalCode != "" && a.City != ""
}
