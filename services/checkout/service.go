package checkout

import (
	"context"
	"fmt"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/lib/mylog"
	"github.com/deviceclinic/bookingbackend/lib/mypublisher"
	"github.com/deviceclinic/bookingbackend/lib/mysession"
	"github.com/deviceclinic/bookingbackend/lib/mystore"
	"github.com/deviceclinic/bookingbackend/lib/mytime"
	"github.com/deviceclinic/bookingbackend/lib/myuuid"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
	"github.com/deviceclinic/bookingbackend/services/bookingevents"
	"github.com/deviceclinic/bookingbackend/services/orderapi"
	"github.com/deviceclinic/bookingbackend/services/pricing"
	"github.com/deviceclinic/bookingbackend/services/schedule"
)

type service struct {
	logger        mylog.Logger
	nower         mytime.Nower
	uuider        myuuid.UUIDer
	checkoutStore mystore.Store[CheckoutContext]
	session       mysession.KeyValueStore
	codec         bookingapi.Codec
	pricer        *pricing.Service
	orderClient   orderapi.Client
	provider      PaymentProvider
	publisher     mypublisher.Publisher
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(logger mylog.Logger, nower mytime.Nower, uuider myuuid.UUIDer,
	checkoutStore mystore.Store[CheckoutContext], session mysession.KeyValueStore,
	codec bookingapi.Codec, pricer *pricing.Service, orderClient orderapi.Client,
	provider PaymentProvider, publisher mypublisher.Publisher) *service {
	return &service{
		logger:        logger,
		nower:         nower,
		uuider:        uuider,
		checkoutStore: checkoutStore,
		session:       session,
		codec:         codec,
		pricer:        pricer,
		orderClient:   orderClient,
		provider:      provider,
		publisher:     publisher,
	}
}

// startCheckout turns a validated booking form into a backend order with a
// payment intent and parks the encoded booking-context in the shopper's
// session slot.
func (s *service) startCheckout(c context.Context, sessionUID string, domain bookingapi.Domain, form bookingapi.BookingForm) (CheckoutPageInfo, error) {
	if !domain.IsValid() {
		return CheckoutPageInfo{}, myerrors.NewInvalidInputErrorf("unknown booking domain %q", domain)
	}

	err := form.Validate(domain)
	if err != nil {
		return CheckoutPageInfo{}, err
	}

	if domain == bookingapi.DomainRepair {
		result := schedule.Validate(form.Schedule)
		if !result.Valid {
			return CheckoutPageInfo{}, myerrors.NewInvalidInputErrorf("%s", result.Reason)
		}
	}

	bookingUID := s.uuider.Create()
	now := s.nower.Now()

	s.logger.Log(c, bookingUID, mylog.SeverityInfo, "Start %s checkout %s", domain, bookingUID)

	breakdown, pricedItems := s.pricer.PriceBooking(c, domain, form.Currency, form.Items, form.WebsiteDiscount)

	orderResp, err := s.orderClient.CreateOrder(c, domain, createOrderRequest(domain, form, breakdown, pricedItems))
	if err != nil {
		return CheckoutPageInfo{}, err
	}

	booking := bookingapi.BookingContext{
		BookingUID:      bookingUID,
		Domain:          domain,
		Amount:          breakdown.TotalAmount,
		Currency:        form.Currency,
		Items:           pricedItems,
		OrderID:         orderResp.OrderUID,
		PaymentIntentID: orderResp.PaymentIntentID,
		ClientSecret:    orderResp.ClientSecret,
		Schedule:        scheduleOf(domain, form.Schedule),
		PriceBreakdown:  breakdown,
		Display:         form.Display,
	}

	encoded, err := s.codec.Encode(booking)
	if err != nil {
		return CheckoutPageInfo{}, myerrors.NewInternalError(fmt.Errorf("error encoding booking-context: %s", err))
	}

	err = s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		err := s.checkoutStore.Put(c, bookingUID, CheckoutContext{
			BookingUID:      bookingUID,
			SessionUID:      sessionUID,
			PaymentIntentID: orderResp.PaymentIntentID,
			CreatedAt:       now,
			Booking:         booking,
			Attempt: PaymentAttempt{
				Status: AttemptCreated,
			},
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout: %s", err))
		}

		err = s.publisher.Publish(c, bookingevents.TopicName, bookingevents.BookingStarted{
			BookingUID:    bookingUID,
			Domain:        domain,
			AmountInCents: breakdown.TotalAmount,
			Currency:      form.Currency,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return CheckoutPageInfo{}, err
	}

	err = s.session.Set(c, sessionUID, bookingapi.SessionKeyBooking, encoded)
	if err != nil {
		return CheckoutPageInfo{}, myerrors.NewInternalError(fmt.Errorf("error storing session slot: %s", err))
	}

	return CheckoutPageInfo{
		BookingUID:   bookingUID,
		ClientSecret: orderResp.ClientSecret,
		Amount: Amount{
			Currency: form.Currency,
			Value:    breakdown.TotalAmount,
		},
		Breakdown: breakdown,
		Items:     pricedItems,
		Schedule:  booking.Schedule,
		Display:   form.Display,
	}, nil
}

// submitPayment is the immediate entry path: the shopper stayed on the
// payment page and the provider answers synchronously.
func (s *service) submitPayment(c context.Context, bookingUID string, params ConfirmParams) (Outcome, error) {
	checkoutContext, found, err := s.checkoutStore.Get(c, bookingUID)
	if err != nil {
		return Outcome{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
	}
	if !found {
		return Outcome{}, myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
	}

	if checkoutContext.Attempt.Confirmed {
		// Succeeded is terminal. A duplicate or delayed callback must not
		// re-confirm the intent.
		return Outcome{
			BookingUID: bookingUID,
			Status:     AttemptSucceeded,
			SuccessURL: postPurchaseURL(checkoutContext.Booking.Domain, bookingUID),
		}, nil
	}

	s.logger.Log(c, bookingUID, mylog.SeverityInfo, "Submit payment for booking %s", bookingUID)

	intent, err := s.provider.ConfirmPayment(c, checkoutContext.Booking.PaymentIntentID, params)
	if err != nil {
		// Payment declined or rejected before capture: report inline and
		// keep the booking intact so the shopper can retry.
		outcome, markErr := s.markAttempt(c, bookingUID, AttemptFailed, Intent{}, err.Error())
		if markErr != nil {
			return Outcome{}, markErr
		}
		return outcome, nil
	}

	return s.handlePaymentStatus(c, checkoutContext, intent)
}

// resumeFromRedirect is the redirect-return entry path. The query string
// identifies the intent but carries no trustworthy status, so the provider
// is consulted before anything else happens.
func (s *service) resumeFromRedirect(c context.Context, sessionUID string, paymentIntentID string, clientSecret string) (Outcome, error) {
	if paymentIntentID == "" || clientSecret == "" {
		return Outcome{}, myerrors.NewInvalidInputErrorf("missing payment_intent or payment_intent_client_secret")
	}

	s.logger.Log(c, paymentIntentID, mylog.SeverityInfo, "Resume checkout from redirect for intent %s", paymentIntentID)

	intent, err := s.provider.RetrievePaymentIntent(c, paymentIntentID, clientSecret)
	if err != nil {
		return Outcome{}, err
	}

	booking, found, err := s.locateBooking(c, sessionUID, paymentIntentID)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return Outcome{}, myerrors.NewNotFoundError(fmt.Errorf("no active booking for intent %s", paymentIntentID))
	}

	checkoutContext, found, err := s.checkoutStore.Get(c, booking.BookingUID)
	if err != nil {
		return Outcome{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", booking.BookingUID, err))
	}
	if !found {
		return Outcome{}, myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", booking.BookingUID))
	}

	return s.handlePaymentStatus(c, checkoutContext, intent)
}

func (s *service) getStatus(c context.Context, bookingUID string) (Outcome, error) {
	checkoutContext, found, err := s.checkoutStore.Get(c, bookingUID)
	if err != nil {
		return Outcome{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
	}
	if !found {
		return Outcome{}, myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
	}

	outcome := Outcome{
		BookingUID: bookingUID,
		Status:     checkoutContext.Attempt.Status,
		Message:    checkoutContext.Attempt.FailureMessage,
	}
	if checkoutContext.Attempt.Confirmed {
		outcome.SuccessURL = postPurchaseURL(checkoutContext.Booking.Domain, bookingUID)
	}

	return outcome, nil
}

// locateBooking finds the booking-context belonging to this browsing
// session. The current slot is tried first, then the legacy plain-JSON
// slot, then the checkout store. An undecodable slot degrades to
// not-found.
func (s *service) locateBooking(c context.Context, sessionUID string, paymentIntentID string) (bookingapi.BookingContext, bool, error) {
	for _, key := range []string{bookingapi.SessionKeyBooking, bookingapi.SessionKeyLegacyBooking} {
		raw, exists, err := s.session.Get(c, sessionUID, key)
		if err != nil {
			return bookingapi.BookingContext{}, false, myerrors.NewInternalError(fmt.Errorf("error reading session slot %s: %s", key, err))
		}
		if !exists {
			continue
		}

		booking, ok := s.codec.Decode(raw)
		if !ok {
			s.logger.Log(c, sessionUID, mylog.SeverityWarn, "Undecodable booking-context in session slot %s", key)
			continue
		}
		if booking.PaymentIntentID != paymentIntentID {
			continue
		}

		return booking, true, nil
	}

	// A confirmed payment clears the session slots but keeps the checkout
	// record, so a late redirect-return is resolved through the store.
	records, err := s.checkoutStore.Query(c, []mystore.Filter{
		{Field: "PaymentIntentID", Compare: "=", Value: paymentIntentID},
	}, "")
	if err != nil {
		return bookingapi.BookingContext{}, false, myerrors.NewInternalError(fmt.Errorf("error querying checkouts for intent %s: %s", paymentIntentID, err))
	}
	for _, record := range records {
		if record.SessionUID == sessionUID && record.PaymentIntentID == paymentIntentID {
			return record.Booking, true, nil
		}
	}

	return bookingapi.BookingContext{}, false, nil
}

// handlePaymentStatus is where both entry paths converge.
func (s *service) handlePaymentStatus(c context.Context, checkoutContext CheckoutContext, intent Intent) (Outcome, error) {
	bookingUID := checkoutContext.BookingUID

	s.logger.Log(c, bookingUID, mylog.SeverityInfo, "Payment intent %s for booking %s -> %s", intent.ID, bookingUID, intent.Status)

	switch intent.Status {
	case AttemptSucceeded:
		return s.completeSuccessfulPayment(c, bookingUID, intent)

	case AttemptProcessing:
		return s.markAttempt(c, bookingUID, AttemptProcessing, intent, "")

	case AttemptRequiresAction:
		outcome, err := s.markAttempt(c, bookingUID, AttemptRequiresAction, intent, "")
		if err != nil {
			return Outcome{}, err
		}
		outcome.RedirectURL = intent.NextActionURL
		return outcome, nil

	default:
		return s.markAttempt(c, bookingUID, AttemptFailed, intent, "payment was not completed")
	}
}

// completeSuccessfulPayment reconciles a captured payment with the order
// backend. The ConfirmationSent guard is flipped inside a transaction
// before the confirm call goes out, so concurrent entry paths issue at
// most one confirmation.
func (s *service) completeSuccessfulPayment(c context.Context, bookingUID string, intent Intent) (Outcome, error) {
	now := s.nower.Now()

	alreadyHandled := false
	alreadyConfirmed := false
	booking := bookingapi.BookingContext{}
	sessionUID := ""

	err := s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		current, found, err := s.checkoutStore.Get(c, bookingUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
		}

		booking = current.Booking
		sessionUID = current.SessionUID

		if current.Attempt.ConfirmationSent {
			alreadyHandled = true
			alreadyConfirmed = current.Attempt.Confirmed
			return nil
		}

		current.Attempt.Status = AttemptSucceeded
		current.Attempt.ConfirmationSent = true
		current.Attempt.PaymentMethod = intent.PaymentMethod
		current.LastModified = &now

		return s.checkoutStore.Put(c, bookingUID, current)
	})
	if err != nil {
		return Outcome{}, err
	}

	if alreadyHandled {
		// The other entry path got here first. Never confirm twice.
		outcome := Outcome{
			BookingUID: bookingUID,
			Status:     AttemptSucceeded,
		}
		if alreadyConfirmed {
			outcome.SuccessURL = postPurchaseURL(booking.Domain, bookingUID)
		} else {
			outcome.Message = "confirmation in progress"
		}
		return outcome, nil
	}

	err = s.orderClient.ConfirmPayment(c, booking.Domain, booking.OrderID, booking.PaymentIntentID)
	if err != nil {
		return Outcome{}, s.handleConfirmationFailure(c, bookingUID, booking, err)
	}

	err = s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		current, found, err := s.checkoutStore.Get(c, bookingUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
		}

		current.Attempt.Confirmed = true
		current.LastModified = &now

		err = s.checkoutStore.Put(c, bookingUID, current)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout: %s", err))
		}

		err = s.publisher.Publish(c, bookingevents.TopicName, bookingevents.BookingCompleted{
			BookingUID:      bookingUID,
			Domain:          booking.Domain,
			Status:          string(AttemptSucceeded),
			PaymentIntentID: booking.PaymentIntentID,
			PaymentMethod:   intent.PaymentMethod,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	// Backend acknowledged: only now may the session slot be cleared.
	s.clearSessionSlots(c, sessionUID)

	s.logger.Log(c, bookingUID, mylog.SeverityInfo, "Booking %s completed and confirmed", bookingUID)

	return Outcome{
		BookingUID: bookingUID,
		Status:     AttemptSucceeded,
		SuccessURL: postPurchaseURL(booking.Domain, bookingUID),
	}, nil
}

// handleConfirmationFailure deals with the worst spot in the flow: the
// shopper has been charged but the order backend did not acknowledge. The
// guard is rolled back so a later attempt may retry the confirmation, the
// session slot stays, and no reversal is attempted.
func (s *service) handleConfirmationFailure(c context.Context, bookingUID string, booking bookingapi.BookingContext, confirmErr error) error {
	now := s.nower.Now()

	s.logger.Log(c, bookingUID, mylog.SeverityError, "Payment %s captured but confirmation of order %s failed: %s", booking.PaymentIntentID, booking.OrderID, confirmErr)

	err := s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		current, found, err := s.checkoutStore.Get(c, bookingUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
		}

		current.Attempt.ConfirmationSent = false
		current.Attempt.FailureMessage = confirmErr.Error()
		current.LastModified = &now

		err = s.checkoutStore.Put(c, bookingUID, current)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout: %s", err))
		}

		err = s.publisher.Publish(c, bookingevents.TopicName, bookingevents.ConfirmationFailed{
			BookingUID:      bookingUID,
			Domain:          booking.Domain,
			OrderUID:        booking.OrderID,
			PaymentIntentID: booking.PaymentIntentID,
			Reason:          confirmErr.Error(),
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		s.logger.Log(c, bookingUID, mylog.SeverityError, "Error recording confirmation failure for booking %s: %s", bookingUID, err)
	}

	return myerrors.NewConflictError(fmt.Errorf("payment %s captured but confirmation of order %s failed: %s", booking.PaymentIntentID, booking.OrderID, confirmErr))
}

func (s *service) markAttempt(c context.Context, bookingUID string, status AttemptStatus, intent Intent, message string) (Outcome, error) {
	now := s.nower.Now()

	confirmedDomain := bookingapi.Domain("")

	err := s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		current, found, err := s.checkoutStore.Get(c, bookingUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", bookingUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("booking %s not found", bookingUID))
		}

		if current.Attempt.Confirmed {
			// A confirmed attempt is terminal: a stale provider callback
			// must not downgrade it.
			confirmedDomain = current.Booking.Domain
			return nil
		}

		current.Attempt.Status = status
		current.Attempt.FailureMessage = message
		if intent.PaymentMethod != "" {
			current.Attempt.PaymentMethod = intent.PaymentMethod
		}
		current.LastModified = &now

		return s.checkoutStore.Put(c, bookingUID, current)
	})
	if err != nil {
		return Outcome{}, err
	}

	if confirmedDomain != "" {
		s.logger.Log(c, bookingUID, mylog.SeverityInfo, "Ignoring stale %s callback for confirmed booking %s", status, bookingUID)
		return Outcome{
			BookingUID: bookingUID,
			Status:     AttemptSucceeded,
			SuccessURL: postPurchaseURL(confirmedDomain, bookingUID),
		}, nil
	}

	return Outcome{
		BookingUID: bookingUID,
		Status:     status,
		Message:    message,
	}, nil
}

func (s *service) clearSessionSlots(c context.Context, sessionUID string) {
	for _, key := range []string{bookingapi.SessionKeyBooking, bookingapi.SessionKeyLegacyBooking} {
		err := s.session.Remove(c, sessionUID, key)
		if err != nil {
			s.logger.Log(c, sessionUID, mylog.SeverityWarn, "Error clearing session slot %s: %s", key, err)
		}
	}
}

func createOrderRequest(domain bookingapi.Domain, form bookingapi.BookingForm, breakdown bookingapi.PriceBreakdown, items []bookingapi.LineItem) orderapi.CreateOrderRequest {
	req := orderapi.CreateOrderRequest{
		Currency: form.Currency,
		Amount:   breakdown.TotalAmount,
		Customer: orderapi.Customer{
			FirstName:   form.Customer.FirstName,
			LastName:    form.Customer.LastName,
			Email:       form.Customer.Email,
			PhoneNumber: form.Customer.PhoneNumber,
			Street:      form.Customer.Address.Street,
			HouseNumber: form.Customer.Address.HouseNumber,
			PostalCode:  form.Customer.Address.PostalCode,
			City:        form.Customer.Address.City,
			Country:     form.Customer.Address.Country,
		},
	}

	for _, item := range items {
		req.Items = append(req.Items, orderapi.OrderItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			FinalPrice: item.FinalPrice,
		})
	}

	if domain == bookingapi.DomainRepair && form.Schedule.Date != "" {
		req.Schedule = form.Schedule.Date + "T" + form.Schedule.Time
	}

	return req
}

func scheduleOf(domain bookingapi.Domain, slot bookingapi.ScheduleSlot) *bookingapi.ScheduleSlot {
	if domain != bookingapi.DomainRepair {
		return nil
	}
	return &slot
}

func postPurchaseURL(domain bookingapi.Domain, bookingUID string) string {
	switch domain {
	case bookingapi.DomainDeviceSale:
		return fmt.Sprintf("/booking/device/%s/confirmed", bookingUID)
	case bookingapi.DomainAccessory:
		return fmt.Sprintf("/booking/accessory/%s/confirmed", bookingUID)
	default:
		return fmt.Sprintf("/booking/repair/%s/confirmed", bookingUID)
	}
}
