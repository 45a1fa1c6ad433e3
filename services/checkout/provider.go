package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
)

type ConfirmParams struct {
	PaymentMethodID string
	ReturnURL       string
}

// Intent is the provider-independent view of a payment intent.
type Intent struct {
	ID            string
	Status        AttemptStatus
	PaymentMethod string
	NextActionURL string
}

//go:generate mockgen -source=provider.go -package checkout -destination provider_mock.go PaymentProvider
type PaymentProvider interface {
	ConfirmPayment(c context.Context, paymentIntentID string, params ConfirmParams) (Intent, error)
	RetrievePaymentIntent(c context.Context, paymentIntentID string, clientSecret string) (Intent, error)
}

type stripeProvider struct{}

func NewPaymentProvider(apiKey string) PaymentProvider {
	stripe.Key = apiKey
	return &stripeProvider{}
}

func (p *stripeProvider) ConfirmPayment(c context.Context, paymentIntentID string, params ConfirmParams) (Intent, error) {
	confirmParams := &stripe.PaymentIntentConfirmParams{}
	confirmParams.Context = c
	if params.PaymentMethodID != "" {
		confirmParams.PaymentMethod = stripe.String(params.PaymentMethodID)
	}
	if params.ReturnURL != "" {
		confirmParams.ReturnURL = stripe.String(params.ReturnURL)
	}

	intent, err := paymentintent.Confirm(paymentIntentID, confirmParams)
	if err != nil {
		return Intent{}, myerrors.NewInvalidInputError(fmt.Errorf("error confirming payment intent %s: %s", paymentIntentID, err))
	}

	return intentFromStripe(intent), nil
}

func (p *stripeProvider) RetrievePaymentIntent(c context.Context, paymentIntentID string, clientSecret string) (Intent, error) {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = c
	if clientSecret != "" {
		getParams.ClientSecret = stripe.String(clientSecret)
	}

	intent, err := paymentintent.Get(paymentIntentID, getParams)
	if err != nil {
		return Intent{}, myerrors.NewUnavailableError(fmt.Errorf("error retrieving payment intent %s: %s", paymentIntentID, err))
	}

	return intentFromStripe(intent), nil
}

func intentFromStripe(intent *stripe.PaymentIntent) Intent {
	result := Intent{
		ID:     intent.ID,
		Status: attemptStatus(intent.Status),
	}
	if intent.PaymentMethod != nil {
		result.PaymentMethod = string(intent.PaymentMethod.Type)
	}
	if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
		result.NextActionURL = intent.NextAction.RedirectToURL.URL
	}
	return result
}

func attemptStatus(status stripe.PaymentIntentStatus) AttemptStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return AttemptSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return AttemptProcessing
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return AttemptRequiresAction
	default:
		return AttemptFailed
	}
}
