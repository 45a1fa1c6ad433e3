package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
	"github.com/deviceclinic/bookingbackend/services/bookingevents"
	"github.com/deviceclinic/bookingbackend/services/orderapi"
	"github.com/deviceclinic/bookingbackend/services/pricing"
)

func newRouter(t *testing.T, f *fixture) *mux.Router {
	router := mux.NewRouter()
	err := f.web.RegisterEndpoints(context.TODO(), router)
	assert.NoError(t, err)
	return router
}

func TestStartCheckoutPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)

	f.calculator.EXPECT().
		Calculate(gomock.Any(), bookingapi.DomainRepair, gomock.Any()).
		Return(pricing.CalculationResponse{
			Subtotal:       15000,
			DiscountAmount: 1500,
			VAT:            2700,
			TotalAmount:    16200,
		}, nil)
	f.orderClient.EXPECT().
		CreateOrder(gomock.Any(), bookingapi.DomainRepair, gomock.Any()).
		Return(orderapi.CreateOrderResponse{
			OrderUID:        "order-1",
			PaymentIntentID: "pi_1",
			ClientSecret:    "pi_1_secret",
		}, nil)
	f.publisher.EXPECT().
		Publish(gomock.Any(), bookingevents.TopicName, gomock.AssignableToTypeOf(bookingevents.BookingStarted{})).
		Return(nil)

	form := url.Values{}
	form.Set("currency", "EUR")
	form.Set("items[0].name", "Screen replacement")
	form.Set("items[0].quantity", "1")
	form.Set("items[0].unitPrice", "10000")
	form.Set("items[0].discount.type", "percentage")
	form.Set("items[0].discount.value", "10")
	form.Set("items[1].name", "Battery replacement")
	form.Set("items[1].quantity", "1")
	form.Set("items[1].unitPrice", "5000")
	form.Set("websiteDiscount.type", "amount")
	form.Set("websiteDiscount.value", "500")
	form.Set("schedule.date", "2025-03-03")
	form.Set("schedule.time", "14:30")
	form.Set("customer.firstName", "Marc")
	form.Set("customer.lastName", "Jansen")
	form.Set("customer.email", "marc@example.com")
	form.Set("customer.phone", "+31612345678")

	request := httptest.NewRequest(http.MethodPost, "/checkout/repair", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)

	pageInfo := CheckoutPageInfo{}
	err := json.Unmarshal(response.Body.Bytes(), &pageInfo)
	assert.NoError(t, err)
	assert.Equal(t, "booking-1", pageInfo.BookingUID)
	assert.Equal(t, "pi_1_secret", pageInfo.ClientSecret)
	assert.Equal(t, int64(16200), pageInfo.Amount.Value)

	// First contact mints a browsing-session cookie.
	cookies := response.Result().Cookies()
	assert.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
}

func TestStartCheckoutPageRejectsInvalidSlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)

	form := url.Values{}
	form.Set("currency", "EUR")
	form.Set("items[0].name", "Screen replacement")
	form.Set("items[0].quantity", "1")
	form.Set("items[0].unitPrice", "10000")
	form.Set("schedule.date", "2025-03-03")
	form.Set("schedule.time", "10:30")
	form.Set("customer.firstName", "Marc")
	form.Set("customer.lastName", "Jansen")
	form.Set("customer.email", "marc@example.com")
	form.Set("customer.phone", "+31612345678")

	request := httptest.NewRequest(http.MethodPost, "/checkout/repair", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Contains(t, response.Body.String(), "Monday appointments are available 14:00-19:00 only")
}

func TestRedirectReturnPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)
	f.seedBooking(t)

	f.provider.EXPECT().
		RetrievePaymentIntent(gomock.Any(), "pi_1", "pi_1_secret").
		Return(Intent{ID: "pi_1", Status: AttemptSucceeded, PaymentMethod: "ideal"}, nil)
	f.orderClient.EXPECT().
		ConfirmPayment(gomock.Any(), bookingapi.DomainRepair, "order-1", "pi_1").
		Return(nil)
	f.publisher.EXPECT().
		Publish(gomock.Any(), bookingevents.TopicName, gomock.AssignableToTypeOf(bookingevents.BookingCompleted{})).
		Return(nil)

	request := httptest.NewRequest(http.MethodGet, "/checkout/return?payment_intent=pi_1&payment_intent_client_secret=pi_1_secret", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-1"})
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusSeeOther, response.Code)
	assert.Equal(t, "/booking/repair/booking-1/confirmed", response.Header().Get("Location"))
	assert.False(t, f.sessionSlotExists(t))
}

func TestRedirectReturnPageWhileProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)
	f.seedBooking(t)

	f.provider.EXPECT().
		RetrievePaymentIntent(gomock.Any(), "pi_1", "pi_1_secret").
		Return(Intent{ID: "pi_1", Status: AttemptProcessing}, nil)

	request := httptest.NewRequest(http.MethodGet, "/checkout/return?payment_intent=pi_1&payment_intent_client_secret=pi_1_secret", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-1"})
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusSeeOther, response.Code)
	assert.Equal(t, "/payment/booking-1?status=processing", response.Header().Get("Location"))
	assert.True(t, f.sessionSlotExists(t))
}

func TestStatusPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)
	f.seedBooking(t)

	request := httptest.NewRequest(http.MethodGet, "/checkout/booking-1/status", nil)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)

	outcome := Outcome{}
	err := json.Unmarshal(response.Body.Bytes(), &outcome)
	assert.NoError(t, err)
	assert.Equal(t, "booking-1", outcome.BookingUID)
	assert.Equal(t, AttemptCreated, outcome.Status)
}

func TestSubmitPaymentPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	router := newRouter(t, f)
	f.seedBooking(t)

	f.provider.EXPECT().
		ConfirmPayment(gomock.Any(), "pi_1", gomock.Any()).
		Return(Intent{ID: "pi_1", Status: AttemptRequiresAction, NextActionURL: "https://bank.example.com/3ds"}, nil)

	form := url.Values{}
	form.Set("paymentMethodId", "pm_1")

	request := httptest.NewRequest(http.MethodPost, "/checkout/booking-1/payment", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)

	outcome := Outcome{}
	err := json.Unmarshal(response.Body.Bytes(), &outcome)
	assert.NoError(t, err)
	assert.Equal(t, AttemptRequiresAction, outcome.Status)
	assert.Equal(t, "https://bank.example.com/3ds", outcome.RedirectURL)
}
