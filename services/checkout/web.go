package checkout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deviceclinic/bookingbackend/lib/mycontext"
	"github.com/deviceclinic/bookingbackend/lib/myhttp"
	"github.com/deviceclinic/bookingbackend/lib/mylog"
	"github.com/deviceclinic/bookingbackend/lib/mypublisher"
	"github.com/deviceclinic/bookingbackend/lib/mysession"
	"github.com/deviceclinic/bookingbackend/lib/mystore"
	"github.com/deviceclinic/bookingbackend/lib/mytime"
	"github.com/deviceclinic/bookingbackend/lib/myuuid"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
	"github.com/deviceclinic/bookingbackend/services/orderapi"
	"github.com/deviceclinic/bookingbackend/services/pricing"
)

const sessionCookieName = "bsid"

type webService struct {
	logger  mylog.Logger
	uuider  myuuid.UUIDer
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(nower mytime.Nower, uuider myuuid.UUIDer,
	checkoutStore mystore.Store[CheckoutContext], session mysession.KeyValueStore,
	codec bookingapi.Codec, pricer *pricing.Service, orderClient orderapi.Client,
	provider PaymentProvider, publisher mypublisher.Publisher) *webService {
	logger := mylog.New("checkout")

	return &webService{
		logger:  logger,
		uuider:  uuider,
		service: newService(logger, nower, uuider, checkoutStore, session, codec, pricer, orderClient, provider, publisher),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/checkout/return", s.resumeFromRedirectPage()).Methods("GET")
	router.HandleFunc("/checkout/{domain}", s.startCheckoutPage()).Methods("POST")
	router.HandleFunc("/checkout/{bookingUID}/payment", s.submitPaymentPage()).Methods("POST")
	router.HandleFunc("/checkout/{bookingUID}/status", s.statusPage()).Methods("GET")

	return nil
}

func (s *webService) startCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		domain := bookingapi.Domain(mux.Vars(r)["domain"])

		form, err := bookingapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		pageInfo, err := s.service.startCheckout(c, s.sessionUID(w, r), domain, form)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, pageInfo)
	}
}

func (s *webService) submitPaymentPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		bookingUID := mux.Vars(r)["bookingUID"]

		err := r.ParseForm()
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		returnURL := r.Form.Get("returnUrl")
		if returnURL == "" {
			returnURL = myhttp.HostnameWithScheme(r) + "/checkout/return"
		}

		outcome, err := s.service.submitPayment(c, bookingUID, ConfirmParams{
			PaymentMethodID: r.Form.Get("paymentMethodId"),
			ReturnURL:       returnURL,
		})
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, outcome)
	}
}

func (s *webService) resumeFromRedirectPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		outcome, err := s.service.resumeFromRedirect(c, s.sessionUID(w, r),
			r.URL.Query().Get("payment_intent"),
			r.URL.Query().Get("payment_intent_client_secret"))
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		http.Redirect(w, r, outcomeRedirectURL(outcome), http.StatusSeeOther)
	}
}

func (s *webService) statusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		outcome, err := s.service.getStatus(c, mux.Vars(r)["bookingUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, outcome)
	}
}

// sessionUID identifies the browsing session through an opaque cookie,
// minting one on first contact.
func (s *webService) sessionUID(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	uid := s.uuider.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return uid
}

func outcomeRedirectURL(outcome Outcome) string {
	if outcome.SuccessURL != "" {
		return outcome.SuccessURL
	}
	if outcome.RedirectURL != "" {
		return outcome.RedirectURL
	}
	return fmt.Sprintf("/payment/%s?status=%s", outcome.BookingUID, outcome.Status)
}
