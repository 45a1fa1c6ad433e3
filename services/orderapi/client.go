package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/lib/myhttpclient"
	"github.com/deviceclinic/bookingbackend/lib/mylog"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

//go:generate mockgen -source=client.go -package orderapi -destination client_mock.go Client
type Client interface {
	CreateOrder(c context.Context, domain bookingapi.Domain, req CreateOrderRequest) (CreateOrderResponse, error)
	ConfirmPayment(c context.Context, domain bookingapi.Domain, orderUID string, paymentIntentID string) error
}

type CreateOrderRequest struct {
	Currency string      `json:"currency"`
	Amount   int64       `json:"amount"`
	Items    []OrderItem `json:"items"`
	Customer Customer    `json:"customer"`
	Schedule string      `json:"schedule,omitempty"`
}

type OrderItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	FinalPrice int64  `json:"final_price"`
}

type Customer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

type CreateOrderResponse struct {
	OrderUID        string
	PaymentIntentID string
	ClientSecret    string
}

type backendClient struct {
	baseURL    string
	httpClient myhttpclient.HTTPSender
	logger     mylog.Logger
}

func NewClient(baseURL string, httpClient myhttpclient.HTTPSender) Client {
	return &backendClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     mylog.New("orderapi"),
	}
}

func (oc backendClient) CreateOrder(c context.Context, domain bookingapi.Domain, req CreateOrderRequest) (CreateOrderResponse, error) {
	family, err := ResourceFamily(domain)
	if err != nil {
		return CreateOrderResponse{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error marshalling order request: %s", err))
	}

	url := fmt.Sprintf("%s/%s/", oc.baseURL, family)
	httpStatus, respBody, err := oc.httpClient.Send(c, http.MethodPost, url, body)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewUnavailableError(fmt.Errorf("error creating %s order: %s", domain, err))
	}
	if httpStatus != http.StatusOK && httpStatus != http.StatusCreated {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error creating %s order: http status %d", domain, httpStatus))
	}

	wireResp := struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
		Payment struct {
			PaymentIntentID string `json:"payment_intent_id"`
			ClientSecret    string `json:"client_secret"`
		} `json:"payment"`
	}{}
	err = json.Unmarshal(respBody, &wireResp)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error parsing order response: %s", err))
	}

	if wireResp.Order.ID == "" || wireResp.Payment.ClientSecret == "" {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("incomplete order response for %s order", domain))
	}

	return CreateOrderResponse{
		OrderUID:        wireResp.Order.ID,
		PaymentIntentID: wireResp.Payment.PaymentIntentID,
		ClientSecret:    wireResp.Payment.ClientSecret,
	}, nil
}

// ConfirmPayment marks the order as paid in the order-management backend.
// A single, non-retried request: retry policy belongs to the orchestrator,
// and the backend de-duplicates on order uid.
func (oc backendClient) ConfirmPayment(c context.Context, domain bookingapi.Domain, orderUID string, paymentIntentID string) error {
	family, err := ResourceFamily(domain)
	if err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}{
		PaymentIntentID: paymentIntentID,
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error marshalling confirmation request: %s", err))
	}

	url := fmt.Sprintf("%s/%s/%s/confirm_payment/", oc.baseURL, family, orderUID)
	httpStatus, _, err := oc.httpClient.Send(c, http.MethodPost, url, body)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error confirming payment of order %s: %s", orderUID, err))
	}
	if httpStatus != http.StatusOK {
		return myerrors.NewInternalError(fmt.Errorf("error confirming payment of order %s: http status %d", orderUID, httpStatus))
	}

	oc.logger.Log(c, orderUID, mylog.SeverityInfo, "Confirmed payment of %s order %s (intent %s)", domain, orderUID, paymentIntentID)

	return nil
}
