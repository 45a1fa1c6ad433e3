package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/lib/myhttpclient"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
	"github.com/deviceclinic/bookingbackend/services/orderapi"
)

//go:generate mockgen -source=calculator.go -package pricing -destination calculator_mock.go Calculator
type Calculator interface {
	Calculate(c context.Context, domain bookingapi.Domain, req CalculationRequest) (CalculationResponse, error)
}

type CalculationRequest struct {
	Currency        string            `json:"currency"`
	Items           []CalculationItem `json:"items"`
	WebsiteDiscount *DiscountSpec     `json:"website_discount,omitempty"`
}

type CalculationItem struct {
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	UnitPrice int64         `json:"unit_price"`
	Discount  *DiscountSpec `json:"discount,omitempty"`
}

type DiscountSpec struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// CalculationResponse holds the authoritative figures as reported by the
// order-management backend, in minor units.
type CalculationResponse struct {
	Subtotal           int64   `json:"subtotal"`
	DiscountAmount     int64   `json:"discount_amount"`
	DiscountPercentage float64 `json:"discount_percentage"`
	VAT                int64   `json:"vat"`
	TotalAmount        int64   `json:"total_amount"`
}

type httpCalculator struct {
	baseURL    string
	httpClient myhttpclient.HTTPSender
}

func NewCalculator(baseURL string, httpClient myhttpclient.HTTPSender) Calculator {
	return &httpCalculator{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (pc httpCalculator) Calculate(c context.Context, domain bookingapi.Domain, req CalculationRequest) (CalculationResponse, error) {
	family, err := orderapi.ResourceFamily(domain)
	if err != nil {
		return CalculationResponse{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return CalculationResponse{}, myerrors.NewInternalError(fmt.Errorf("error marshalling price calculation request: %s", err))
	}

	url := fmt.Sprintf("%s/%s/calculate_price/", pc.baseURL, family)
	httpStatus, respBody, err := pc.httpClient.Send(c, http.MethodPost, url, body)
	if err != nil {
		return CalculationResponse{}, myerrors.NewUnavailableError(fmt.Errorf("error calculating %s price: %s", domain, err))
	}
	if httpStatus != http.StatusOK {
		return CalculationResponse{}, myerrors.NewInternalError(fmt.Errorf("error calculating %s price: http status %d", domain, httpStatus))
	}

	resp := CalculationResponse{}
	err = json.Unmarshal(respBody, &resp)
	if err != nil {
		return CalculationResponse{}, myerrors.NewInternalError(fmt.Errorf("error parsing price calculation response: %s", err))
	}

	return resp, nil
}
