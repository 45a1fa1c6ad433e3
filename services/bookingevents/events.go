package bookingevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/lib/myevents"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

const (
	TopicName              = "booking"
	bookingStartedName     = TopicName + ".started"
	bookingCompletedName   = TopicName + ".completed"
	confirmationFailedName = TopicName + ".confirmationFailed"
)

type BookingEventService interface {
	Subscribe(c context.Context) error
	OnBookingStarted(c context.Context, topic string, event BookingStarted) error
	OnBookingCompleted(c context.Context, topic string, event BookingCompleted) error
	OnConfirmationFailed(c context.Context, topic string, event ConfirmationFailed) error
}

func DispatchEvent(c context.Context, reader io.Reader, service BookingEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case bookingStartedName:
		{
			event := BookingStarted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnBookingStarted(c, envelope.Topic, event)
		}
	case bookingCompletedName:
		{
			event := BookingCompleted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnBookingCompleted(c, envelope.Topic, event)
		}
	case confirmationFailedName:
		{
			event := ConfirmationFailed{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnConfirmationFailed(c, envelope.Topic, event)
		}
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("unknown event type %s", envelope.EventTypeName))
	}
}

type BookingStarted struct {
	BookingUID    string
	Domain        bookingapi.Domain
	AmountInCents int64
	Currency      string
}

func (e BookingStarted) GetEventTypeName() string {
	return bookingStartedName
}

func (e BookingStarted) GetAggregateName() string {
	return e.BookingUID
}

type BookingCompleted struct {
	BookingUID      string
	Domain          bookingapi.Domain
	Status          string
	PaymentIntentID string
	PaymentMethod   string
}

func (e BookingCompleted) GetEventTypeName() string {
	return bookingCompletedName
}

func (e BookingCompleted) GetAggregateName() string {
	return e.BookingUID
}

type ConfirmationFailed struct {
	BookingUID      string
	Domain          bookingapi.Domain
	OrderUID        string
	PaymentIntentID string
	Reason          string
}

func (e ConfirmationFailed) GetEventTypeName() string {
	return confirmationFailedName
}

func (e ConfirmationFailed) GetAggregateName() string {
	return e.BookingUID
}
