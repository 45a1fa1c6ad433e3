package bookingevents

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/lib/myevents"
)

type recordingService struct {
	started   []BookingStarted
	completed []BookingCompleted
	failed    []ConfirmationFailed
}

func (s *recordingService) Subscribe(c context.Context) error {
	return nil
}

func (s *recordingService) OnBookingStarted(c context.Context, topic string, event BookingStarted) error {
	s.started = append(s.started, event)
	return nil
}

func (s *recordingService) OnBookingCompleted(c context.Context, topic string, event BookingCompleted) error {
	s.completed = append(s.completed, event)
	return nil
}

func (s *recordingService) OnConfirmationFailed(c context.Context, topic string, event ConfirmationFailed) error {
	s.failed = append(s.failed, event)
	return nil
}

func pushRequestFor(t *testing.T, event myevents.Event) []byte {
	payload, err := json.Marshal(event)
	assert.NoError(t, err)

	envelope, err := json.Marshal(myevents.EventEnvelope{
		Topic:         TopicName,
		EventTypeName: event.GetEventTypeName(),
		AggregateUID:  event.GetAggregateName(),
		EventPayload:  string(payload),
	})
	assert.NoError(t, err)

	body, err := json.Marshal(myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelope,
		},
	})
	assert.NoError(t, err)

	return body
}

func TestDispatchEvent(t *testing.T) {
	c := context.TODO()

	t.Run("Booking started", func(t *testing.T) {
		service := &recordingService{}
		body := pushRequestFor(t, BookingStarted{BookingUID: "booking-1", Domain: "repair", AmountInCents: 16200, Currency: "EUR"})

		err := DispatchEvent(c, bytes.NewReader(body), service)

		assert.NoError(t, err)
		assert.Len(t, service.started, 1)
		assert.Equal(t, int64(16200), service.started[0].AmountInCents)
	})

	t.Run("Booking completed", func(t *testing.T) {
		service := &recordingService{}
		body := pushRequestFor(t, BookingCompleted{BookingUID: "booking-1", Status: "succeeded", PaymentMethod: "ideal"})

		err := DispatchEvent(c, bytes.NewReader(body), service)

		assert.NoError(t, err)
		assert.Len(t, service.completed, 1)
	})

	t.Run("Confirmation failed", func(t *testing.T) {
		service := &recordingService{}
		body := pushRequestFor(t, ConfirmationFailed{BookingUID: "booking-1", OrderUID: "order-1", Reason: "backend says no"})

		err := DispatchEvent(c, bytes.NewReader(body), service)

		assert.NoError(t, err)
		assert.Len(t, service.failed, 1)
		assert.Equal(t, "order-1", service.failed[0].OrderUID)
	})

	t.Run("Unknown event type", func(t *testing.T) {
		envelope, err := json.Marshal(myevents.EventEnvelope{Topic: TopicName, EventTypeName: "booking.unknown"})
		assert.NoError(t, err)
		body, err := json.Marshal(myevents.PushRequest{Message: myevents.PushMessage{Data: envelope}})
		assert.NoError(t, err)

		err = DispatchEvent(c, bytes.NewReader(body), &recordingService{})

		assert.Error(t, err)
		assert.Equal(t, http.StatusNotImplemented, myerrors.GetHTTPStatus(err))
	})

	t.Run("Malformed push request", func(t *testing.T) {
		err := DispatchEvent(c, bytes.NewReader([]byte("not json")), &recordingService{})

		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, myerrors.GetHTTPStatus(err))
	})
}
