package mysession

import (
	"context"
	"fmt"

	"github.com/deviceclinic/bookingbackend/lib/mystore"
)

type Slot struct {
	SessionUID string
	Key        string
	Value      string `datastore:",noindex"`
}

type sessionStore struct {
	slots mystore.Store[Slot]
}

func New(c context.Context) (KeyValueStore, func(), error) {
	slots, cleanup, err := mystore.New[Slot](c)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating session-slot store: %s", err)
	}

	return &sessionStore{
		slots: slots,
	}, cleanup, nil
}

// NewWithStore is used by tests to run on an explicit in-memory store.
func NewWithStore(slots mystore.Store[Slot]) KeyValueStore {
	return &sessionStore{
		slots: slots,
	}
}

func (s sessionStore) Get(c context.Context, sessionUID string, key string) (string, bool, error) {
	slot, exists, err := s.slots.Get(c, slotUID(sessionUID, key))
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}

	return slot.Value, true, nil
}

func (s sessionStore) Set(c context.Context, sessionUID string, key string, value string) error {
	return s.slots.Put(c, slotUID(sessionUID, key), Slot{
		SessionUID: sessionUID,
		Key:        key,
		Value:      value,
	})
}

func (s sessionStore) Remove(c context.Context, sessionUID string, key string) error {
	return s.slots.Remove(c, slotUID(sessionUID, key))
}

func slotUID(sessionUID string, key string) string {
	return sessionUID + "/" + key
}
