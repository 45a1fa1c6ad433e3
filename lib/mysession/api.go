package mysession

import "context"

// KeyValueStore holds named slots scoped to one browsing session. It is the
// server-side stand-in for browser session storage: values survive page
// reloads for as long as the session lives.
//
//go:generate mockgen -source=api.go -package mysession -destination session_mock.go KeyValueStore
type KeyValueStore interface {
	Get(c context.Context, sessionUID string, key string) (string, bool, error)
	Set(c context.Context, sessionUID string, key string, value string) error
	Remove(c context.Context, sessionUID string, key string) error
}
