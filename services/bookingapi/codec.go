package bookingapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const encodingVersion = "v1"

// Codec turns a BookingContext into the opaque string kept in the shopper's
// session slot and back. The payload is base64-obfuscated JSON with an HMAC
// so casual tampering in client storage is detected. This is not a security
// boundary: the backend order record stays the source of truth.
type Codec struct {
	signingKey []byte
}

func NewCodec(signingKey []byte) Codec {
	return Codec{
		signingKey: signingKey,
	}
}

func (c Codec) Encode(ctx BookingContext) (string, error) {
	payload, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("error marshalling booking-context: %s", err)
	}

	return strings.Join([]string{
		encodingVersion,
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString(c.sign(payload)),
	}, "."), nil
}

// Decode accepts both the current encoded format and the legacy plain-JSON
// format written by older sessions. Any parse or verification failure yields
// ok=false so callers degrade to an empty-checkout state instead of failing.
func (c Codec) Decode(raw string) (BookingContext, bool) {
	if strings.HasPrefix(raw, encodingVersion+".") {
		return c.decodeCurrent(raw)
	}

	return decodeLegacy(raw)
}

func (c Codec) decodeCurrent(raw string) (BookingContext, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return BookingContext{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return BookingContext{}, false
	}
	mac, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return BookingContext{}, false
	}

	if !hmac.Equal(mac, c.sign(payload)) {
		return BookingContext{}, false
	}

	ctx := BookingContext{}
	err = json.Unmarshal(payload, &ctx)
	if err != nil {
		return BookingContext{}, false
	}

	return ctx, true
}

func decodeLegacy(raw string) (BookingContext, bool) {
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return BookingContext{}, false
	}

	ctx := BookingContext{}
	err := json.Unmarshal([]byte(raw), &ctx)
	if err != nil {
		return BookingContext{}, false
	}

	return ctx, true
}

func (c Codec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.signingKey)
	mac.Write(payload)
	return mac.Sum(nil)
}
