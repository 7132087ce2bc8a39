package identity

import (
	"time"
)

// DefaultMaxAge bounds how old a signed envelope may be
const DefaultMaxAge = 5 * time.Minute

// TimestampLayout is the ISO-8601 form used in envelopes
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SignedMessage binds data to the time it was signed. The signature covers
// "<data>:<timestamp>".
type SignedMessage struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
	Timestamp string `json:"timestamp"`
}

// CreateSignedMessage signs data together with now
func CreateSignedMessage(data, privateKey, publicKey string, now time.Time) (*SignedMessage, error) {
	ts := now.UTC().Format(TimestampLayout)
	sig, err := Sign(envelopePayload(data, ts), privateKey)
	if err != nil {
		return nil, err
	}
	return &SignedMessage{
		Data:      data,
		Signature: sig,
		PublicKey: publicKey,
		Timestamp: ts,
	}, nil
}

// VerifySignedMessage checks the envelope signature and rejects it when its
// timestamp is further than maxAge from now in either direction. A
// non-positive maxAge means DefaultMaxAge.
func VerifySignedMessage(msg *SignedMessage, maxAge time.Duration, now time.Time) bool {
	if msg == nil {
		return false
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	if err != nil {
		return false
	}
	age := now.Sub(ts)
	if age > maxAge || age < -maxAge {
		return false
	}
	return Verify(envelopePayload(msg.Data, msg.Timestamp), msg.Signature, msg.PublicKey)
}

func envelopePayload(data, timestamp string) string {
	return data + ":" + timestamp
}
