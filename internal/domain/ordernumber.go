package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber builds a human-readable order number of the form
// LB-YYMMDD-XXXXXX where the suffix is six random uppercase alphanumerics.
// Assigned once at creation and immutable afterwards.
func GenerateOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// time-derived suffix rather than panicking in the checkout path.
		nanos := now.UnixNano()
		for i := range buf {
			buf[i] = orderNumberAlphabet[int(nanos>>uint(i*5))%len(orderNumberAlphabet)]
		}
	} else {
		for i, b := range buf {
			buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
		}
	}
	return fmt.Sprintf("LB-%s-%s", now.Format("060102"), string(buf))
}
