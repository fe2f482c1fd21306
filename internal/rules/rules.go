// Package rules holds the time-limit and compliance arithmetic shared by the
// lifecycle store, the reconciliation engine, and the dashboard handlers.
package rules

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the single wire format for operator-facing timestamps.
// All parsing happens at the boundary; everything internal is time.Time.
const TimestampLayout = "2006-01-02 15:04:05"

// DeliveryWindow is how long the floor has to deliver after a request.
const DeliveryWindow = 30 * time.Minute

// ErrInvalidTimestamp indicates a value that does not match TimestampLayout.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Verdict is the compliance state of an order.
type Verdict string

const (
	VerdictPending      Verdict = "PENDING"
	VerdictCompliant    Verdict = "COMPLIANT"
	VerdictNonCompliant Verdict = "NON_COMPLIANT"
)

// Deadline returns the delivery deadline for a request made at requestedAt.
func Deadline(requestedAt time.Time) time.Time {
	return requestedAt.Add(DeliveryWindow)
}

// Compliance derives the verdict from a deadline and a delivery time.
// Either being absent means the order is still pending. Delivery exactly at
// the deadline counts as compliant.
func Compliance(deadline, deliveredAt *time.Time) Verdict {
	if deadline == nil || deliveredAt == nil {
		return VerdictPending
	}
	if !deliveredAt.After(*deadline) {
		return VerdictCompliant
	}
	return VerdictNonCompliant
}

// ParseTimestamp parses a wire-format timestamp in the local timezone.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// FormatTimestamp renders a timestamp in the wire format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
