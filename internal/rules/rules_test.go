package rules

import (
	"errors"
	"testing"
	"time"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := ParseTimestamp(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestDeadline(t *testing.T) {
	requested := ts(t, "2024-01-01 10:00:00")
	want := ts(t, "2024-01-01 10:30:00")
	if got := Deadline(requested); !got.Equal(want) {
		t.Fatalf("Deadline = %v, want %v", got, want)
	}
}

func TestCompliance(t *testing.T) {
	deadline := ts(t, "2024-01-01 10:30:00")
	onTime := ts(t, "2024-01-01 10:30:00")
	late := ts(t, "2024-01-01 10:30:01")
	early := ts(t, "2024-01-01 10:15:00")

	cases := []struct {
		name        string
		deadline    *time.Time
		deliveredAt *time.Time
		want        Verdict
	}{
		{"both absent", nil, nil, VerdictPending},
		{"no deadline", nil, &onTime, VerdictPending},
		{"not delivered", &deadline, nil, VerdictPending},
		{"delivered early", &deadline, &early, VerdictCompliant},
		{"delivered exactly at deadline", &deadline, &onTime, VerdictCompliant},
		{"delivered one second late", &deadline, &late, VerdictNonCompliant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compliance(tc.deadline, tc.deliveredAt); got != tc.want {
				t.Fatalf("Compliance = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-01-01", "01/02/2024 10:00:00", "2024-13-40 99:00:00"} {
		if _, err := ParseTimestamp(s); !errors.Is(err, ErrInvalidTimestamp) {
			t.Fatalf("ParseTimestamp(%q) err = %v, want ErrInvalidTimestamp", s, err)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	in := "2024-06-15 08:45:30"
	if got := FormatTimestamp(ts(t, in)); got != in {
		t.Fatalf("round trip = %q, want %q", got, in)
	}
}

func TestSameDay(t *testing.T) {
	a := ts(t, "2024-01-01 00:00:01")
	b := ts(t, "2024-01-01 23:59:59")
	c := ts(t, "2024-01-02 00:00:00")
	if !SameDay(a, b) {
		t.Fatalf("expected same day for %v and %v", a, b)
	}
	if SameDay(b, c) {
		t.Fatalf("expected different day for %v and %v", b, c)
	}
}
