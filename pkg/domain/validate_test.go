package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestValidateString(t *testing.T) {
	if _, err := ValidateString("  ", "field"); err == nil {
		t.Fatalf("whitespace-only string should fail")
	}
	got, err := ValidateString("  value  ", "field")
	if err != nil || got != "value" {
		t.Fatalf("expected trimmed value, got %q (%v)", got, err)
	}
}

func TestValidatePositiveNumber(t *testing.T) {
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := ValidatePositiveNumber(bad, "field"); err == nil {
			t.Fatalf("expected rejection of %v", bad)
		}
	}
	got, err := ValidatePositiveNumber(2.5, "field")
	if err != nil || got != 2.5 {
		t.Fatalf("expected 2.5, got %g (%v)", got, err)
	}
}

func TestValidateDateOptional(t *testing.T) {
	date, err := ValidateDate("", "expiry_date")
	if err != nil || !date.IsZero() {
		t.Fatalf("empty date should be accepted as unset")
	}
	if _, err := ValidateDate("2024-13-40", "expiry_date"); err == nil {
		t.Fatalf("impossible calendar date should fail")
	}
	date, err = ValidateDate("2024-02-29", "expiry_date")
	if err != nil {
		t.Fatalf("leap day should parse: %v", err)
	}
	if date.String() != "2024-02-29" {
		t.Fatalf("unexpected date %s", date)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	type payload struct {
		Expiry Date `json:"expiry_date"`
	}
	in := payload{Expiry: NewDate(2024, time.December, 31)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"expiry_date":"2024-12-31"}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Expiry.Equal(in.Expiry) {
		t.Fatalf("round trip mismatch: %s vs %s", out.Expiry, in.Expiry)
	}

	var unset payload
	if err := json.Unmarshal([]byte(`{"expiry_date":null}`), &unset); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !unset.Expiry.IsZero() {
		t.Fatalf("null must decode to the zero date")
	}
}

func TestDateDaysUntil(t *testing.T) {
	start := NewDate(2024, time.June, 1)
	if days := start.DaysUntil(NewDate(2024, time.June, 11)); days != 10 {
		t.Fatalf("expected 10, got %d", days)
	}
	if days := start.DaysUntil(NewDate(2024, time.May, 31)); days != -1 {
		t.Fatalf("expected -1, got %d", days)
	}
}
