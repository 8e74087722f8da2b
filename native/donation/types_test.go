package donation

import (
	"errors"
	"math/big"
	"testing"
)

func TestStatusStringAndValid(t *testing.T) {
	cases := []struct {
		status Status
		want   string
		valid  bool
	}{
		{StatusActive, "active", true},
		{StatusFunded, "funded", true},
		{StatusDistributed, "distributed", true},
		{StatusCancelled, "cancelled", true},
		{Status(42), "unknown", false},
	}
	for _, tc := range cases {
		if got := tc.status.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
		if got := tc.status.Valid(); got != tc.valid {
			t.Fatalf("Valid() for %q = %v, want %v", tc.want, got, tc.valid)
		}
	}
}

func TestCloneIsolatesBigInts(t *testing.T) {
	original := &Donation{
		ID:               1,
		Amount:           big.NewInt(100),
		Valuation:        big.NewInt(500),
		EquityPercentage: 5,
		NonprofitName:    "a",
		Description:      "b",
	}
	clone := original.Clone()
	clone.Amount.SetInt64(999)
	clone.Valuation.SetInt64(999)

	if original.Amount.Int64() != 100 || original.Valuation.Int64() != 500 {
		t.Fatalf("clone mutation leaked into original: %s / %s", original.Amount, original.Valuation)
	}

	var nilDonation *Donation
	if nilDonation.Clone() != nil {
		t.Fatal("nil clone should stay nil")
	}
}

func TestCloneFillsNilAmounts(t *testing.T) {
	clone := (&Donation{}).Clone()
	if clone.Amount == nil || clone.Valuation == nil {
		t.Fatal("clone should never carry nil big.Int fields")
	}
}

func TestSanitize(t *testing.T) {
	base := func() *Donation {
		return &Donation{
			ID:               1,
			Amount:           big.NewInt(100),
			Valuation:        big.NewInt(500),
			EquityPercentage: 5,
			NonprofitName:    "  Clean Water Fund  ",
			Description:      " wells ",
			Status:           StatusActive,
		}
	}

	sanitized, err := Sanitize(base())
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.NonprofitName != "Clean Water Fund" || sanitized.Description != "wells" {
		t.Fatalf("text not trimmed: %q / %q", sanitized.NonprofitName, sanitized.Description)
	}

	cases := []struct {
		name    string
		mutate  func(*Donation)
		wantErr error
	}{
		{"blank name", func(d *Donation) { d.NonprofitName = "   " }, ErrEmptyString},
		{"blank description", func(d *Donation) { d.Description = "" }, ErrEmptyString},
		{"negative amount", func(d *Donation) { d.Amount = big.NewInt(-1) }, ErrInvalidAmount},
		{"zero valuation", func(d *Donation) { d.Valuation = big.NewInt(0) }, ErrZeroValue},
		{"equity out of range", func(d *Donation) { d.EquityPercentage = 11 }, ErrInvalidPercentage},
		{"invalid status", func(d *Donation) { d.Status = Status(9) }, ErrNilDonation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := base()
			tc.mutate(record)
			if _, err := Sanitize(record); !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := Sanitize(nil); !errors.Is(err, ErrNilDonation) {
		t.Fatalf("nil record: %v", err)
	}

	// Sanitize must not mutate the caller's value.
	record := base()
	if _, err := Sanitize(record); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if record.NonprofitName != "  Clean Water Fund  " {
		t.Fatal("input record was mutated")
	}
}
