package donation

import (
	"math/big"
	"strings"
)

// Status represents the lifecycle states of a donation record.
type Status uint8

const (
	// StatusActive marks a record that is open for funding.
	StatusActive Status = iota
	// StatusFunded marks a record whose escrow slot holds the full amount.
	StatusFunded
	// StatusDistributed marks a record whose escrow has been released to the
	// nonprofit. Terminal.
	StatusDistributed
	// StatusCancelled marks a record withdrawn by its donor. Terminal.
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFunded, StatusDistributed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusFunded:
		return "funded"
	case StatusDistributed:
		return "distributed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Donation captures a single conditional fund-escrow offer. IDs are assigned
// sequentially and never reused. The donor is immutable after creation; the
// nonprofit stays zero until the record is funded.
type Donation struct {
	ID               uint64
	Donor            [20]byte
	Nonprofit        [20]byte
	Amount           *big.Int
	EquityPercentage uint8
	FundingDeadline  int64
	Valuation        *big.Int
	NonprofitName    string
	Description      string
	CreatedAt        int64
	Extended         int64
	Status           Status
}

// Active reports whether the record is still open for funding.
func (d *Donation) Active() bool {
	return d != nil && d.Status == StatusActive
}

// Distributed reports whether escrow has been released to the nonprofit.
func (d *Donation) Distributed() bool {
	return d != nil && d.Status == StatusDistributed
}

// Clone returns a deep copy of the donation so callers can safely mutate the
// copy without affecting the stored instance.
func (d *Donation) Clone() *Donation {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if d.Valuation != nil {
		clone.Valuation = new(big.Int).Set(d.Valuation)
	} else {
		clone.Valuation = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates and normalises the supplied donation record, returning a
// cloned instance with trimmed text fields and non-nil numeric fields. The
// function does not mutate the original value.
func Sanitize(d *Donation) (*Donation, error) {
	if d == nil {
		return nil, ErrNilDonation
	}
	clone := d.Clone()
	clone.NonprofitName = strings.TrimSpace(clone.NonprofitName)
	clone.Description = strings.TrimSpace(clone.Description)
	if clone.NonprofitName == "" || clone.Description == "" {
		return nil, ErrEmptyString
	}
	if clone.Amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if clone.Valuation.Sign() <= 0 {
		return nil, ErrZeroValue
	}
	if clone.EquityPercentage < MinEquityPercentage || clone.EquityPercentage > MaxEquityPercentage {
		return nil, ErrInvalidPercentage
	}
	if !clone.Status.Valid() {
		return nil, ErrNilDonation
	}
	return clone, nil
}
