package donation

import "errors"

var (
	// ErrInvalidAmount covers amounts outside the donation bounds and funding
	// values that do not match the record amount exactly.
	ErrInvalidAmount = errors.New("donation: invalid amount")
	// ErrInvalidPercentage marks equity percentages outside [1,10].
	ErrInvalidPercentage = errors.New("donation: invalid equity percentage")
	// ErrEmptyString marks required text fields that are empty after trimming.
	ErrEmptyString = errors.New("donation: empty string")
	// ErrZeroValue marks numeric inputs that must be strictly positive.
	ErrZeroValue = errors.New("donation: zero value")
	// ErrUnauthorizedAccess marks callers lacking the required relationship
	// to the record (wrong donor, self-funding, already settled).
	ErrUnauthorizedAccess = errors.New("donation: unauthorized access")
	// ErrDonationNotActive marks operations against records that already left
	// the active state.
	ErrDonationNotActive = errors.New("donation: not active")
	// ErrDeadlinePassed marks funding or extension attempts after the
	// record's funding deadline.
	ErrDeadlinePassed = errors.New("donation: funding deadline passed")
	// ErrInvalidDeadline marks extensions that would overflow the deadline or
	// exceed the cumulative extension cap.
	ErrInvalidDeadline = errors.New("donation: invalid deadline")
	// ErrInsufficientFunds marks release attempts against an empty escrow
	// slot.
	ErrInsufficientFunds = errors.New("donation: insufficient escrow funds")
	// ErrTransferFailed marks outbound transfers that could not complete. The
	// enclosing operation rolls back atomically.
	ErrTransferFailed = errors.New("donation: transfer failed")
	// ErrNotFound marks lookups of unknown donation ids.
	ErrNotFound = errors.New("donation: not found")
	// ErrNilDonation marks nil or malformed records handed to the codec.
	ErrNilDonation = errors.New("donation: nil donation")
	// ErrReentrantCall rejects nested mutating calls made while an outbound
	// transfer is in flight.
	ErrReentrantCall = errors.New("donation: reentrant call")
)
