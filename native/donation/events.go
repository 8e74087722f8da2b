package donation

import (
	"encoding/hex"
	"strconv"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
)

const (
	EventTypeDonationCreated     = "donation.created"
	EventTypeDonationFunded      = "donation.funded"
	EventTypeDonationDistributed = "donation.distributed"
	EventTypeDonationCancelled   = "donation.cancelled"
	EventTypeDonationExtended    = "donation.extended"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// donation record.
func NewCreatedEvent(d *Donation) *types.Event { return newDonationEvent(EventTypeDonationCreated, d) }

// NewFundedEvent returns the canonical event payload emitted when a record is
// funded by a nonprofit.
func NewFundedEvent(d *Donation) *types.Event { return newDonationEvent(EventTypeDonationFunded, d) }

// NewDistributedEvent returns the canonical event payload for a release of
// escrowed funds to the nonprofit.
func NewDistributedEvent(d *Donation) *types.Event {
	return newDonationEvent(EventTypeDonationDistributed, d)
}

// NewCancelledEvent returns the canonical event payload for a donor
// cancellation.
func NewCancelledEvent(d *Donation) *types.Event {
	return newDonationEvent(EventTypeDonationCancelled, d)
}

// NewExtendedEvent returns the canonical event payload emitted when the
// funding deadline moves.
func NewExtendedEvent(d *Donation) *types.Event {
	return newDonationEvent(EventTypeDonationExtended, d)
}

func newDonationEvent(eventType string, d *Donation) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(d.ID, 10)
	attrs["donor"] = hex.EncodeToString(d.Donor[:])
	if d.Nonprofit != ([20]byte{}) {
		attrs["nonprofit"] = hex.EncodeToString(d.Nonprofit[:])
	}
	if d.Amount != nil {
		attrs["amount"] = d.Amount.String()
	}
	attrs["equityPercentage"] = strconv.FormatUint(uint64(d.EquityPercentage), 10)
	attrs["fundingDeadline"] = strconv.FormatInt(d.FundingDeadline, 10)
	attrs["status"] = d.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
