package donation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/events"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
)

const moduleName = "donation"

// Equity percentage bounds accepted at creation.
const (
	MinEquityPercentage uint8 = 1
	MaxEquityPercentage uint8 = 10
)

// Default lifecycle windows. Both are configurable on the engine.
const (
	DefaultFundingPeriod = 30 * 24 * time.Hour
	DefaultMaxExtension  = 90 * 24 * time.Hour
	secondsPerDay        = int64(24 * 60 * 60)
)

// Donation amount bounds in base units (1 unit = 10^18).
var (
	MinDonationAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)
	MaxDonationAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)
)

var errNilState = errors.New("donation engine: state not configured")

// engineState is the subset of state manager functionality the engine needs.
type engineState interface {
	DonationPut(*Donation) error
	DonationGet(id uint64) (*Donation, bool, error)
	NextDonationID() (uint64, error)
	DonationCount() (uint64, error)
	IncrementDonorDonations(addr [20]byte) (uint64, error)
	SetRole(role string, addr []byte) error
	EscrowBalance(id uint64) (*big.Int, error)
}

// fundVault moves custodied funds on behalf of the engine.
type fundVault interface {
	Deposit(id uint64, from [20]byte, amount *big.Int) error
	Release(id uint64, to [20]byte) (*big.Int, error)
	Refund(id uint64, to [20]byte) (*big.Int, error)
}

type donationEvent struct {
	evt *types.Event
}

func (e donationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e donationEvent) Event() *types.Event { return e.evt }

// Engine owns the donation lifecycle state machine. It validates
// preconditions, mutates records, moves escrow through the vault and emits
// one event per committed transition. Operations are applied one at a time
// in the caller-determined order; the engine's own lock only rejects nested
// mutating calls triggered by an outbound transfer.
type Engine struct {
	state         engineState
	vault         fundVault
	pauses        access.PauseView
	emitter       events.Emitter
	nowFn         func() int64
	fundingPeriod time.Duration
	maxExtension  time.Duration
	inFlight      bool
}

// NewEngine creates a donation engine with a no-op emitter and the default
// lifecycle windows.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		fundingPeriod: DefaultFundingPeriod,
		maxExtension:  DefaultMaxExtension,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault configures the escrow vault moving custodied funds.
func (e *Engine) SetVault(vault fundVault) { e.vault = vault }

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p access.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetFundingPeriod overrides the window between creation and the funding
// deadline.
func (e *Engine) SetFundingPeriod(period time.Duration) {
	if period <= 0 {
		e.fundingPeriod = DefaultFundingPeriod
		return
	}
	e.fundingPeriod = period
}

// SetMaxExtension overrides the cumulative extension cap.
func (e *Engine) SetMaxExtension(max time.Duration) {
	if max <= 0 {
		e.maxExtension = DefaultMaxExtension
		return
	}
	e.maxExtension = max
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(donationEvent{evt: event})
}

// begin acquires the per-call reentrancy lock. A nested mutating call made
// while an outbound transfer is in flight is rejected.
func (e *Engine) begin() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.inFlight {
		return ErrReentrantCall
	}
	if err := access.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.inFlight = true
	return nil
}

func (e *Engine) end() { e.inFlight = false }

// Create validates and persists a new donation record. No funds move at this
// step; value attached to the creation call is rejected upstream. The donor
// is granted ROLE_DONOR and their creation counter advances.
func (e *Engine) Create(donor [20]byte, amount *big.Int, equityPercentage uint8, nonprofitName, description string, valuation *big.Int) (*Donation, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if donor == ([20]byte{}) {
		return nil, ErrUnauthorizedAccess
	}
	if amount == nil || amount.Cmp(MinDonationAmount) < 0 || amount.Cmp(MaxDonationAmount) > 0 {
		return nil, ErrInvalidAmount
	}
	if equityPercentage < MinEquityPercentage || equityPercentage > MaxEquityPercentage {
		return nil, ErrInvalidPercentage
	}
	name := strings.TrimSpace(nonprofitName)
	desc := strings.TrimSpace(description)
	if name == "" || desc == "" {
		return nil, ErrEmptyString
	}
	if valuation == nil || valuation.Sign() <= 0 {
		return nil, ErrZeroValue
	}
	id, err := e.state.NextDonationID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	record := &Donation{
		ID:               id,
		Donor:            donor,
		Amount:           new(big.Int).Set(amount),
		EquityPercentage: equityPercentage,
		FundingDeadline:  now + int64(e.fundingPeriod/time.Second),
		Valuation:        new(big.Int).Set(valuation),
		NonprofitName:    name,
		Description:      desc,
		CreatedAt:        now,
		Status:           StatusActive,
	}
	if err := e.state.DonationPut(record); err != nil {
		return nil, err
	}
	if _, err := e.state.IncrementDonorDonations(donor); err != nil {
		return nil, err
	}
	if err := e.state.SetRole(access.RoleDonor, donor[:]); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(record))
	return record.Clone(), nil
}

// Fund accepts the offer: the supplied value must match the record amount
// exactly, the funder must not be the donor and the deadline must not have
// passed. The amount moves into the escrow vault and the funder is granted
// ROLE_NONPROFIT.
func (e *Engine) Fund(id uint64, funder [20]byte, suppliedValue *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if e.vault == nil {
		return errNilState
	}
	record, err := e.loadDonation(id)
	if err != nil {
		return err
	}
	if !record.Active() {
		return ErrDonationNotActive
	}
	if funder == record.Donor {
		return ErrUnauthorizedAccess
	}
	if suppliedValue == nil || suppliedValue.Cmp(record.Amount) != 0 {
		return ErrInvalidAmount
	}
	if e.now() > record.FundingDeadline {
		return ErrDeadlinePassed
	}
	if err := e.vault.Deposit(id, funder, record.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	record.Nonprofit = funder
	record.Status = StatusFunded
	if err := e.state.DonationPut(record); err != nil {
		return err
	}
	if err := e.state.SetRole(access.RoleNonprofit, funder[:]); err != nil {
		return err
	}
	e.emit(NewFundedEvent(record))
	return nil
}

// Distribute releases the escrowed amount to the nonprofit. Only the donor
// may distribute, exactly once. The record is marked distributed and the
// escrow slot zeroed before the outbound transfer; a failed transfer rolls
// every effect back.
func (e *Engine) Distribute(id uint64, caller [20]byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if e.vault == nil {
		return errNilState
	}
	record, err := e.loadDonation(id)
	if err != nil {
		return err
	}
	if caller != record.Donor || record.Distributed() {
		return ErrUnauthorizedAccess
	}
	balance, err := e.state.EscrowBalance(id)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return ErrInsufficientFunds
	}
	previous := record.Clone()
	record.Status = StatusDistributed
	if err := e.state.DonationPut(record); err != nil {
		return err
	}
	if _, err := e.vault.Release(id, record.Nonprofit); err != nil {
		if restoreErr := e.state.DonationPut(previous); restoreErr != nil {
			return fmt.Errorf("donation: rollback failed: %v: %w", restoreErr, err)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewDistributedEvent(record))
	return nil
}

// Cancel withdraws an active offer. Cancellation stays available after the
// funding deadline as long as the record is active. Any custodied balance is
// refunded to the donor with the same rollback discipline as Distribute.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if e.vault == nil {
		return errNilState
	}
	record, err := e.loadDonation(id)
	if err != nil {
		return err
	}
	if caller != record.Donor {
		return ErrUnauthorizedAccess
	}
	if !record.Active() {
		return ErrDonationNotActive
	}
	previous := record.Clone()
	record.Status = StatusCancelled
	if err := e.state.DonationPut(record); err != nil {
		return err
	}
	balance, err := e.state.EscrowBalance(id)
	if err != nil {
		return err
	}
	if balance.Sign() > 0 {
		if _, err := e.vault.Refund(id, record.Donor); err != nil {
			if restoreErr := e.state.DonationPut(previous); restoreErr != nil {
				return fmt.Errorf("donation: rollback failed: %v: %w", restoreErr, err)
			}
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	e.emit(NewCancelledEvent(record))
	return nil
}

// ExtendFundingPeriod pushes the deadline out by whole days. Only the donor
// may extend, only while active and before the current deadline, and the
// cumulative extension is capped. Deadline arithmetic is checked against
// overflow and fails with ErrInvalidDeadline rather than wrapping.
func (e *Engine) ExtendFundingPeriod(id uint64, caller [20]byte, extensionDays uint32) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	record, err := e.loadDonation(id)
	if err != nil {
		return err
	}
	if caller != record.Donor {
		return ErrUnauthorizedAccess
	}
	if !record.Active() {
		return ErrDonationNotActive
	}
	if extensionDays == 0 {
		return ErrZeroValue
	}
	if e.now() > record.FundingDeadline {
		return ErrDeadlinePassed
	}
	extension := int64(extensionDays) * secondsPerDay
	if record.Extended+extension > int64(e.maxExtension/time.Second) {
		return ErrInvalidDeadline
	}
	newDeadline := record.FundingDeadline + extension
	if newDeadline < record.FundingDeadline {
		return ErrInvalidDeadline
	}
	record.FundingDeadline = newDeadline
	record.Extended += extension
	if err := e.state.DonationPut(record); err != nil {
		return err
	}
	e.emit(NewExtendedEvent(record))
	return nil
}

// Get returns the record for the id. Reads stay available while the module
// is paused.
func (e *Engine) Get(id uint64) (*Donation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.DonationGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// Count returns the total number of records ever created.
func (e *Engine) Count() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.DonationCount()
}

func (e *Engine) loadDonation(id uint64) (*Donation, error) {
	record, ok, err := e.state.DonationGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}
