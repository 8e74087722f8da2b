package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/events"
	npostate "github.com/maxzysparks/P2P-Nonprofit-Donation/core/state"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/donation"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/escrow"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/reputation"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/observability"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/storage"
)

var (
	// ErrNotAdmin is returned when an admin-gated operation is attempted by
	// an identity without ROLE_ADMIN.
	ErrNotAdmin = errors.New("core: caller lacks ROLE_ADMIN")
	// ErrUnknownModule is returned when pausing a module the node does not
	// run.
	ErrUnknownModule = errors.New("core: unknown module")
)

var genesisAppliedKey = []byte("genesis/applied")

// Modules that carry a pause circuit breaker.
const (
	ModuleDonation   = "donation"
	ModuleReputation = "reputation"
)

func knownModule(module string) bool {
	switch module {
	case ModuleDonation, ModuleReputation:
		return true
	default:
		return false
	}
}

// Node is the central controller, wiring state, engines and observability
// together. Every mutating operation takes the state mutex, so the ledger
// applies one transition at a time.
type Node struct {
	db      storage.Database
	manager *npostate.Manager
	logger  *slog.Logger
	metrics *observability.LedgerMetrics

	stateMu  sync.Mutex
	eventsMu sync.RWMutex
	eventLog []types.Event

	fundingPeriod time.Duration
	maxExtension  time.Duration
}

// NewNode constructs a node over the supplied database with the default
// lifecycle windows.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: database required")
	}
	return &Node{
		db:            db,
		manager:       npostate.NewManager(db),
		logger:        slog.Default(),
		metrics:       observability.Metrics(),
		fundingPeriod: donation.DefaultFundingPeriod,
		maxExtension:  donation.DefaultMaxExtension,
	}, nil
}

// SetLogger overrides the node's logger. Passing nil resets it to the process
// default.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		n.logger = slog.Default()
		return
	}
	n.logger = logger
}

// SetFundingPeriod overrides the window between creation and the funding
// deadline for subsequently created records.
func (n *Node) SetFundingPeriod(period time.Duration) {
	if period > 0 {
		n.fundingPeriod = period
	}
}

// SetMaxExtension overrides the cumulative extension cap.
func (n *Node) SetMaxExtension(max time.Duration) {
	if max > 0 {
		n.maxExtension = max
	}
}

// InitGenesis seeds account balances and the admin role. It applies at most
// once per data directory; repeat calls are no-ops.
func (n *Node) InitGenesis(alloc map[[20]byte]*big.Int, admin *[20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var applied bool
	ok, err := n.manager.KVGet(genesisAppliedKey, &applied)
	if err != nil {
		return err
	}
	if ok && applied {
		return nil
	}
	for addr, balance := range alloc {
		account, err := n.manager.GetAccount(addr[:])
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Set(balance)
		if err := n.manager.PutAccount(addr[:], account); err != nil {
			return err
		}
	}
	if admin != nil && *admin != ([20]byte{}) {
		if err := n.manager.SetRole(access.RoleAdmin, (*admin)[:]); err != nil {
			return err
		}
	}
	if err := n.manager.KVPut(genesisAppliedKey, true); err != nil {
		return err
	}
	n.logger.Info("genesis applied", "accounts", len(alloc), "admin", admin != nil)
	return nil
}

// --- Event bridge ---

type eventWithPayload interface {
	Event() *types.Event
}

type ledgerEventEmitter struct {
	node *Node
}

func (e ledgerEventEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	e.node.appendEvent(event)
	e.node.metrics.RecordTransition(event.Type)
}

func (n *Node) appendEvent(event *types.Event) {
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	copied := types.Event{Type: event.Type, Attributes: make(map[string]string, len(event.Attributes))}
	for k, v := range event.Attributes {
		copied.Attributes[k] = v
	}
	n.eventLog = append(n.eventLog, copied)
}

// Events returns a copy of the node's in-memory event log.
func (n *Node) Events() []types.Event {
	n.eventsMu.RLock()
	defer n.eventsMu.RUnlock()
	out := make([]types.Event, len(n.eventLog))
	copy(out, n.eventLog)
	return out
}

// --- Engine construction ---

func (n *Node) newVault() *escrow.Vault {
	return escrow.NewVault(n.manager)
}

func (n *Node) newDonationEngine() *donation.Engine {
	engine := donation.NewEngine()
	engine.SetState(n.manager)
	engine.SetVault(n.newVault())
	engine.SetPauses(n.manager)
	engine.SetEmitter(ledgerEventEmitter{node: n})
	engine.SetFundingPeriod(n.fundingPeriod)
	engine.SetMaxExtension(n.maxExtension)
	return engine
}

func (n *Node) newReputationStore() *reputation.Store {
	store := reputation.NewStore(n.manager)
	store.SetPauses(n.manager)
	store.SetEmitter(ledgerEventEmitter{node: n})
	return store
}

func (n *Node) newRoleRegistry() *access.Registry {
	return access.NewRegistry(n.manager)
}

// --- Donation lifecycle ---

func (n *Node) DonationCreate(donor [20]byte, amount *big.Int, equityPercentage uint8, nonprofitName, description string, valuation *big.Int) (*donation.Donation, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	record, err := n.newDonationEngine().Create(donor, amount, equityPercentage, nonprofitName, description, valuation)
	if err != nil {
		n.metrics.RecordFailure("create")
		return nil, err
	}
	n.logger.Info("donation created", "id", record.ID, "amount", record.Amount.String())
	return record, nil
}

func (n *Node) DonationFund(id uint64, funder [20]byte, value *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.newDonationEngine().Fund(id, funder, value); err != nil {
		n.metrics.RecordFailure("fund")
		return err
	}
	n.metrics.RecordEscrowMove("deposit")
	n.logger.Info("donation funded", "id", id)
	return nil
}

func (n *Node) DonationDistribute(id uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.newDonationEngine().Distribute(id, caller); err != nil {
		n.metrics.RecordFailure("distribute")
		return err
	}
	n.metrics.RecordEscrowMove("release")
	n.logger.Info("donation distributed", "id", id)
	return nil
}

func (n *Node) DonationCancel(id uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.newDonationEngine().Cancel(id, caller); err != nil {
		n.metrics.RecordFailure("cancel")
		return err
	}
	n.logger.Info("donation cancelled", "id", id)
	return nil
}

func (n *Node) DonationExtend(id uint64, caller [20]byte, extensionDays uint32) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.newDonationEngine().ExtendFundingPeriod(id, caller, extensionDays); err != nil {
		n.metrics.RecordFailure("extend")
		return err
	}
	return nil
}

func (n *Node) DonationGet(id uint64) (*donation.Donation, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.newDonationEngine().Get(id)
}

func (n *Node) DonationCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.newDonationEngine().Count()
}

// --- Reputation ---

func (n *Node) ReputationRate(subject, rater [20]byte, rating uint8, review string) (*reputation.Aggregate, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	aggregate, err := n.newReputationStore().Rate(subject, rater, rating, review)
	if err != nil {
		n.metrics.RecordFailure("rate")
		return nil, err
	}
	return aggregate, nil
}

func (n *Node) ReputationGet(addr [20]byte) (*reputation.Profile, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.newReputationStore().Get(addr)
}

// --- Accounts ---

func (n *Node) GetAccount(addr []byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.manager.GetAccount(addr)
}

// VaultAddress returns the module account holding all custodied funds.
func (n *Node) VaultAddress() [20]byte {
	return n.manager.VaultAddress()
}

// --- Roles and admin operations ---

func (n *Node) HasRole(role string, addr []byte) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.newRoleRegistry().HasRole(role, addr)
}

func (n *Node) requireAdmin(caller [20]byte) error {
	if !n.manager.HasRole(access.RoleAdmin, caller[:]) {
		return ErrNotAdmin
	}
	return nil
}

// GrantRole assigns a role to an address. Only admins may grant.
func (n *Node) GrantRole(caller [20]byte, role string, addr []byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return err
	}
	if err := n.newRoleRegistry().Grant(role, addr); err != nil {
		return err
	}
	n.logger.Info("role granted", "role", role)
	return nil
}

// RevokeRole removes a role from an address. Only admins may revoke.
func (n *Node) RevokeRole(caller [20]byte, role string, addr []byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return err
	}
	if err := n.newRoleRegistry().Revoke(role, addr); err != nil {
		return err
	}
	n.logger.Info("role revoked", "role", role)
	return nil
}

// Pause engages the circuit breaker for the named module. Reads stay
// available while paused.
func (n *Node) Pause(caller [20]byte, module string) error {
	return n.setPaused(caller, module, true)
}

// Unpause releases the circuit breaker for the named module.
func (n *Node) Unpause(caller [20]byte, module string) error {
	return n.setPaused(caller, module, false)
}

func (n *Node) setPaused(caller [20]byte, module string, paused bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(module)
	if !knownModule(trimmed) {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	if err := n.manager.SetPaused(trimmed, paused); err != nil {
		return err
	}
	n.logger.Warn("module pause changed", "module", trimmed, "paused", paused)
	return nil
}

// IsPaused reports whether the module's circuit breaker is engaged.
func (n *Node) IsPaused(module string) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.manager.IsPaused(strings.TrimSpace(module))
}

// EmergencyWithdraw sweeps the entire vault account balance to the recipient.
// Slot bookkeeping is deliberately left untouched; the sweep is a last-resort
// recovery path, not a lifecycle transition.
func (n *Node) EmergencyWithdraw(caller, recipient [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return nil, err
	}
	if recipient == ([20]byte{}) {
		recipient = caller
	}
	total, err := n.newVault().SweepAll(recipient)
	if err != nil {
		return nil, err
	}
	n.metrics.RecordEscrowMove("sweep")
	n.logger.Warn("emergency withdraw executed", "amount", total.String())
	return total, nil
}
