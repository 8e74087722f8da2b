package state

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/donation"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/storage"
)

var (
	accountPrefix    = []byte("account:")
	rolePrefix       = []byte("role:")
	pausePrefix      = []byte("pause:")
	donationPrefix   = []byte("donation:")
	donorCountPrefix = []byte("donation-count:")
	escrowPrefix     = []byte("escrow:")
	donationSeqKey   = ethcrypto.Keccak256([]byte("donation-seq"))
	vaultSeed        = []byte("donation/escrow-vault")
)

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func pauseKey(module string) []byte {
	buf := make([]byte, len(pausePrefix)+len(module))
	copy(buf, pausePrefix)
	copy(buf[len(pausePrefix):], module)
	return ethcrypto.Keccak256(buf)
}

func donationKey(id uint64) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%d", donationPrefix, id)))
}

func donorCountKey(addr []byte) []byte {
	buf := make([]byte, len(donorCountPrefix)+len(addr))
	copy(buf, donorCountPrefix)
	copy(buf[len(donorCountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func escrowKey(id uint64) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%d", escrowPrefix, id)))
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Manager mediates every read and write of ledger state. All records are
// RLP-encoded under keccak-hashed prefixed keys.
type Manager struct {
	db storage.Database
}

// NewManager constructs a manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) write(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) read(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// --- Accounts ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account for the address, returning a zeroed account
// when none has been persisted yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.read(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return types.EnsureAccount(&types.Account{Nonce: stored.Nonce, Balance: stored.Balance}), nil
}

// PutAccount persists the account under the address.
func (m *Manager) PutAccount(addr []byte, acc *types.Account) error {
	normalized := types.EnsureAccount(acc)
	return m.write(accountKey(addr), &storedAccount{Nonce: normalized.Nonce, Balance: normalized.Balance})
}

// --- Roles ---

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	key := roleKey(trimmed)
	members, err := m.roleMembers(key)
	if err != nil {
		return err
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i], members[j]) < 0 })
	return m.write(key, members)
}

// UnsetRole removes the address from the role's member list. Removing an
// absent member is a no-op.
func (m *Manager) UnsetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	key := roleKey(trimmed)
	members, err := m.roleMembers(key)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, member := range members {
		if !bytes.Equal(member, addr) {
			filtered = append(filtered, member)
		}
	}
	return m.write(key, filtered)
}

// HasRole reports whether the address is a member of the role.
func (m *Manager) HasRole(role string, addr []byte) bool {
	members, err := m.roleMembers(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	return m.roleMembers(roleKey(strings.TrimSpace(role)))
}

func (m *Manager) roleMembers(key []byte) ([][]byte, error) {
	var members [][]byte
	ok, err := m.read(key, &members)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][]byte{}, nil
	}
	return members, nil
}

// --- Pause flags ---

// SetPaused flips the circuit breaker for the named module.
func (m *Manager) SetPaused(module string, paused bool) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("module must not be empty")
	}
	return m.write(pauseKey(trimmed), paused)
}

// IsPaused reports whether the module's circuit breaker is engaged.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.read(pauseKey(strings.TrimSpace(module)), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}

// --- Donations ---

type storedDonation struct {
	ID               uint64
	Donor            [20]byte
	Nonprofit        [20]byte
	Amount           *big.Int
	EquityPercentage uint8
	FundingDeadline  uint64
	Valuation        *big.Int
	NonprofitName    string
	Description      string
	CreatedAt        uint64
	Extended         uint64
	Status           uint8
}

// DonationPut persists the sanitized record under its id.
func (m *Manager) DonationPut(d *donation.Donation) error {
	sanitized, err := donation.Sanitize(d)
	if err != nil {
		return err
	}
	stored := storedDonation{
		ID:               sanitized.ID,
		Donor:            sanitized.Donor,
		Nonprofit:        sanitized.Nonprofit,
		Amount:           sanitized.Amount,
		EquityPercentage: sanitized.EquityPercentage,
		FundingDeadline:  uint64(sanitized.FundingDeadline),
		Valuation:        sanitized.Valuation,
		NonprofitName:    sanitized.NonprofitName,
		Description:      sanitized.Description,
		CreatedAt:        uint64(sanitized.CreatedAt),
		Extended:         uint64(sanitized.Extended),
		Status:           uint8(sanitized.Status),
	}
	return m.write(donationKey(stored.ID), &stored)
}

// DonationGet loads the record for the id.
func (m *Manager) DonationGet(id uint64) (*donation.Donation, bool, error) {
	var stored storedDonation
	ok, err := m.read(donationKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record := &donation.Donation{
		ID:               stored.ID,
		Donor:            stored.Donor,
		Nonprofit:        stored.Nonprofit,
		Amount:           stored.Amount,
		EquityPercentage: stored.EquityPercentage,
		FundingDeadline:  int64(stored.FundingDeadline),
		Valuation:        stored.Valuation,
		NonprofitName:    stored.NonprofitName,
		Description:      stored.Description,
		CreatedAt:        int64(stored.CreatedAt),
		Extended:         int64(stored.Extended),
		Status:           donation.Status(stored.Status),
	}
	return record, true, nil
}

// NextDonationID allocates the next sequential donation identifier, starting
// at 1. Identifiers are never reused.
func (m *Manager) NextDonationID() (uint64, error) {
	var seq uint64
	if _, err := m.read(donationSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.write(donationSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// DonationCount returns the total number of records ever created.
func (m *Manager) DonationCount() (uint64, error) {
	var seq uint64
	if _, err := m.read(donationSeqKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// IncrementDonorDonations bumps the per-identity creation counter consumed by
// the reputation dedup key and returns the new value.
func (m *Manager) IncrementDonorDonations(addr [20]byte) (uint64, error) {
	count, err := m.DonorDonations(addr)
	if err != nil {
		return 0, err
	}
	count++
	if err := m.write(donorCountKey(addr[:]), count); err != nil {
		return 0, err
	}
	return count, nil
}

// DonorDonations returns how many records the identity has created.
func (m *Manager) DonorDonations(addr [20]byte) (uint64, error) {
	var count uint64
	if _, err := m.read(donorCountKey(addr[:]), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- Escrow slots ---

// EscrowBalance returns the custodied balance for the donation id.
func (m *Manager) EscrowBalance(id uint64) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.read(escrowKey(id), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// EscrowCredit adds the amount to the donation's escrow slot.
func (m *Manager) EscrowCredit(id uint64, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("escrow credit must be non-negative")
	}
	current, err := m.EscrowBalance(id)
	if err != nil {
		return err
	}
	return m.write(escrowKey(id), new(big.Int).Add(current, amt))
}

// EscrowDebit removes the amount from the donation's escrow slot, failing if
// the slot holds less than the requested amount.
func (m *Manager) EscrowDebit(id uint64, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("escrow debit must be non-negative")
	}
	current, err := m.EscrowBalance(id)
	if err != nil {
		return err
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("escrow balance underflow for donation %d", id)
	}
	return m.write(escrowKey(id), new(big.Int).Sub(current, amt))
}

// VaultAddress returns the module account holding all custodied funds.
func (m *Manager) VaultAddress() [20]byte {
	digest := ethcrypto.Keccak256(vaultSeed)
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// --- Generic KV ---

// KVPut stores an RLP-encoded value under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	return m.write(kvKey(key), value)
}

// KVGet loads the value stored under the hashed key, reporting whether the
// key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	return m.read(kvKey(key), out)
}
