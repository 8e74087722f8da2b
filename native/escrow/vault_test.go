package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	slots    map[uint64]*big.Int
	vault    [20]byte

	failPutFor  *[20]byte
	onPut       func(addr []byte)
	putDisabled bool
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*types.Account),
		slots:    make(map[uint64]*big.Int),
		vault:    newTestAddress(0xEE),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) EscrowBalance(id uint64) (*big.Int, error) {
	balance, ok := m.slots[id]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (m *mockState) EscrowCredit(id uint64, amt *big.Int) error {
	current, _ := m.EscrowBalance(id)
	m.slots[id] = current.Add(current, amt)
	return nil
}

func (m *mockState) EscrowDebit(id uint64, amt *big.Int) error {
	current, _ := m.EscrowBalance(id)
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("underflow")
	}
	m.slots[id] = current.Sub(current, amt)
	return nil
}

func (m *mockState) VaultAddress() [20]byte { return m.vault }

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	if m.putDisabled {
		return fmt.Errorf("storage offline")
	}
	if m.failPutFor != nil && *m.failPutFor == key {
		return fmt.Errorf("write rejected")
	}
	if m.onPut != nil {
		m.onPut(addr)
	}
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

func TestDepositMovesFundsIntoVault(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	funder := newTestAddress(0x01)
	state.setBalance(funder, 1000)

	if err := vault.Deposit(7, funder, big.NewInt(400)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if got := state.balance(funder); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("funder balance = %s, want 600", got)
	}
	if got := state.balance(state.vault); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("vault balance = %s, want 400", got)
	}
	slot, _ := vault.Balance(7)
	if slot.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("slot = %s, want 400", slot)
	}
}

func TestDepositRejectsUncoveredFunder(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	funder := newTestAddress(0x01)
	state.setBalance(funder, 10)

	err := vault.Deposit(1, funder, big.NewInt(400))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	slot, _ := vault.Balance(1)
	if slot.Sign() != 0 {
		t.Fatalf("slot should remain empty, got %s", slot)
	}
}

func TestReleasePaysOutAndZeroesSlot(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	funder := newTestAddress(0x01)
	payee := newTestAddress(0x02)
	state.setBalance(funder, 500)
	if err := vault.Deposit(3, funder, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	amount, err := vault.Release(3, payee)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("released %s, want 500", amount)
	}
	slot, _ := vault.Balance(3)
	if slot.Sign() != 0 {
		t.Fatalf("slot not zeroed: %s", slot)
	}
	if got := state.balance(payee); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("payee balance = %s, want 500", got)
	}
	if got := state.balance(state.vault); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
}

func TestReleaseEmptySlot(t *testing.T) {
	vault := NewVault(newMockState())
	if _, err := vault.Release(99, newTestAddress(0x02)); !errors.Is(err, ErrEmptySlot) {
		t.Fatalf("expected ErrEmptySlot, got %v", err)
	}
}

func TestReleaseRollsBackOnTransferFailure(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	funder := newTestAddress(0x01)
	payee := newTestAddress(0x02)
	state.setBalance(funder, 500)
	if err := vault.Deposit(3, funder, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	state.failPutFor = &payee
	_, err := vault.Release(3, payee)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	slot, _ := vault.Balance(3)
	if slot.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("slot should be restored to 500, got %s", slot)
	}
	if got := state.balance(state.vault); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vault balance should be restored to 500, got %s", got)
	}
	if got := state.balance(payee); got.Sign() != 0 {
		t.Fatalf("payee should not have been paid, got %s", got)
	}
}

func TestSlotObservedEmptyDuringOutboundTransfer(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	funder := newTestAddress(0x01)
	payee := newTestAddress(0x02)
	state.setBalance(funder, 500)
	if err := vault.Deposit(3, funder, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var observed *big.Int
	state.onPut = func([]byte) {
		if observed == nil {
			observed, _ = vault.Balance(3)
		}
	}
	if _, err := vault.Release(3, payee); err != nil {
		t.Fatalf("release: %v", err)
	}
	if observed == nil || observed.Sign() != 0 {
		t.Fatalf("reentrant observer saw slot %v, want 0", observed)
	}
}

func TestSweepAllDrainsVaultRegardlessOfSlots(t *testing.T) {
	state := newMockState()
	vault := NewVault(state)
	admin := newTestAddress(0xAD)
	a := newTestAddress(0x01)
	b := newTestAddress(0x02)
	state.setBalance(a, 300)
	state.setBalance(b, 200)
	if err := vault.Deposit(1, a, big.NewInt(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := vault.Deposit(2, b, big.NewInt(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	total, err := vault.SweepAll(admin)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("swept %s, want 500", total)
	}
	if got := state.balance(state.vault); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
	if got := state.balance(admin); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("admin balance = %s, want 500", got)
	}
	// Slot bookkeeping is deliberately untouched by the sweep.
	slot, _ := vault.Balance(1)
	if slot.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("slot 1 = %s, want 300", slot)
	}
}

func TestSweepAllEmptyVault(t *testing.T) {
	vault := NewVault(newMockState())
	total, err := vault.SweepAll(newTestAddress(0xAD))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("swept %s, want 0", total)
	}
}
