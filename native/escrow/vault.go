package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
)

var (
	errNilState = errors.New("escrow vault: state not configured")

	// ErrEmptySlot marks release or refund attempts against a donation id
	// with no custodied funds.
	ErrEmptySlot = errors.New("escrow vault: empty slot")
	// ErrInsufficientBalance marks deposits the funder cannot cover and
	// outbound transfers the vault account cannot cover.
	ErrInsufficientBalance = errors.New("escrow vault: insufficient balance")
	// ErrTransferFailed wraps outbound transfers that could not complete.
	ErrTransferFailed = errors.New("escrow vault: transfer failed")
)

// vaultState is the subset of state manager functionality the vault needs.
type vaultState interface {
	EscrowBalance(id uint64) (*big.Int, error)
	EscrowCredit(id uint64, amt *big.Int) error
	EscrowDebit(id uint64, amt *big.Int) error
	VaultAddress() [20]byte
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Vault custodies one balance slot per donation id. The sum of all non-zero
// slots equals the vault account's total balance; every release or refund
// commits the slot debit before attempting the outbound transfer and
// un-commits it when the transfer fails.
type Vault struct {
	state vaultState
}

// NewVault constructs a vault over the supplied state backend.
func NewVault(state vaultState) *Vault {
	return &Vault{state: state}
}

// Balance returns the custodied amount for the donation id.
func (v *Vault) Balance(id uint64) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	return v.state.EscrowBalance(id)
}

// Deposit moves the amount from the funder's account into the vault account
// and credits the donation's slot.
func (v *Vault) Deposit(id uint64, from [20]byte, amount *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("escrow vault: deposit amount must be positive")
	}
	if err := v.transfer(from, v.state.VaultAddress(), amount); err != nil {
		return err
	}
	if err := v.state.EscrowCredit(id, amount); err != nil {
		// The funds already moved; hand them back rather than strand them
		// in the vault account.
		if restoreErr := v.transfer(v.state.VaultAddress(), from, amount); restoreErr != nil {
			return fmt.Errorf("escrow vault: credit failed and restore failed: %v: %w", restoreErr, err)
		}
		return err
	}
	return nil
}

// Release zeroes the donation's slot and pays the prior balance out to the
// recipient. The slot is debited before the outbound transfer so a reentrant
// observer sees it empty; a failed transfer restores the slot and returns
// ErrTransferFailed.
func (v *Vault) Release(id uint64, to [20]byte) (*big.Int, error) {
	return v.payout(id, to)
}

// Refund is the donor-directed counterpart of Release with identical
// ordering and rollback discipline.
func (v *Vault) Refund(id uint64, to [20]byte) (*big.Int, error) {
	return v.payout(id, to)
}

func (v *Vault) payout(id uint64, to [20]byte) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	balance, err := v.state.EscrowBalance(id)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrEmptySlot
	}
	amount := new(big.Int).Set(balance)
	if err := v.state.EscrowDebit(id, amount); err != nil {
		return nil, err
	}
	if err := v.transfer(v.state.VaultAddress(), to, amount); err != nil {
		if restoreErr := v.state.EscrowCredit(id, amount); restoreErr != nil {
			return nil, fmt.Errorf("escrow vault: rollback failed: %v: %w", restoreErr, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return amount, nil
}

// SweepAll drains the vault account's entire balance to the recipient in one
// transfer, leaving the per-donation slots untouched. This deliberately
// breaks the slot-sum invariant and exists only as an admin circuit breaker.
func (v *Vault) SweepAll(to [20]byte) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	vaultAddr := v.state.VaultAddress()
	account, err := v.state.GetAccount(vaultAddr[:])
	if err != nil {
		return nil, err
	}
	account = types.EnsureAccount(account)
	total := new(big.Int).Set(account.Balance)
	if total.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := v.transfer(vaultAddr, to, total); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return total, nil
}

func (v *Vault) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("escrow vault: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := v.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := v.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = types.EnsureAccount(fromAcc)
	toAcc = types.EnsureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	originalFrom := fromAcc.Clone()
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := v.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := v.state.PutAccount(to[:], toAcc); err != nil {
		if restoreErr := v.state.PutAccount(from[:], originalFrom); restoreErr != nil {
			return fmt.Errorf("escrow vault: transfer rollback failed: %v: %w", restoreErr, err)
		}
		return err
	}
	return nil
}
