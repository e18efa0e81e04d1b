// Package ledger settles the market's collateral token. The market pulls
// collateral in on build, pays traders out on unwind, and mints or burns
// against its own account to cover payoff imbalances.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrNegativeAmount      = errors.New("ledger: negative amount")
)

// Ledger is the collateral token interface the market settles against. All
// amounts are 1e18-scaled and non-negative.
type Ledger interface {
	// Transfer moves amount from one account to another. Fails without
	// side effects when the source balance is short.
	Transfer(from, to uuid.UUID, amount *big.Int) error

	// Mint credits newly created supply to an account.
	Mint(to uuid.UUID, amount *big.Int) error

	// Burn destroys supply held by an account.
	Burn(from uuid.UUID, amount *big.Int) error

	// BalanceOf returns a copy of the account balance.
	BalanceOf(account uuid.UUID) *big.Int

	// TotalSupply returns a copy of the outstanding supply.
	TotalSupply() *big.Int
}

// InMemory is the in-process Ledger used by the service and its tests.
// Balances can never go negative; supply tracks mint minus burn exactly.
type InMemory struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]*big.Int
	supply   *big.Int
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: make(map[uuid.UUID]*big.Int),
		supply:   new(big.Int),
	}
}

func checkAmount(amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return nil
}

func (l *InMemory) balance(account uuid.UUID) *big.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	return b
}

func (l *InMemory) Transfer(from, to uuid.UUID, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientBalance, from, src, amount)
	}
	if from == to {
		return nil
	}
	src.Sub(src, amount)
	dst := l.balance(to)
	dst.Add(dst, amount)
	return nil
}

func (l *InMemory) Mint(to uuid.UUID, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balance(to)
	b.Add(b, amount)
	l.supply.Add(l.supply, amount)
	return nil
}

func (l *InMemory) Burn(from uuid.UUID, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balance(from)
	if b.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s has %s, burns %s", ErrInsufficientBalance, from, b, amount)
	}
	b.Sub(b, amount)
	l.supply.Sub(l.supply, amount)
	return nil
}

func (l *InMemory) BalanceOf(account uuid.UUID) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *InMemory) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply)
}
