package ledger_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpMarket/internal/ledger"

	"github.com/google/uuid"
)

func TestMintTransferBurn(t *testing.T) {
	l := ledger.NewInMemory()
	alice := uuid.New()
	bob := uuid.New()

	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(30)); err != nil {
		t.Fatal(err)
	}
	if err := l.Burn(bob, big.NewInt(10)); err != nil {
		t.Fatal(err)
	}

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("alice: got %s, want 70", got)
	}
	if got := l.BalanceOf(bob); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("bob: got %s, want 20", got)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(90)) != 0 {
		t.Errorf("supply: got %s, want 90", got)
	}
}

func TestTransfer_InsufficientIsSideEffectFree(t *testing.T) {
	l := ledger.NewInMemory()
	alice := uuid.New()
	bob := uuid.New()
	if err := l.Mint(alice, big.NewInt(5)); err != nil {
		t.Fatal(err)
	}

	err := l.Transfer(alice, bob, big.NewInt(10))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("failed transfer must not debit: got %s", got)
	}
	if got := l.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("failed transfer must not credit: got %s", got)
	}
}

func TestBurn_Insufficient(t *testing.T) {
	l := ledger.NewInMemory()
	alice := uuid.New()

	err := l.Burn(alice, big.NewInt(1))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if got := l.TotalSupply(); got.Sign() != 0 {
		t.Errorf("failed burn must not touch supply: got %s", got)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := ledger.NewInMemory()
	a := uuid.New()
	neg := big.NewInt(-1)

	if err := l.Mint(a, neg); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("mint: want ErrNegativeAmount, got %v", err)
	}
	if err := l.Burn(a, neg); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("burn: want ErrNegativeAmount, got %v", err)
	}
	if err := l.Transfer(a, uuid.New(), neg); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("transfer: want ErrNegativeAmount, got %v", err)
	}
}

func TestSelfTransferIsNoop(t *testing.T) {
	l := ledger.NewInMemory()
	alice := uuid.New()
	if err := l.Mint(alice, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(alice, alice, big.NewInt(20)); err != nil {
		t.Fatal(err)
	}
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("self transfer: got %s, want 50", got)
	}
}

func TestBalanceOf_ReturnsCopy(t *testing.T) {
	l := ledger.NewInMemory()
	alice := uuid.New()
	if err := l.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatal(err)
	}

	b := l.BalanceOf(alice)
	b.SetInt64(0)
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Error("mutating a returned balance must not touch the ledger")
	}
}
