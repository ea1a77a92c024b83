package chrono

import (
	"errors"
	"testing"
)

func TestLedger_Conservation(t *testing.T) {
	l := NewEnergyLedger(10, 100)

	// balance must equal credits minus accepted debits, exactly.
	ops := []struct {
		spend  int
		credit int
		ok     bool
	}{
		{spend: 4, ok: true},
		{credit: 7},
		{spend: 13, ok: true},
		{spend: 1, ok: false}, // balance 0
		{credit: 3},
		{spend: 2, ok: true},
	}
	want := 10
	for i, op := range ops {
		if op.credit > 0 {
			l.Credit(op.credit)
			want += op.credit
			continue
		}
		err := l.TrySpend(op.spend)
		if (err == nil) != op.ok {
			t.Fatalf("op %d: spend %d err=%v, want ok=%v", i, op.spend, err, op.ok)
		}
		if op.ok {
			want -= op.spend
		}
	}
	if l.Balance() != want {
		t.Fatalf("balance = %d, want %d", l.Balance(), want)
	}
}

func TestLedger_RejectedDebitLeavesBalance(t *testing.T) {
	l := NewEnergyLedger(5, 100)
	if err := l.TrySpend(6); !errors.Is(err, ErrInsufficientEnergy) {
		t.Fatalf("overdraft: %v", err)
	}
	if l.Balance() != 5 {
		t.Fatalf("balance = %d after rejected debit, want 5", l.Balance())
	}
	if err := l.TrySpend(-1); !errors.Is(err, ErrInsufficientEnergy) {
		t.Fatalf("negative debit: %v", err)
	}
	if l.Balance() != 5 {
		t.Fatalf("balance = %d after negative debit, want 5", l.Balance())
	}
}

func TestLedger_CreditSaturates(t *testing.T) {
	l := NewEnergyLedger(90, 100)
	l.Credit(25)
	if l.Balance() != 100 {
		t.Fatalf("balance = %d, want saturation at 100", l.Balance())
	}
	// Max 0 means unbounded.
	u := NewEnergyLedger(0, 0)
	u.Credit(1 << 20)
	if u.Balance() != 1<<20 {
		t.Fatalf("unbounded balance = %d", u.Balance())
	}
}
