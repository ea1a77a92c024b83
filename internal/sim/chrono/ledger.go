package chrono

import "fmt"

// EnergyLedger tracks the quantum energy pool gating recording and echoes.
// The balance never goes negative: a debit larger than the balance is
// rejected outright, never clamped and never partially applied.
type EnergyLedger struct {
	balance int
	max     int
}

func NewEnergyLedger(initial, max int) *EnergyLedger {
	if max > 0 && initial > max {
		initial = max
	}
	if initial < 0 {
		initial = 0
	}
	return &EnergyLedger{balance: initial, max: max}
}

func (l *EnergyLedger) Balance() int { return l.balance }
func (l *EnergyLedger) Max() int     { return l.max }

// TrySpend is an atomic check-and-debit.
func (l *EnergyLedger) TrySpend(amount int) error {
	if amount < 0 {
		return fmt.Errorf("negative debit %d: %w", amount, ErrInsufficientEnergy)
	}
	if amount > l.balance {
		return fmt.Errorf("debit %d, balance %d: %w", amount, l.balance, ErrInsufficientEnergy)
	}
	l.balance -= amount
	return nil
}

// Credit adds energy, saturating at the configured maximum. Max 0 means
// unbounded.
func (l *EnergyLedger) Credit(amount int) {
	if amount <= 0 {
		return
	}
	l.balance += amount
	if l.max > 0 && l.balance > l.max {
		l.balance = l.max
	}
}

// check reports the broken-invariant condition of §7: a balance observed
// negative aborts the turn.
func (l *EnergyLedger) check() error {
	if l.balance < 0 {
		return fmt.Errorf("ledger balance %d: %w", l.balance, ErrStateCorrupt)
	}
	return nil
}
