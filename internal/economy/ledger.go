// Package economy provides the evolution-point currency that gates gene
// installation and removal.
package economy

import "errors"

// ErrInsufficientEP is returned when a spend would drive the balance
// negative. The balance is left untouched.
var ErrInsufficientEP = errors.New("insufficient evolution points")

// Ledger tracks the evolution-point balance. The balance never goes
// negative: spends that would overdraw fail atomically.
type Ledger struct {
	balance int
}

// NewLedger creates a ledger with the given starting balance. Negative
// starting balances are clamped to zero.
func NewLedger(balance int) *Ledger {
	if balance < 0 {
		balance = 0
	}
	return &Ledger{balance: balance}
}

// Balance returns the current EP balance.
func (l *Ledger) Balance() int {
	return l.balance
}

// Spend deducts cost from the balance. Returns ErrInsufficientEP without
// mutating when the balance cannot cover the cost.
func (l *Ledger) Spend(cost int) error {
	if cost < 0 {
		cost = 0
	}
	if l.balance < cost {
		return ErrInsufficientEP
	}
	l.balance -= cost
	return nil
}

// Credit adds reward points to the balance.
func (l *Ledger) Credit(amount int) {
	if amount < 0 {
		return
	}
	l.balance += amount
}
