// Package journal keeps an append-only record of executed paper trades,
// separate from the authoritative portfolio state. Writes are best-effort:
// callers log a failed append and carry on.
package journal

// Record is one executed trade as it left the ledger.
type Record struct {
	ID        string
	UserID    string
	Symbol    string
	Side      string
	Quantity  float64
	Price     float64
	CashAfter float64
	Time      string
}

type Journal interface {
	Record(Record) error
	Close() error
}

// Nop discards every record. Used when journaling is disabled.
type Nop struct{}

func (Nop) Record(Record) error { return nil }
func (Nop) Close() error        { return nil }
