package journal

import (
	"encoding/csv"
	"os"
	"strconv"
)

type CSVJournal struct {
	trades *csv.Writer
	f      *os.File
}

// NewCSV opens path for appending, writing the header only when the file
// is new. Restarting the service keeps earlier trades.
func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)

	if info.Size() == 0 {
		if err := w.Write([]string{"id", "user_id", "symbol", "side", "quantity", "price", "cash_after", "time"}); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVJournal{w, f}, nil
}

func (j *CSVJournal) Record(r Record) error {
	err := j.trades.Write([]string{
		r.ID,
		r.UserID,
		r.Symbol,
		r.Side,
		f(r.Quantity),
		f(r.Price),
		f(r.CashAfter),
		r.Time,
	})
	if err != nil {
		return err
	}

	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
