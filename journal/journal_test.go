package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSVJournalHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	assert.NoError(t, err)
	assert.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	header, err := reader.Read()
	assert.NoError(t, err)

	want := []string{"id", "user_id", "symbol", "side", "quantity", "price", "cash_after", "time"}
	assert.Equal(t, want, header)
}

func TestCSVJournalRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	assert.NoError(t, err)

	err = j.Record(Record{
		ID:        "01JXYZ",
		UserID:    "u1",
		Symbol:    "AAPL",
		Side:      "buy",
		Quantity:  2,
		Price:     187.5,
		CashAfter: 625,
		Time:      "2026-08-30T12:00:00Z",
	})
	assert.NoError(t, err)
	assert.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	_, err = reader.Read() // header
	assert.NoError(t, err)
	row, err := reader.Read()
	assert.NoError(t, err)

	want := []string{
		"01JXYZ",
		"u1",
		"AAPL",
		"buy",
		"2.000000",
		"187.500000",
		"625.000000",
		"2026-08-30T12:00:00Z",
	}
	assert.Equal(t, want, row)
}

func TestCSVJournalAppendsAcrossReopens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")

	j, err := NewCSV(path)
	assert.NoError(t, err)
	assert.NoError(t, j.Record(Record{ID: "one", Side: "buy"}))
	assert.NoError(t, j.Close())

	j, err = NewCSV(path)
	assert.NoError(t, err)
	assert.NoError(t, j.Record(Record{ID: "two", Side: "sell"}))
	assert.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	rows, err := reader.ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 3) // header plus both records
	assert.Equal(t, "one", rows[1][0])
	assert.Equal(t, "two", rows[2][0])
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	assert.NoError(t, err)
	defer j.Close()

	records := []Record{
		{ID: "a", UserID: "u1", Symbol: "AAPL", Side: "buy", Quantity: 2, Price: 100, CashAfter: 800, Time: "2026-08-30T12:00:00Z"},
		{ID: "b", UserID: "u1", Symbol: "AAPL", Side: "sell", Quantity: 1, Price: 120, CashAfter: 920, Time: "2026-08-30T13:00:00Z"},
		{ID: "c", UserID: "u2", Symbol: "MSFT", Side: "buy", Quantity: 1, Price: 400, CashAfter: 600, Time: "2026-08-30T14:00:00Z"},
	}
	for _, r := range records {
		assert.NoError(t, j.Record(r))
	}

	got, err := j.ListByUser("u1")
	assert.NoError(t, err)
	assert.Equal(t, records[:2], got)

	got, err = j.ListByUser("nobody")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteJournalDuplicateID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	assert.NoError(t, err)
	defer j.Close()

	r := Record{ID: "dup", UserID: "u1", Symbol: "AAPL", Side: "buy", Quantity: 1, Price: 100, CashAfter: 900, Time: "2026-08-30T12:00:00Z"}
	assert.NoError(t, j.Record(r))
	assert.Error(t, j.Record(r))
}

func TestNopJournal(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.Record(Record{ID: "x"}))
	assert.NoError(t, j.Close())
}
