package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Record(r Record) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, user_id, symbol, side, quantity, price, cash_after, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Symbol, r.Side,
		r.Quantity, r.Price, r.CashAfter, r.Time,
	)
	return err
}

// ListByUser returns a user's trades oldest first.
func (j *SQLiteJournal) ListByUser(userID string) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT id, user_id, symbol, side, quantity, price, cash_after, time
		FROM trades WHERE user_id = ? ORDER BY time`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		err := rows.Scan(&r.ID, &r.UserID, &r.Symbol, &r.Side,
			&r.Quantity, &r.Price, &r.CashAfter, &r.Time)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
