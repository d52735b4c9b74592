package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	quantity   REAL NOT NULL,
	price      REAL NOT NULL,
	cash_after REAL NOT NULL,
	time       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user ON trades (user_id, time);
`
