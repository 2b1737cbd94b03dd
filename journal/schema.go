package journal

const Schema = `
CREATE TABLE IF NOT EXISTS tp1_events (
	id TEXT PRIMARY KEY,
	ticket INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry REAL NOT NULL,
	trigger_price REAL NOT NULL,
	close_price REAL NOT NULL,
	close_volume REAL NOT NULL,
	pips_profit REAL NOT NULL,
	profit_money REAL NOT NULL,
	be_status TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sl_events (
	id TEXT PRIMARY KEY,
	ticket INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry REAL NOT NULL,
	stop_price REAL NOT NULL,
	volume REAL NOT NULL,
	pips_loss REAL NOT NULL,
	profit_money REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tp1_events_time ON tp1_events(time);
CREATE INDEX IF NOT EXISTS idx_sl_events_time ON sl_events(time);
`
