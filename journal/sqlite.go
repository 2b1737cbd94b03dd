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

func (j *SQLiteJournal) RecordTP1(r TP1Record) error {
	_, err := j.db.Exec(`
		INSERT INTO tp1_events
		(id, ticket, symbol, side, entry, trigger_price, close_price, close_volume, pips_profit, profit_money, be_status, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Ticket, r.Symbol, r.Side, r.Entry, r.TriggerPrice,
		r.ClosePrice, r.CloseVolume, r.PipsProfit, r.ProfitMoney, r.BEStatus, r.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordStopLoss(r StopLossRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO sl_events
		(id, ticket, symbol, side, entry, stop_price, volume, pips_loss, profit_money, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Ticket, r.Symbol, r.Side, r.Entry, r.StopPrice,
		r.Volume, r.PipsLoss, r.ProfitMoney, r.Time,
	)
	return err
}

func (j *SQLiteJournal) RecentTP1(limit int) ([]TP1Record, error) {
	rows, err := j.db.Query(`
		SELECT id, ticket, symbol, side, entry, trigger_price, close_price, close_volume, pips_profit, profit_money, be_status, time
		FROM tp1_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TP1Record
	for rows.Next() {
		var r TP1Record
		if err := rows.Scan(&r.ID, &r.Ticket, &r.Symbol, &r.Side, &r.Entry,
			&r.TriggerPrice, &r.ClosePrice, &r.CloseVolume, &r.PipsProfit,
			&r.ProfitMoney, &r.BEStatus, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) RecentStopLosses(limit int) ([]StopLossRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, ticket, symbol, side, entry, stop_price, volume, pips_loss, profit_money, time
		FROM sl_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StopLossRecord
	for rows.Next() {
		var r StopLossRecord
		if err := rows.Scan(&r.ID, &r.Ticket, &r.Symbol, &r.Side, &r.Entry,
			&r.StopPrice, &r.Volume, &r.PipsLoss, &r.ProfitMoney, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
