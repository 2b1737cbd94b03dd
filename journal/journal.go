// Package journal persists watcher events so partial closes and stop
// outs survive process restarts and can be audited later.
package journal

import "time"

// TP1Record is a journaled TP1 partial-close execution.
type TP1Record struct {
	ID           string    `json:"id"`
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Entry        float64   `json:"entry"`
	TriggerPrice float64   `json:"tp1_price"`
	ClosePrice   float64   `json:"close_price"`
	CloseVolume  float64   `json:"close_volume"`
	PipsProfit   float64   `json:"pips_profit"`
	ProfitMoney  float64   `json:"profit_money"`
	BEStatus     string    `json:"be_status"`
	Time         time.Time `json:"timestamp"`
}

// StopLossRecord is a journaled stop-loss closure detected by the
// watcher after a tracked position disappeared from the venue.
type StopLossRecord struct {
	ID          string    `json:"id"`
	Ticket      int64     `json:"ticket"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Entry       float64   `json:"entry"`
	StopPrice   float64   `json:"sl_price"`
	Volume      float64   `json:"volume"`
	PipsLoss    float64   `json:"pips_loss"`
	ProfitMoney float64   `json:"profit_money"`
	Time        time.Time `json:"timestamp"`
}

// Journal records watcher events durably.
type Journal interface {
	RecordTP1(TP1Record) error
	RecordStopLoss(StopLossRecord) error
	Close() error
}

// Reader serves recent events back to the operational surface.
type Reader interface {
	RecentTP1(limit int) ([]TP1Record, error)
	RecentStopLosses(limit int) ([]StopLossRecord, error)
}
