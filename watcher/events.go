package watcher

import "time"

// TP1Event describes an executed TP1 partial close, kept for status
// queries and journaled when a journal is attached.
type TP1Event struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Entry        float64   `json:"entry"`
	TriggerPrice float64   `json:"tp1_price"`
	ClosePrice   float64   `json:"close_price"`
	CloseVolume  float64   `json:"close_volume"`
	PipsProfit   float64   `json:"pips_profit"`
	ProfitMoney  *float64  `json:"profit_money,omitempty"`
	BEStatus     string    `json:"be_status"`
	Time         time.Time `json:"timestamp"`
}

// StopLossEvent describes a stop-loss closure reconstructed from the
// last cached snapshot after a tracked position disappeared.
type StopLossEvent struct {
	Ticket      int64     `json:"ticket"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Entry       float64   `json:"entry"`
	StopPrice   float64   `json:"sl_price"`
	Volume      float64   `json:"volume"`
	PipsLoss    float64   `json:"pips_loss"`
	ProfitMoney *float64  `json:"profit_money,omitempty"`
	Time        time.Time `json:"timestamp"`
}

// StartResult reports the outcome of a start request.
type StartResult struct {
	Running bool   `json:"running"`
	Locked  bool   `json:"locked"`
	PID     int    `json:"pid,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Status is a copied-out snapshot of the watcher; it never aliases live
// state.
type Status struct {
	Running        bool           `json:"running"`
	LockOwnerPID   int            `json:"lock_owner_pid,omitempty"`
	LockAgeSeconds float64        `json:"lock_age_seconds,omitempty"`
	WatchedCount   int            `json:"watched_positions"`
	CompletedCount int            `json:"tp1_done_count"`
	LastError      string         `json:"last_error,omitempty"`
	LastTP1        *TP1Event      `json:"last_tp1_event,omitempty"`
	LastStopLoss   *StopLossEvent `json:"last_sl_event,omitempty"`
}
