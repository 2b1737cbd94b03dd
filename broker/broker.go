package broker

import (
	"context"
	"fmt"
	"time"
)

// Side is the direction of a position or order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the closing side for a position on side s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Position is a live open position as reported by the venue. It is read
// fresh on every poll; callers must not cache it across ticks.
type Position struct {
	Ticket     int64
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Magic      int64
	Comment    string
	OpenTime   time.Time
}

// SymbolSpec carries the broker constraints for a symbol.
type SymbolSpec struct {
	Symbol      string
	Digits      int
	Point       float64
	VolumeMin   float64
	VolumeStep  float64
	VolumeMax   float64
	StopsLevel  int // minimum stop distance from market, in points
	FreezeLevel int
}

// MinStopDistance returns the minimum allowed distance between a stop
// price and the current market, in price terms.
func (s SymbolSpec) MinStopDistance() float64 {
	level := s.StopsLevel
	if s.FreezeLevel > level {
		level = s.FreezeLevel
	}
	if s.Point <= 0 || level <= 0 {
		return 0
	}
	return float64(level) * s.Point
}

// Tick is a bid/ask quote.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// OrderRequest places a market or pending order.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Volume   float64
	Price    float64 // 0 for market orders
	StopLoss float64
	Magic    int64
	Comment  string
}

// OrderResult is the venue's response to an order, stop modification or
// partial close.
type OrderResult struct {
	Success    bool
	Retcode    int
	Comment    string
	OrderID    int64
	PositionID int64
}

// Deal is a single fill from the venue's trade history.
type Deal struct {
	Ticket     int64
	Order      int64
	PositionID int64
	Symbol     string
	Profit     float64
	Time       time.Time
}

// Gateway is the trading-venue capability the watcher consumes. All
// methods are synchronous; implementations own retries and transport.
type Gateway interface {
	IsConnected(ctx context.Context) bool
	OpenPositions(ctx context.Context) ([]Position, error)
	SymbolSpec(ctx context.Context, symbol string) (SymbolSpec, error)
	GetTick(ctx context.Context, symbol string) (Tick, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyStopLoss(ctx context.Context, positionID int64, price float64) (OrderResult, error)
	ClosePartial(ctx context.Context, positionID int64, volume, price float64) (OrderResult, error)
	CalcProfit(ctx context.Context, side Side, symbol string, volume, openPrice, closePrice float64) (float64, error)
	DealsByPosition(ctx context.Context, positionID int64) ([]Deal, error)
	DealsInRange(ctx context.Context, from, to time.Time) ([]Deal, error)
}

// RetcodeMessage maps venue return codes to operator-friendly messages.
func RetcodeMessage(retcode int) string {
	switch retcode {
	case 10004:
		return "requote - price changed, try again"
	case 10006:
		return "order rejected by broker"
	case 10014:
		return "invalid volume - check minimum lot size"
	case 10015:
		return "invalid price - check symbol specifications"
	case 10016:
		return "invalid stops - check stop levels"
	case 10019:
		return "not enough money - insufficient account balance"
	case 10020:
		return "prices changed - market conditions changed"
	case 10021:
		return "too many requests - slow down order placement"
	case 10025:
		return "no changes made - order already in requested state"
	case 10026:
		return "auto trading disabled - enable auto trading in the terminal"
	case 10027:
		return "client disabled - contact broker"
	case 10030:
		return "invalid request - check order parameters"
	case 10031:
		return "market closed - trading hours restriction"
	}
	return fmt.Sprintf("venue error %d", retcode)
}
