package broker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPositionNotFound is returned when a ticket cannot be resolved to a
// live position through either the direct or the order-history path.
var ErrPositionNotFound = errors.New("position not found")

// Resolver maps an order or position ticket to a live position snapshot.
//
// A ticket is tried as a position id first. Failing that it is treated as
// an order id: recent deal history is scanned for a fill originating from
// that order and its position-group id is followed back to the live set.
// Order tickets older than Lookback will not resolve; widen the window if
// that matters for your flow.
type Resolver struct {
	Gateway  Gateway
	Lookback time.Duration
	Now      func() time.Time
}

// NewResolver returns a Resolver with the default 6-hour deal lookback.
func NewResolver(gw Gateway) *Resolver {
	return &Resolver{
		Gateway:  gw,
		Lookback: 6 * time.Hour,
		Now:      time.Now,
	}
}

// Resolve returns the live position for a position or order ticket.
func (r *Resolver) Resolve(ctx context.Context, ticket int64) (Position, error) {
	positions, err := r.Gateway.OpenPositions(ctx)
	if err != nil {
		return Position{}, fmt.Errorf("resolve %d: %w", ticket, err)
	}

	for _, p := range positions {
		if p.Ticket == ticket {
			return p, nil
		}
	}

	// Order-ticket path: newest deal for this order wins.
	now := r.Now()
	deals, err := r.Gateway.DealsInRange(ctx, now.Add(-r.Lookback), now)
	if err != nil {
		return Position{}, fmt.Errorf("resolve %d: deal history: %w", ticket, err)
	}

	var best *Deal
	for i := range deals {
		d := &deals[i]
		if d.Order != ticket {
			continue
		}
		if best == nil || d.Time.After(best.Time) {
			best = d
		}
	}
	if best == nil || best.PositionID == 0 {
		return Position{}, ErrPositionNotFound
	}

	for _, p := range positions {
		if p.Ticket == best.PositionID {
			return p, nil
		}
	}
	return Position{}, ErrPositionNotFound
}

// NewestOpenPosition returns the ticket of the most recently opened
// position matching symbol, side and ownership magic. Hedging accounts
// may hold several positions per symbol/side, so the latest open time
// wins.
func (r *Resolver) NewestOpenPosition(ctx context.Context, symbol string, side Side, magic int64) (int64, error) {
	positions, err := r.Gateway.OpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("newest open position: %w", err)
	}

	var newest *Position
	for i := range positions {
		p := &positions[i]
		if p.Symbol != symbol || p.Side != side || p.Magic != magic {
			continue
		}
		if newest == nil || p.OpenTime.After(newest.OpenTime) {
			newest = p
		}
	}
	if newest == nil {
		return 0, ErrPositionNotFound
	}
	return newest.Ticket, nil
}
