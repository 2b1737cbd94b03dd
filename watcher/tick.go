package watcher

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/tradewatch/broker"
	"github.com/rustyeddy/tradewatch/internal/id"
	"github.com/rustyeddy/tradewatch/journal"
	"github.com/rustyeddy/tradewatch/market"
	"github.com/rustyeddy/tradewatch/risk"
)

// tick runs one poll cycle: refresh tracking snapshots, test TP1
// triggers on owned positions, execute triggered partial closes, and
// synthesize stop-loss events for positions that disappeared.
//
// All venue calls within a tick are sequential; the tracking table is
// only ever mutated here and read (copied) by Status.
func (m *Manager) tick(ctx context.Context) error {
	if !m.gw.IsConnected(ctx) {
		return nil // venue offline; try again next interval
	}

	positions, err := m.gw.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("open positions: %w", err)
	}
	mtxTicks.Inc()

	live := make(map[int64]bool, len(positions))

	for _, p := range positions {
		if p.Magic != m.cfg.Magic {
			continue
		}
		if m.cfg.CommentPrefix != "" && !strings.HasPrefix(p.Comment, m.cfg.CommentPrefix) {
			continue
		}
		live[p.Ticket] = true

		spec, err := m.gw.SymbolSpec(ctx, p.Symbol)
		if err != nil {
			m.setLastError(fmt.Sprintf("symbol spec %s: %v", p.Symbol, err))
			continue
		}
		pip := market.PipForSymbol(p.Symbol, spec.Digits)

		if done := m.refreshTracking(p, pip); done {
			continue
		}

		trigger := p.EntryPrice + m.cfg.TP1Pips*pip
		if p.Side == broker.Sell {
			trigger = p.EntryPrice - m.cfg.TP1Pips*pip
		}

		tick, err := m.gw.GetTick(ctx, p.Symbol)
		if err != nil {
			continue // no quote; re-test next tick
		}

		// Conservative side of the spread: the price the close would
		// actually fill at. Longs exit on bid, shorts on ask.
		hit := tick.Bid >= trigger
		if p.Side == broker.Sell {
			hit = tick.Ask <= trigger
		}
		if !hit {
			continue
		}

		if allowed, reason := m.guard.Allowed(false); !allowed {
			// Never silently mark done; the trigger is re-tested next tick.
			log.Printf("tp1 trigger for %d blocked: %s", p.Ticket, reason)
			continue
		}

		m.executeTP1(ctx, p, spec, pip, trigger, tick)
	}

	m.updateWatchedGauge()

	// Tracked tickets missing from the live set either completed TP1
	// earlier or were closed by their stop.
	for _, ticket := range m.goneTickets(live) {
		m.detectStopClosure(ctx, ticket)
	}

	return nil
}

// refreshTracking creates or updates the tracking entry for a live
// position and reports whether its TP1 is already done.
func (m *Manager) refreshTracking(p broker.Position, pip float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tracked[p.Ticket]
	if !ok {
		e = &trackingEntry{}
		m.tracked[p.Ticket] = e
	}
	e.symbol = p.Symbol
	e.side = p.Side
	e.entry = p.EntryPrice
	e.stopLoss = p.StopLoss
	e.volume = p.Volume
	e.pip = pip
	return e.done
}

func (m *Manager) goneTickets(live map[int64]bool) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var gone []int64
	for ticket := range m.tracked {
		if !live[ticket] {
			gone = append(gone, ticket)
		}
	}
	return gone
}

func (m *Manager) updateWatchedGauge() {
	m.mu.Lock()
	watched := 0
	for _, e := range m.tracked {
		if !e.done {
			watched++
		}
	}
	m.mu.Unlock()
	mtxWatched.Set(float64(watched))
}

// executeTP1 performs the trigger sequence: partial close, profit
// calculation, break-even move, then marks the ticket done. A failed
// close is retried on a later tick; a failed BE move is not (the partial
// close cannot be undone) but is surfaced distinctly.
func (m *Manager) executeTP1(ctx context.Context, p broker.Position, spec broker.SymbolSpec, pip, trigger float64, tick broker.Tick) {
	log.Printf("tp1 triggered for position %d (%s %s @ %.5f, tp1=%.5f)",
		p.Ticket, p.Symbol, p.Side, p.EntryPrice, trigger)

	norm := risk.Normalize(p.Volume, m.cfg.PartialPercent, spec.VolumeMin, spec.VolumeStep)
	if norm.Blocked() {
		m.setLastError(fmt.Sprintf("partial close blocked #%d: %s", p.Ticket, norm.BlockReason))
		log.Printf("tp1 partial close blocked for %d: %s", p.Ticket, norm.BlockReason)
		return
	}

	closePrice := tick.Bid
	if p.Side == broker.Sell {
		closePrice = tick.Ask
	}

	res, err := m.gw.ClosePartial(ctx, p.Ticket, norm.CloseVolume, closePrice)
	if err != nil {
		m.setLastError(fmt.Sprintf("partial close failed #%d: %v", p.Ticket, err))
		log.Printf("tp1 partial close failed for %d: %v", p.Ticket, err)
		return
	}
	if !res.Success {
		msg := broker.RetcodeMessage(res.Retcode)
		m.setLastError(fmt.Sprintf("partial close failed #%d: %s", p.Ticket, msg))
		log.Printf("tp1 partial close failed for %d: %s", p.Ticket, msg)
		return
	}

	pips := (closePrice - p.EntryPrice) / pip
	if p.Side == broker.Sell {
		pips = (p.EntryPrice - closePrice) / pip
	}
	pips = math.Round(pips*10) / 10

	var profit *float64
	if v, err := m.gw.CalcProfit(ctx, p.Side, p.Symbol, norm.CloseVolume, p.EntryPrice, closePrice); err == nil {
		v = math.Round(v*100) / 100
		profit = &v
	}

	beStatus := "skipped"
	if m.cfg.MoveToBE {
		beStatus = "ok"
		if err := m.moveToBreakEven(ctx, p, spec, pip); err != nil {
			beStatus = "failed: " + err.Error()
			m.setLastError(fmt.Sprintf("be move failed #%d: %v", p.Ticket, err))
			mtxBEFailures.Inc()
			log.Printf("tp1 be move failed for %d: %v (partial close already done)", p.Ticket, err)
		}
	}

	ev := TP1Event{
		Ticket:       p.Ticket,
		Symbol:       p.Symbol,
		Side:         p.Side.String(),
		Entry:        p.EntryPrice,
		TriggerPrice: trigger,
		ClosePrice:   closePrice,
		CloseVolume:  norm.CloseVolume,
		PipsProfit:   pips,
		ProfitMoney:  profit,
		BEStatus:     beStatus,
		Time:         m.now(),
	}

	// Mark done first: the ticket must never re-trigger, whatever the
	// price does afterwards.
	m.mu.Lock()
	if e, ok := m.tracked[p.Ticket]; ok {
		e.done = true
	} else {
		m.tracked[p.Ticket] = &trackingEntry{
			done: true, symbol: p.Symbol, side: p.Side,
			entry: p.EntryPrice, stopLoss: p.StopLoss, volume: p.Volume, pip: pip,
		}
	}
	m.lastTP1 = &ev
	m.mu.Unlock()
	mtxPartialCloses.Inc()

	m.journalTP1(ev)

	log.Printf("tp1 partial close ok for %d: closed %.2f lots, %+.1f pips, be=%s",
		p.Ticket, norm.CloseVolume, pips, beStatus)
}

// moveToBreakEven sets the stop to entry plus the configured buffer in
// the trade's favor, clamped to the venue's minimum distance from the
// current market on the relevant side.
func (m *Manager) moveToBreakEven(ctx context.Context, p broker.Position, spec broker.SymbolSpec, pip float64) error {
	tick, err := m.gw.GetTick(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	buffer := m.cfg.BEBufferPips * pip
	sl := p.EntryPrice + buffer
	if p.Side == broker.Sell {
		sl = p.EntryPrice - buffer
	}

	if min := spec.MinStopDistance(); min > 0 {
		if p.Side == broker.Buy {
			if maxSL := tick.Bid - min; sl > maxSL {
				sl = maxSL
			}
		} else {
			if minSL := tick.Ask + min; sl < minSL {
				sl = minSL
			}
		}
	}
	sl = roundToDigits(sl, spec.Digits)

	res, err := m.gw.ModifyStopLoss(ctx, p.Ticket, sl)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", broker.RetcodeMessage(res.Retcode))
	}
	return nil
}

// detectStopClosure inspects a disappeared ticket: if TP1 never fired,
// the position was closed by its stop; synthesize the event from the
// cached snapshot and drop the tracking entry.
func (m *Manager) detectStopClosure(ctx context.Context, ticket int64) {
	m.mu.Lock()
	e := m.tracked[ticket]
	delete(m.tracked, ticket)
	m.mu.Unlock()

	if e == nil || e.done {
		return
	}

	profit := m.dealProfit(ctx, ticket)
	if profit == nil && e.stopLoss > 0 {
		if v, err := m.gw.CalcProfit(ctx, e.side, e.symbol, e.volume, e.entry, e.stopLoss); err == nil {
			v = math.Round(v*100) / 100
			profit = &v
		}
	}

	var pipsLoss float64
	if e.stopLoss > 0 && e.pip > 0 {
		pipsLoss = (e.entry - e.stopLoss) / e.pip
		if e.side == broker.Sell {
			pipsLoss = (e.stopLoss - e.entry) / e.pip
		}
		pipsLoss = math.Round(math.Abs(pipsLoss)*10) / 10
	}

	ev := StopLossEvent{
		Ticket:      ticket,
		Symbol:      e.symbol,
		Side:        e.side.String(),
		Entry:       e.entry,
		StopPrice:   e.stopLoss,
		Volume:      e.volume,
		PipsLoss:    pipsLoss,
		ProfitMoney: profit,
		Time:        m.now(),
	}

	m.mu.Lock()
	m.lastSL = &ev
	m.mu.Unlock()
	mtxStopClosures.Inc()

	m.journalStopLoss(ev)

	log.Printf("stop loss detected for position %d (%s %s, entry=%.5f, sl=%.5f)",
		ticket, ev.Symbol, ev.Side, ev.Entry, ev.StopPrice)
}

// dealProfit sums realized profit for a closed position from trade
// history; exact when available, nil when history has nothing for it.
func (m *Manager) dealProfit(ctx context.Context, ticket int64) *float64 {
	deals, err := m.gw.DealsByPosition(ctx, ticket)
	if err != nil || len(deals) == 0 {
		now := m.now()
		deals, err = m.gw.DealsInRange(ctx, now.Add(-24*time.Hour), now)
		if err != nil {
			return nil
		}
	}

	total := 0.0
	found := false
	for _, d := range deals {
		if d.PositionID == ticket {
			total += d.Profit
			found = true
		}
	}
	if !found || total == 0 {
		return nil
	}
	total = math.Round(total*100) / 100
	return &total
}

func (m *Manager) journalTP1(ev TP1Event) {
	if m.jnl == nil {
		return
	}
	rec := journal.TP1Record{
		ID:           id.New(),
		Ticket:       ev.Ticket,
		Symbol:       ev.Symbol,
		Side:         ev.Side,
		Entry:        ev.Entry,
		TriggerPrice: ev.TriggerPrice,
		ClosePrice:   ev.ClosePrice,
		CloseVolume:  ev.CloseVolume,
		PipsProfit:   ev.PipsProfit,
		BEStatus:     ev.BEStatus,
		Time:         ev.Time,
	}
	if ev.ProfitMoney != nil {
		rec.ProfitMoney = *ev.ProfitMoney
	}
	if err := m.jnl.RecordTP1(rec); err != nil {
		log.Printf("journal tp1 event #%d: %v", ev.Ticket, err)
	}
}

func (m *Manager) journalStopLoss(ev StopLossEvent) {
	if m.jnl == nil {
		return
	}
	rec := journal.StopLossRecord{
		ID:        id.New(),
		Ticket:    ev.Ticket,
		Symbol:    ev.Symbol,
		Side:      ev.Side,
		Entry:     ev.Entry,
		StopPrice: ev.StopPrice,
		Volume:    ev.Volume,
		PipsLoss:  ev.PipsLoss,
		Time:      ev.Time,
	}
	if ev.ProfitMoney != nil {
		rec.ProfitMoney = *ev.ProfitMoney
	}
	if err := m.jnl.RecordStopLoss(rec); err != nil {
		log.Printf("journal sl event #%d: %v", ev.Ticket, err)
	}
}

func roundToDigits(v float64, digits int) float64 {
	if digits <= 0 {
		return v
	}
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}
