// Package watcher implements the TP1 trade-management automaton: a
// single background loop that polls owned positions, executes a partial
// close when the first take-profit level is reached, moves the stop to
// break-even, and detects stop-loss closures. A file lock guarantees at
// most one watcher instance per machine.
package watcher

import (
	"context"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rustyeddy/tradewatch/broker"
	"github.com/rustyeddy/tradewatch/guard"
	"github.com/rustyeddy/tradewatch/journal"
	"github.com/rustyeddy/tradewatch/proclock"
)

// tickTimeout bounds the venue calls of a single poll tick.
const tickTimeout = 10 * time.Second

// Config holds the watcher's trade-management parameters.
type Config struct {
	Magic          int64         // ownership tag on venue positions
	CommentPrefix  string        // secondary ownership marker; empty disables the check
	PollInterval   time.Duration // default 500ms
	TP1Pips        float64       // trigger distance from entry
	PartialPercent float64       // share of the position to close at TP1
	BEBufferPips   float64       // break-even offset in the trade's favor
	MoveToBE       bool
	StopTimeout    time.Duration // bounded join on Stop, default 5s
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	return c
}

// trackingEntry is the watcher's per-position record. The snapshot
// fields are refreshed every tick so a stop-loss event can be
// reconstructed after the position disappears from the venue.
type trackingEntry struct {
	done     bool
	symbol   string
	side     broker.Side
	entry    float64
	stopLoss float64
	volume   float64
	pip      float64
}

// Manager owns the poll loop and all per-position tracking state.
// Start, Stop and Status are safe to call concurrently with the running
// loop; external readers only ever receive copies.
type Manager struct {
	gw    broker.Gateway
	guard *guard.Guard
	lock  *proclock.Lock
	jnl   journal.Journal // optional; nil disables journaling
	cfg   Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	tracked map[int64]*trackingEntry
	lastErr string
	lastTP1 *TP1Event
	lastSL  *StopLossEvent

	now func() time.Time
}

// New wires a Manager. jnl may be nil.
func New(gw broker.Gateway, g *guard.Guard, lock *proclock.Lock, jnl journal.Journal, cfg Config) *Manager {
	return &Manager{
		gw:      gw,
		guard:   g,
		lock:    lock,
		jnl:     jnl,
		cfg:     cfg.withDefaults(),
		tracked: make(map[int64]*trackingEntry),
		now:     time.Now,
	}
}

// Start launches the poll loop. It refuses when already running in this
// process and reports "already_running_elsewhere" when the cross-process
// lock is held by a live owner.
func (m *Manager) Start(armed bool) StartResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return StartResult{Running: true, Locked: true, PID: os.Getpid(), Reason: "already_running"}
	}

	if !m.lock.Acquire() {
		return StartResult{Reason: "already_running_elsewhere"}
	}

	m.guard.SetArmed(armed)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.tracked = make(map[int64]*trackingEntry)
	m.lastErr = ""
	m.running = true

	go m.run(m.stopCh, m.doneCh)

	return StartResult{Running: true, Locked: true, PID: os.Getpid()}
}

// Stop signals the loop, waits up to StopTimeout for it to finish its
// current tick, and releases the lock. Safe to call when not running and
// safe to call twice.
func (m *Manager) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.stopCh = nil
	m.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		select {
		case <-doneCh:
		case <-time.After(m.cfg.StopTimeout):
			log.Printf("tp1 watcher: stop timed out after %s", m.cfg.StopTimeout)
		}
	}

	// The loop's exit path also releases; Release is idempotent.
	m.lock.Release()
}

// Status returns a copied-out snapshot of the watcher state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	st := Status{Running: m.running, LastError: m.lastErr}
	for _, e := range m.tracked {
		if e.done {
			st.CompletedCount++
		} else {
			st.WatchedCount++
		}
	}
	if m.lastTP1 != nil {
		ev := *m.lastTP1
		st.LastTP1 = &ev
	}
	if m.lastSL != nil {
		ev := *m.lastSL
		st.LastStopLoss = &ev
	}
	m.mu.Unlock()

	if rec, ok := m.lock.ReadInfo(); ok {
		st.LockOwnerPID = rec.PID
		age := m.now().Sub(time.Unix(rec.AcquiredAt, 0)).Seconds()
		st.LockAgeSeconds = math.Round(age*10) / 10
	}
	return st
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// run is the poll loop. A tick error never terminates the loop; only the
// stop signal does. The lock is released unconditionally on exit.
func (m *Manager) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	log.Printf("tp1 watcher started (poll=%s, pips=%.1f, pct=%.1f%%)",
		m.cfg.PollInterval, m.cfg.TP1Pips, m.cfg.PartialPercent)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer func() {
		ticker.Stop()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.lock.Release()
		close(doneCh)
		log.Printf("tp1 watcher stopped")
	}()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			if err := m.tick(ctx); err != nil {
				m.setLastError(err.Error())
				mtxTickErrors.Inc()
				log.Printf("tp1 watcher tick error: %v", err)
			}
			cancel()
		}
	}
}

func (m *Manager) setLastError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}
