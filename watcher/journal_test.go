package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradewatch/broker"
	"github.com/rustyeddy/tradewatch/guard"
	"github.com/rustyeddy/tradewatch/journal"
	"github.com/rustyeddy/tradewatch/proclock"
)

func TestTick_EventsArePersisted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jnl, err := journal.NewSQLite(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	gw := newFakeGateway()
	gw.positions = []broker.Position{longPosition()}
	gw.specs["EURUSD"] = eurusdSpec()
	gw.ticks["EURUSD"] = broker.Tick{Bid: 1.10300, Ask: 1.10315}
	gw.profit = 15.0

	g := guard.New(true)
	g.SetArmed(true)
	lock := proclock.New(filepath.Join(dir, "watcher.lock"))
	m := New(gw, g, lock, jnl, testConfig())

	require.NoError(t, m.tick(context.Background()))

	records, err := jnl.RecentTP1(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].Ticket)
	assert.Equal(t, "buy", records[0].Side)
	assert.InDelta(t, 0.05, records[0].CloseVolume, 1e-12)
	assert.InDelta(t, 15.0, records[0].ProfitMoney, 1e-9)
	assert.NotEmpty(t, records[0].ID)

	// A second watched position stops out; its event lands in the other
	// table.
	second := longPosition()
	second.Ticket = 101
	gw.positions = []broker.Position{second}
	gw.ticks["EURUSD"] = broker.Tick{Bid: 1.10100, Ask: 1.10115}
	require.NoError(t, m.tick(context.Background()))

	gw.positions = nil
	gw.deals = []broker.Deal{{Ticket: 9, PositionID: 101, Profit: -50.0, Time: time.Now()}}
	require.NoError(t, m.tick(context.Background()))

	slRecords, err := jnl.RecentStopLosses(10)
	require.NoError(t, err)
	require.Len(t, slRecords, 1)
	assert.Equal(t, int64(101), slRecords[0].Ticket)
	assert.InDelta(t, -50.0, slRecords[0].ProfitMoney, 1e-9)
}
