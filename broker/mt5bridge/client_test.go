package mt5bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradewatch/broker"
)

func TestIsConnected(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"connected": true})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	assert.True(t, c.IsConnected(context.Background()))
}

func TestIsConnected_BridgeDown(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1", "")
	assert.False(t, c.IsConnected(context.Background()))
}

func TestOpenPositions(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		w.Write([]byte(`[
			{"ticket": 100, "symbol": "EURUSD", "type": "buy", "volume": 0.1,
			 "price_open": 1.1, "sl": 1.095, "tp": 1.12, "magic": 123456,
			 "comment": "POI-Tracker buy", "time": 1755900000},
			{"ticket": 200, "symbol": "XAUUSD", "type": "sell", "volume": 0.05,
			 "price_open": 2300, "sl": 2310, "tp": 0, "magic": 123456,
			 "comment": "POI-Tracker sell", "time": 1755900100}
		]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	got, err := c.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(100), got[0].Ticket)
	assert.Equal(t, broker.Buy, got[0].Side)
	assert.InDelta(t, 1.1, got[0].EntryPrice, 1e-9)
	assert.Equal(t, time.Unix(1755900000, 0), got[0].OpenTime)

	assert.Equal(t, broker.Sell, got[1].Side)
	assert.Equal(t, "XAUUSD", got[1].Symbol)
}

func TestSymbolSpecAndTick(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/symbols/EURUSD":
			w.Write([]byte(`{"symbol":"EURUSD","digits":5,"point":0.00001,
				"volume_min":0.01,"volume_step":0.01,"volume_max":100,
				"trade_stops_level":10,"trade_freeze_level":0}`))
		case "/ticks/EURUSD":
			w.Write([]byte(`{"bid":1.10300,"ask":1.10315,"time":1755900000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")

	spec, err := c.SymbolSpec(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 5, spec.Digits)
	assert.InDelta(t, 0.01, spec.VolumeMin, 1e-12)
	assert.InDelta(t, 0.0001, spec.MinStopDistance(), 1e-12)

	tick, err := c.GetTick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.10300, tick.Bid, 1e-9)
	assert.InDelta(t, 1.10315, tick.Ask, 1e-9)
}

func TestClosePartial_SendsBodyAndToken(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/positions/close", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 100, body["position"].(float64), 1e-12)
		assert.InDelta(t, 0.05, body["volume"].(float64), 1e-12)

		w.Write([]byte(`{"success":true,"retcode":10009,"order":555,"position":100}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sekrit")
	res, err := c.ClosePartial(context.Background(), 100, 0.05, 1.10300)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(555), res.OrderID)
}

func TestModifyStopLoss_FailureRetcodeSurfaces(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"retcode":10016,"comment":"Invalid stops"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	res, err := c.ModifyStopLoss(context.Background(), 100, 1.09999)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 10016, res.Retcode)
	assert.Contains(t, broker.RetcodeMessage(res.Retcode), "invalid stops")
}

func TestCalcProfit(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calc/profit", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "buy", q.Get("type"))
		assert.Equal(t, "EURUSD", q.Get("symbol"))
		w.Write([]byte(`{"profit": 15.0}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	profit, err := c.CalcProfit(context.Background(), broker.Buy, "EURUSD", 0.05, 1.1, 1.103)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, profit, 1e-9)
}

func TestDeals(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deals", r.URL.Path)
		w.Write([]byte(`[
			{"ticket":9,"order":42,"position_id":100,"symbol":"EURUSD","profit":-50.0,"time":1755900000}
		]`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")

	deals, err := c.DealsByPosition(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.InDelta(t, -50.0, deals[0].Profit, 1e-9)

	deals, err = c.DealsInRange(context.Background(), time.Unix(1755890000, 0), time.Unix(1755910000, 0))
	require.NoError(t, err)
	assert.Len(t, deals, 1)
}

func TestErrorStatusPropagates(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "terminal not initialized", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	_, err := c.OpenPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
