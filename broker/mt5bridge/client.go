// Package mt5bridge implements broker.Gateway over the HTTP bridge that
// fronts a MetaTrader 5 terminal.
package mt5bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/tradewatch/broker"
)

// Client talks to the bridge's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ broker.Gateway = (*Client)(nil)

// NewClient creates a bridge client. token may be empty when the bridge
// runs without auth (local terminal on the same host).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type wirePosition struct {
	Ticket     int64   `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"` // "buy" or "sell"
	Volume     float64 `json:"volume"`
	PriceOpen  float64 `json:"price_open"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Magic      int64   `json:"magic"`
	Comment    string  `json:"comment"`
	TimeOpen   int64   `json:"time"` // unix seconds
}

type wireSymbolSpec struct {
	Symbol      string  `json:"symbol"`
	Digits      int     `json:"digits"`
	Point       float64 `json:"point"`
	VolumeMin   float64 `json:"volume_min"`
	VolumeStep  float64 `json:"volume_step"`
	VolumeMax   float64 `json:"volume_max"`
	StopsLevel  int     `json:"trade_stops_level"`
	FreezeLevel int     `json:"trade_freeze_level"`
}

type wireTick struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"`
}

type wireOrderResult struct {
	Success    bool   `json:"success"`
	Retcode    int    `json:"retcode"`
	Comment    string `json:"comment"`
	OrderID    int64  `json:"order"`
	PositionID int64  `json:"position"`
}

type wireDeal struct {
	Ticket     int64   `json:"ticket"`
	Order      int64   `json:"order"`
	PositionID int64   `json:"position_id"`
	Symbol     string  `json:"symbol"`
	Profit     float64 `json:"profit"`
	Time       int64   `json:"time"`
}

// IsConnected reports whether the bridge has a live terminal session.
func (c *Client) IsConnected(ctx context.Context) bool {
	var out struct {
		Connected bool `json:"connected"`
	}
	if err := c.get(ctx, "/status", nil, &out); err != nil {
		return false
	}
	return out.Connected
}

// OpenPositions fetches all open positions from the terminal.
func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	var out []wirePosition
	if err := c.get(ctx, "/positions", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	positions := make([]broker.Position, 0, len(out))
	for _, wp := range out {
		side := broker.Buy
		if wp.Type == "sell" {
			side = broker.Sell
		}
		positions = append(positions, broker.Position{
			Ticket:     wp.Ticket,
			Symbol:     wp.Symbol,
			Side:       side,
			Volume:     wp.Volume,
			EntryPrice: wp.PriceOpen,
			StopLoss:   wp.StopLoss,
			TakeProfit: wp.TakeProfit,
			Magic:      wp.Magic,
			Comment:    wp.Comment,
			OpenTime:   time.Unix(wp.TimeOpen, 0),
		})
	}
	return positions, nil
}

// SymbolSpec fetches the broker constraints for a symbol.
func (c *Client) SymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error) {
	var out wireSymbolSpec
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol), nil, &out); err != nil {
		return broker.SymbolSpec{}, fmt.Errorf("fetch symbol spec %s: %w", symbol, err)
	}
	return broker.SymbolSpec{
		Symbol:      out.Symbol,
		Digits:      out.Digits,
		Point:       out.Point,
		VolumeMin:   out.VolumeMin,
		VolumeStep:  out.VolumeStep,
		VolumeMax:   out.VolumeMax,
		StopsLevel:  out.StopsLevel,
		FreezeLevel: out.FreezeLevel,
	}, nil
}

// GetTick fetches the current bid/ask quote.
func (c *Client) GetTick(ctx context.Context, symbol string) (broker.Tick, error) {
	var out wireTick
	if err := c.get(ctx, "/ticks/"+url.PathEscape(symbol), nil, &out); err != nil {
		return broker.Tick{}, fmt.Errorf("fetch tick %s: %w", symbol, err)
	}
	return broker.Tick{Bid: out.Bid, Ask: out.Ask, Time: time.Unix(out.Time, 0)}, nil
}

// PlaceOrder submits a market or pending order.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	body := map[string]interface{}{
		"symbol":  req.Symbol,
		"type":    req.Side.String(),
		"volume":  req.Volume,
		"price":   req.Price,
		"sl":      req.StopLoss,
		"magic":   req.Magic,
		"comment": req.Comment,
	}
	return c.order(ctx, "/orders", body)
}

// ModifyStopLoss moves the stop of an open position.
func (c *Client) ModifyStopLoss(ctx context.Context, positionID int64, price float64) (broker.OrderResult, error) {
	body := map[string]interface{}{
		"position": positionID,
		"sl":       price,
	}
	return c.order(ctx, "/positions/modify", body)
}

// ClosePartial closes part of an open position at the given price.
func (c *Client) ClosePartial(ctx context.Context, positionID int64, volume, price float64) (broker.OrderResult, error) {
	body := map[string]interface{}{
		"position": positionID,
		"volume":   volume,
		"price":    price,
	}
	return c.order(ctx, "/positions/close", body)
}

// CalcProfit asks the terminal to price a hypothetical close.
func (c *Client) CalcProfit(ctx context.Context, side broker.Side, symbol string, volume, openPrice, closePrice float64) (float64, error) {
	params := url.Values{}
	params.Set("type", side.String())
	params.Set("symbol", symbol)
	params.Set("volume", strconv.FormatFloat(volume, 'f', -1, 64))
	params.Set("open", strconv.FormatFloat(openPrice, 'f', -1, 64))
	params.Set("close", strconv.FormatFloat(closePrice, 'f', -1, 64))

	var out struct {
		Profit float64 `json:"profit"`
	}
	if err := c.get(ctx, "/calc/profit", params, &out); err != nil {
		return 0, fmt.Errorf("calc profit: %w", err)
	}
	return out.Profit, nil
}

// DealsByPosition fetches the fills belonging to a position.
func (c *Client) DealsByPosition(ctx context.Context, positionID int64) ([]broker.Deal, error) {
	params := url.Values{}
	params.Set("position", strconv.FormatInt(positionID, 10))

	var out []wireDeal
	if err := c.get(ctx, "/deals", params, &out); err != nil {
		return nil, fmt.Errorf("fetch deals for position %d: %w", positionID, err)
	}
	return toDeals(out), nil
}

// DealsInRange fetches all fills in a time window.
func (c *Client) DealsInRange(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	params := url.Values{}
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))

	var out []wireDeal
	if err := c.get(ctx, "/deals", params, &out); err != nil {
		return nil, fmt.Errorf("fetch deals in range: %w", err)
	}
	return toDeals(out), nil
}

func toDeals(in []wireDeal) []broker.Deal {
	deals := make([]broker.Deal, 0, len(in))
	for _, wd := range in {
		deals = append(deals, broker.Deal{
			Ticket:     wd.Ticket,
			Order:      wd.Order,
			PositionID: wd.PositionID,
			Symbol:     wd.Symbol,
			Profit:     wd.Profit,
			Time:       time.Unix(wd.Time, 0),
		})
	}
	return deals
}

func (c *Client) order(ctx context.Context, path string, body map[string]interface{}) (broker.OrderResult, error) {
	var out wireOrderResult
	if err := c.post(ctx, path, body, &out); err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{
		Success:    out.Success,
		Retcode:    out.Retcode,
		Comment:    out.Comment,
		OrderID:    out.OrderID,
		PositionID: out.PositionID,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, dst interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bridge error (status %d): %s", resp.StatusCode, string(body))
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
