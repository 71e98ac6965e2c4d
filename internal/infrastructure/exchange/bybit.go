package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"
)

// BybitAdapter serves market data from Bybit's public V5 API: candles and
// tickers over REST, live prices over the public websocket. The engine
// never trades through it.
type BybitAdapter struct {
	baseURL   string
	wsURL     string
	client    *http.Client
	logger    *zap.Logger
	wsConn    *websocket.Conn
	callbacks []func(instrument string, price float64)
	mu        sync.Mutex
}

func NewBybitAdapter(baseURL, wsURL string, logger *zap.Logger) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	return &BybitAdapter{
		baseURL: baseURL,
		wsURL:   wsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// --- REST API ---

func (b *BybitAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bybit api error: %s", string(body))
	}
	return json.Unmarshal(body, out)
}

func (b *BybitAdapter) GetCurrentPrice(ctx context.Context, instrument string) (float64, error) {
	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	path := "/v5/market/tickers?category=linear&symbol=" + instrument
	if err := b.get(ctx, path, &result); err != nil {
		return 0, err
	}
	if result.RetCode != 0 {
		return 0, fmt.Errorf("bybit ticker error: %s", result.RetMsg)
	}
	if len(result.Result.List) == 0 {
		return 0, fmt.Errorf("instrument %s not found", instrument)
	}
	return strconv.ParseFloat(result.Result.List[0].LastPrice, 64)
}

func (b *BybitAdapter) GetCandles(ctx context.Context, instrument, interval string, limit int) ([]domain.Candle, error) {
	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d", instrument, interval, limit)
	if err := b.get(ctx, path, &result); err != nil {
		return nil, err
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline error: %s", result.RetMsg)
	}

	var candles []domain.Candle
	for _, raw := range result.Result.List {
		// Format: [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}

		ts, _ := strconv.ParseInt(raw[0], 10, 64)
		open, _ := strconv.ParseFloat(raw[1], 64)
		high, _ := strconv.ParseFloat(raw[2], 64)
		low, _ := strconv.ParseFloat(raw[3], 64)
		closePrice, _ := strconv.ParseFloat(raw[4], 64)
		volume, _ := strconv.ParseFloat(raw[5], 64)

		candles = append(candles, domain.Candle{
			Time:   ts / 1000,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	// Bybit returns newest first; the engine wants chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// --- WebSocket ---

func (b *BybitAdapter) OnPriceUpdate(callback func(instrument string, price float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, callback)
}

func (b *BybitAdapter) Subscribe(instruments []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(b.wsURL, nil)
		if err != nil {
			return err
		}
		b.wsConn = c
		go b.readLoop(c)
	}
	return b.subscribe(instruments)
}

func (b *BybitAdapter) subscribe(instruments []string) error {
	if len(instruments) == 0 {
		return nil
	}
	args := make([]any, len(instruments))
	for i, s := range instruments {
		args[i] = "orderbook.1." + s
	}
	return b.wsConn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": args,
	})
}

func (b *BybitAdapter) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		b.mu.Lock()
		if b.wsConn == conn {
			b.wsConn = nil
		}
		b.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			b.logger.Warn("websocket read failed", zap.Error(err))
			return
		}

		var event struct {
			Topic string `json:"topic"`
			Data  struct {
				Bids [][]string `json:"b"`
				Asks [][]string `json:"a"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if !strings.HasPrefix(event.Topic, "orderbook.1.") {
			continue
		}
		if len(event.Data.Bids) == 0 || len(event.Data.Asks) == 0 {
			continue
		}
		if len(event.Data.Bids[0]) < 1 || len(event.Data.Asks[0]) < 1 {
			continue
		}

		instrument := strings.TrimPrefix(event.Topic, "orderbook.1.")
		bid, errB := strconv.ParseFloat(event.Data.Bids[0][0], 64)
		ask, errA := strconv.ParseFloat(event.Data.Asks[0][0], 64)
		if errB != nil || errA != nil {
			continue
		}
		price := (bid + ask) / 2

		b.mu.Lock()
		callbacks := make([]func(string, float64), len(b.callbacks))
		copy(callbacks, b.callbacks)
		b.mu.Unlock()

		for _, cb := range callbacks {
			cb(instrument, price)
		}
	}
}
