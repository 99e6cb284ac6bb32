package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
)

type fakeREST struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v3/klines":
		w.Write([]byte(`[
			[1700000000000,"100.0","101.5","99.5","101.0","12.5",1700000059999,"1260.0",42,"6.0","606.0","0"],
			[1700000060000,"101.0","102.0","100.5","101.8","8.0",1700000119999,"812.0",17,"3.5","356.0","0"]
		]`))
	case r.URL.Path == "/api/v3/exchangeInfo":
		w.Write([]byte(`{"timezone":"UTC","serverTime":1700000000000,"symbols":[{
			"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","baseAssetPrecision":8,
			"quoteAsset":"USDT","quotePrecision":8,"quoteAssetPrecision":8,
			"filters":[
				{"filterType":"PRICE_FILTER","minPrice":"0.01000000","maxPrice":"1000000.00000000","tickSize":"0.01000000"},
				{"filterType":"LOT_SIZE","minQty":"0.00001000","maxQty":"9000.00000000","stepSize":"0.00001000"}
			]}]}`))
	case r.URL.Path == "/api/v3/order/test":
		w.Write([]byte(`{}`))
	case r.URL.Path == "/api/v3/order" && r.Method == http.MethodPost:
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":28,"clientOrderId":"x","transactTime":1700000000000,
			"price":"100.00","origQty":"1.0","executedQty":"0.0","cummulativeQuoteQty":"0.0",
			"status":"NEW","timeInForce":"GTC","type":"LIMIT","side":"BUY"}`))
	case r.URL.Path == "/api/v3/order" && r.Method == http.MethodGet:
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":28,"price":"100.00","origQty":"1.0",
			"executedQty":"1.0","cummulativeQuoteQty":"100.0","status":"FILLED","timeInForce":"GTC",
			"type":"LIMIT","side":"BUY","time":1700000000000,"updateTime":1700000001000}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeREST) seen(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if strings.HasSuffix(r, " "+path) {
			return true
		}
	}
	return false
}

func newRESTClient(t *testing.T) (*Client, *fakeREST) {
	t.Helper()
	fake := &fakeREST{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient("key", "secret", WithBaseURL(srv.URL)), fake
}

func TestClient_FetchCandles(t *testing.T) {
	c, _ := newRESTClient(t)

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
	assert.Equal(t, int64(1700000059999), candles[0].CloseTime)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, int64(42), candles[0].TradeCount)
	assert.Equal(t, 101.8, candles[1].Close)
}

func TestClient_SymbolRules(t *testing.T) {
	c, _ := newRESTClient(t)

	rules, err := c.SymbolRules(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, 0.01, rules.TickSize)
	assert.Equal(t, 0.00001, rules.StepSize)
	assert.Equal(t, 8, rules.QuoteAssetPrecision)

	_, err = c.SymbolRules(context.Background(), "ETHUSDT")
	assert.Error(t, err)
}

func TestClient_TestOrderQueriesAsFilled(t *testing.T) {
	c, fake := newRESTClient(t)
	ctx := context.Background()

	ack, err := c.SubmitOrder(ctx, exchange.OrderRequest{
		Pair: "BTCUSDT", Side: domain.SideBuy, Type: exchange.OrderTypeLimit,
		Price: 100, Quantity: 1, Test: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ack.OrderID, "test-"))
	assert.True(t, fake.seen("/api/v3/order/test"))

	rep, err := c.QueryOrder(ctx, "BTCUSDT", ack.OrderID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusFilled, rep.Status)
}

func TestClient_LiveOrder(t *testing.T) {
	c, _ := newRESTClient(t)
	ctx := context.Background()

	ack, err := c.SubmitOrder(ctx, exchange.OrderRequest{
		Pair: "BTCUSDT", Side: domain.SideBuy, Type: exchange.OrderTypeLimit,
		Price: 100, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "28", ack.OrderID)

	rep, err := c.QueryOrder(ctx, "BTCUSDT", ack.OrderID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusFilled, rep.Status)
	assert.Equal(t, 1.0, rep.FilledQuantity)
	assert.Equal(t, 100.0, rep.CumulativeQuote)
	assert.Equal(t, int64(1700000001000), rep.UpdateTimeMillis)

	_, err = c.QueryOrder(ctx, "BTCUSDT", "not-a-number")
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)
}

func TestDecodeKline(t *testing.T) {
	msg := []byte(`{"e":"kline","E":1700000030000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,
		"s":"BTCUSDT","i":"1m","o":"100.0","c":"100.7","h":"101.0","l":"99.9","v":"3.2","n":12,"x":false,"q":"321.0"}}`)

	tick, ok, err := decodeKline(msg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, int64(1700000030000), tick.EventTime)
	assert.Equal(t, 100.7, tick.Price)
	assert.Equal(t, 101.0, tick.High)
	assert.Equal(t, int64(12), tick.TradeCount)
	assert.False(t, tick.Final)

	_, ok, err = decodeKline([]byte(`{"result":null,"id":1}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = decodeKline([]byte(`not json`))
	assert.Error(t, err)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestSubscribeTicks_StreamsUntilDisconnect(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for i, price := range []string{"100.1", "100.2"} {
			msg := `{"e":"kline","E":` + []string{"1700000001000", "1700000002000"}[i] +
				`,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"100","c":"` + price +
				`","h":"101","l":"99","v":"1","n":1,"x":false,"q":"100"}}`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient("", "", WithStreamURL("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ticks, errs, err := c.SubscribeTicks(ctx, "BTCUSDT", "1m")
	require.NoError(t, err)

	var prices []float64
	for tick := range ticks {
		prices = append(prices, tick.Price)
	}

	assert.Equal(t, []float64{100.1, 100.2}, prices)
	assert.Equal(t, "/ws/btcusdt@kline_1m", <-paths)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, exchange.ErrTransportDisconnect)
	default:
		t.Fatal("expected disconnect error")
	}
}

func TestSubscribeTicks_NullPayloadDisconnects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"e":"kline","E":1700000001000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,` +
			`"i":"1m","o":"100","c":"100.1","h":"101","l":"99","v":"1","n":1,"x":false,"q":"100"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(" null\n"))
		// keep the socket open: only the payload may end the stream
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient("", "", WithStreamURL("ws"+strings.TrimPrefix(srv.URL, "http")))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ticks, errs, err := c.SubscribeTicks(ctx, "BTCUSDT", "1m")
	require.NoError(t, err)

	var n int
	for range ticks {
		n++
	}

	assert.Equal(t, 1, n)
	require.NoError(t, ctx.Err(), "stream must end before the deadline")
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, exchange.ErrTransportDisconnect)
	default:
		t.Fatal("expected disconnect error")
	}
}

func TestSubscribeTicks_ContextCancelEndsQuietly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient("", "", WithStreamURL("ws"+strings.TrimPrefix(srv.URL, "http")), WithPingInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	ticks, errs, err := c.SubscribeTicks(ctx, "BTCUSDT", "1m")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cancel()

	for range ticks {
	}
	assert.Empty(t, errs)
}

func TestSubscribeTicks_DialFailure(t *testing.T) {
	c := NewClient("", "", WithStreamURL("ws://127.0.0.1:1"))
	_, _, err := c.SubscribeTicks(context.Background(), "BTCUSDT", "1m")
	assert.Error(t, err)
}
