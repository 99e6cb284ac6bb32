package binance

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
)

// SubscribeTicks opens a kline stream for pair. Every kline update becomes a
// tick priced at the running close. Any read failure ends the stream with
// exchange.ErrTransportDisconnect; there is no reconnect at this level.
func (c *Client) SubscribeTicks(ctx context.Context, pair, interval string) (<-chan domain.Tick, <-chan error, error) {
	endpoint := fmt.Sprintf("%s/%s@kline_%s", c.streamURL, strings.ToLower(pair), interval)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket dial: %w", err)
	}

	s := &stream{
		conn:   conn,
		client: c,
		ticks:  make(chan domain.Tick, 256),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		logger: c.logger.With(zap.String("stream", endpoint)),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	go s.readLoop(ctx)
	go s.pingLoop()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.close()
	}()

	return s.ticks, s.errs, nil
}

type stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	client  *Client

	ticks chan domain.Tick
	errs  chan error

	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func (s *stream) close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(s.client.writeTimeout))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

func (s *stream) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.ticks)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.client.readTimeout))

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("stream read failed", zap.Error(err))
				s.errs <- fmt.Errorf("%w: %v", exchange.ErrTransportDisconnect, err)
			}
			return
		}

		if isNullPayload(message) {
			s.logger.Warn("stream sent empty payload, disconnecting")
			s.errs <- fmt.Errorf("%w: null payload", exchange.ErrTransportDisconnect)
			return
		}

		tick, ok, err := decodeKline(message)
		if err != nil {
			s.logger.Debug("skip undecodable message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.ticks <- tick:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *stream) pingLoop() {
	ticker := time.NewTicker(s.client.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.client.writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				// reader sees the broken connection
				s.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

type klineEvent struct {
	EventType string  `json:"e"`
	EventTime int64   `json:"E"`
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	StartTime   int64  `json:"t"`
	CloseTime   int64  `json:"T"`
	Interval    string `json:"i"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	TradeCount  int64  `json:"n"`
	Final       bool   `json:"x"`
	QuoteVolume string `json:"q"`
}

func isNullPayload(message []byte) bool {
	return bytes.Equal(bytes.TrimSpace(message), []byte("null"))
}

// decodeKline converts a kline event to a tick. Other event types report ok=false.
func decodeKline(message []byte) (domain.Tick, bool, error) {
	var ev klineEvent
	if err := sonic.Unmarshal(message, &ev); err != nil {
		return domain.Tick{}, false, fmt.Errorf("decode kline: %w", err)
	}
	if ev.EventType != "kline" {
		return domain.Tick{}, false, nil
	}

	k := ev.Kline
	return domain.Tick{
		Symbol:      ev.Symbol,
		EventTime:   ev.EventTime,
		Price:       parseFloat(k.Close),
		Open:        parseFloat(k.Open),
		High:        parseFloat(k.High),
		Low:         parseFloat(k.Low),
		Volume:      parseFloat(k.Volume),
		QuoteVolume: parseFloat(k.QuoteVolume),
		TradeCount:  k.TradeCount,
		Final:       k.Final,
	}, true, nil
}
