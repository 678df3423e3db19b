package indicatorfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a ReadingStream backed by the indicator feed WebSocket.
type Client struct {
	token          string
	websocketURL   string
	instruments    []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new indicator feed ReadingStream.
func New(token, websocketURL string, instruments []string, reconnectDelay, pingInterval time.Duration) drepo.ReadingStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		instruments:    instruments,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")
	return nil
}

// Subscribe subscribes to configured instruments.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, id := range c.instruments {
		msg := map[string]string{"type": "subscribe", "instrument": id}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", id, err)
		}
		log.Printf("feed: subscribed %s", id)
	}
	return nil
}

type feedReading struct {
	InstrumentID string             `json:"instrument_id"`
	TF           string             `json:"tf"`
	TS           int64              `json:"ts"` // ms
	Values       map[string]float64 `json:"values"`
}

type feedMessage struct {
	Type string        `json:"type"`
	Data []feedReading `json:"data"`
}

// Read streams IndicatorReading events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.IndicatorReading, <-chan error) {
	readings := make(chan *models.IndicatorReading, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(readings)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-reading frames
					continue
				}
				if m.Type != "reading" {
					continue
				}
				for _, d := range m.Data {
					r := &models.IndicatorReading{
						InstrumentID: d.InstrumentID,
						Timeframe:    d.TF,
						Timestamp:    time.UnixMilli(d.TS).UTC(),
						Values:       d.Values,
					}
					select {
					case readings <- r:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return readings, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
