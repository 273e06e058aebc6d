package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ChannelPing      = "ping"
	ChannelTrades    = "trades"
	ChannelOrderBook = "orderbook-1000"
	ChannelTicker    = "ticker"
	ChannelCandles   = "candles-60"

	DefaultPingInterval = 20 * time.Second
)

type Params struct {
	Channel      string `json:"channel"`
	MarketSymbol string `json:"market_symbol,omitempty"`
	// Snapshot asks book channels to start with a full snapshot event.
	Snapshot bool `json:"snapshot,omitempty"`
}

type request struct {
	Type   string   `json:"type"`
	Params []Params `json:"params"`
}

// Event is one frame from the feed. Params is kept raw because the server
// sends it either as an object or as a list. Name is "snapshot" or "update"
// on book channels.
type Event struct {
	Type   string          `json:"type"`
	Name   string          `json:"event,omitempty"`
	Params json.RawMessage `json:"params"`
	Data   json.RawMessage `json:"data"`
	Raw    []byte          `json:"-"`
}

// Channel returns the channel the event belongs to, if any.
func (e Event) Channel() string {
	return e.params().Channel
}

func (e Event) MarketSymbol() string {
	return e.params().MarketSymbol
}

func (e Event) params() Params {
	var one Params
	if err := json.Unmarshal(e.Params, &one); err == nil {
		return one
	}
	var many []Params
	if err := json.Unmarshal(e.Params, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return Params{}
}

type Client struct {
	PingInterval time.Duration

	conn *websocket.Conn
	mu   sync.Mutex
}

func Dial(ctx context.Context, url string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	log.Info().Str("url", url).Msg("connected to stream")

	return &Client{
		PingInterval: DefaultPingInterval,
		conn:         conn,
	}, nil
}

func (c *Client) Subscribe(channel, marketSymbol string) error {
	return c.SubscribeWith(Params{Channel: channel, MarketSymbol: marketSymbol})
}

func (c *Client) SubscribeWith(p Params) error {
	return c.send(request{Type: "subscribe", Params: []Params{p}})
}

func (c *Client) Unsubscribe(channel, marketSymbol string) error {
	return c.send(request{Type: "unsubscribe", Params: []Params{{Channel: channel, MarketSymbol: marketSymbol}}})
}

func (c *Client) Ping() error {
	return c.send(request{Type: "message", Params: []Params{{Channel: ChannelPing}}})
}

func (c *Client) send(req request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Debug().Str("type", req.Type).Interface("params", req.Params).Msg("sending")
	if err := c.conn.WriteJSON(req); err != nil {
		return errors.Wrapf(err, "send %s", req.Type)
	}
	return nil
}

// Run reads frames and hands them to handle until ctx is done or the
// connection fails. A ping goes out every PingInterval.
func (c *Client) Run(ctx context.Context, handle func(Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()
	go c.pingLoop(ctx)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("stream closed")
				return nil
			}
			return errors.Wrap(err, "read stream")
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Warn().Err(err).Str("frame", string(msg)).Msg("skipping undecodable frame")
			continue
		}
		ev.Raw = msg
		if ev.Channel() == ChannelPing {
			log.Debug().RawJSON("data", nonEmpty(ev.Data)).Msg("pong")
		}
		handle(ev)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *Client) pingLoop(ctx context.Context) {
	interval := c.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				log.Warn().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
