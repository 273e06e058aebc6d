package stream

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	EventSnapshot = "snapshot"
	EventUpdate   = "update"

	DefaultBookInterval = "250"
	DefaultBookDepth    = 99
)

var ErrSequenceGap = errors.New("order book sequence gap")

// OrderBookChannel names the book channel pushing updates every interval ms.
func OrderBookChannel(interval string) string {
	return "orderbook-" + interval
}

// Level is one price level, sent by the feed as a [price, volume] pair.
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var pair []decimal.Decimal
	if err := json.Unmarshal(b, &pair); err != nil {
		return errors.Wrap(err, "decode level")
	}
	if len(pair) < 2 {
		return errors.Errorf("level needs price and volume, got %s", string(b))
	}
	l.Price, l.Volume = pair[0], pair[1]
	return nil
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Volume.String()})
}

type BookSnapshot struct {
	SequenceID int64   `json:"sequence_id"`
	Asks       []Level `json:"asks"`
	Bids       []Level `json:"bids"`
}

type BookUpdate struct {
	FirstSequenceID int64   `json:"first_sequence_id"`
	LastSequenceID  int64   `json:"last_sequence_id"`
	Asks            []Level `json:"asks"`
	Bids            []Level `json:"bids"`
}

// OrderBook is a local copy of one market's book. Levels are keyed by the
// canonical price string so "100.0" and "100" are the same level.
type OrderBook struct {
	mu         sync.RWMutex
	sequenceID int64
	asks       map[string]Level
	bids       map[string]Level
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		asks: make(map[string]Level),
		bids: make(map[string]Level),
	}
}

// ApplySnapshot replaces the whole book.
func (b *OrderBook) ApplySnapshot(s BookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequenceID = s.SequenceID
	b.asks = make(map[string]Level, len(s.Asks))
	b.bids = make(map[string]Level, len(s.Bids))
	setLevels(b.asks, s.Asks)
	setLevels(b.bids, s.Bids)
}

// ApplyUpdate merges an update that continues the current sequence, or one
// that restarts it at 1. Anything else leaves the book untouched and
// returns an error wrapping ErrSequenceGap.
func (b *OrderBook) ApplyUpdate(u BookUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.FirstSequenceID != b.sequenceID+1 && u.FirstSequenceID != 1 {
		return errors.Wrapf(ErrSequenceGap, "have %d, update starts at %d", b.sequenceID, u.FirstSequenceID)
	}
	b.sequenceID = u.LastSequenceID
	setLevels(b.asks, u.Asks)
	setLevels(b.bids, u.Bids)
	return nil
}

func (b *OrderBook) SequenceID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequenceID
}

// Depth returns the sequence id with up to depth levels per side, asks
// cheapest first and bids highest first. depth <= 0 returns every level.
func (b *OrderBook) Depth(depth int) (int64, []Level, []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	asks := sortedLevels(b.asks, depth, func(x, y decimal.Decimal) bool { return x.LessThan(y) })
	bids := sortedLevels(b.bids, depth, func(x, y decimal.Decimal) bool { return x.GreaterThan(y) })
	return b.sequenceID, asks, bids
}

func setLevels(side map[string]Level, levels []Level) {
	for _, l := range levels {
		key := l.Price.String()
		if l.Volume.IsZero() {
			delete(side, key)
			continue
		}
		side[key] = l
	}
}

func sortedLevels(side map[string]Level, depth int, less func(x, y decimal.Decimal) bool) []Level {
	levels := make([]Level, 0, len(side))
	for _, l := range side {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool {
		return less(levels[i].Price, levels[j].Price)
	})
	if depth > 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return levels
}

// Subscriber sends subscribe frames; *Client is one.
type Subscriber interface {
	SubscribeWith(p Params) error
}

var _ Subscriber = (*Client)(nil)

// BookKeeper keeps an OrderBook in sync with one market's book channel.
type BookKeeper struct {
	MarketSymbol string
	Interval     string

	sub  Subscriber
	book *OrderBook
}

func NewBookKeeper(sub Subscriber, marketSymbol, interval string) *BookKeeper {
	if interval == "" {
		interval = DefaultBookInterval
	}
	return &BookKeeper{
		MarketSymbol: marketSymbol,
		Interval:     interval,
		sub:          sub,
		book:         NewOrderBook(),
	}
}

func (k *BookKeeper) Channel() string {
	return OrderBookChannel(k.Interval)
}

func (k *BookKeeper) Book() *OrderBook {
	return k.book
}

// Subscribe asks for the book channel starting with a snapshot.
func (k *BookKeeper) Subscribe() error {
	return k.sub.SubscribeWith(Params{
		Channel:      k.Channel(),
		MarketSymbol: k.MarketSymbol,
		Snapshot:     true,
	})
}

// Handle applies book events for this market and ignores everything else.
// On a sequence gap it subscribes again to get a fresh snapshot.
func (k *BookKeeper) Handle(ev Event) error {
	if ev.Channel() != k.Channel() {
		return nil
	}
	if market := ev.MarketSymbol(); market != "" && market != k.MarketSymbol {
		return nil
	}

	switch ev.Name {
	case EventSnapshot:
		var snap BookSnapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			return errors.Wrap(err, "decode book snapshot")
		}
		k.book.ApplySnapshot(snap)
		log.Info().Str("market", k.MarketSymbol).Int64("sequenceId", snap.SequenceID).Msg("order book initialized")

	case EventUpdate:
		var upd BookUpdate
		if err := json.Unmarshal(ev.Data, &upd); err != nil {
			return errors.Wrap(err, "decode book update")
		}
		err := k.book.ApplyUpdate(upd)
		if errors.Is(err, ErrSequenceGap) {
			log.Warn().
				Int64("actual", k.book.SequenceID()).
				Int64("received", upd.FirstSequenceID).
				Msg("sequence id mismatch, requesting new snapshot")
			return k.Subscribe()
		}
		return err
	}
	return nil
}

type BookView struct {
	MarketSymbol string  `json:"market_symbol"`
	Interval     string  `json:"subscribe_interval"`
	SequenceID   int64   `json:"sequence_id"`
	Asks         []Level `json:"asks"`
	Bids         []Level `json:"bids"`
}

func (k *BookKeeper) View(depth int) BookView {
	seq, asks, bids := k.book.Depth(depth)
	return BookView{
		MarketSymbol: k.MarketSymbol,
		Interval:     k.Interval,
		SequenceID:   seq,
		Asks:         asks,
		Bids:         bids,
	}
}
