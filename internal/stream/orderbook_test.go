package stream

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func lv(price, volume string) Level {
	return Level{Price: decimal.RequireFromString(price), Volume: decimal.RequireFromString(volume)}
}

func prices(levels []Level) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, l.Price.String())
	}
	return out
}

type recordingSubscriber struct {
	sent []Params
}

func (r *recordingSubscriber) SubscribeWith(p Params) error {
	r.sent = append(r.sent, p)
	return nil
}

func bookEvent(t *testing.T, name, channel, market string, data any) Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Event{
		Type:   "message",
		Name:   name,
		Params: json.RawMessage(`{"channel":"` + channel + `","market_symbol":"` + market + `"}`),
		Data:   raw,
	}
}

func TestOrderBook(t *testing.T) {
	t.Run("snapshot is sorted per side", func(t *testing.T) {
		book := NewOrderBook()
		book.ApplySnapshot(BookSnapshot{
			SequenceID: 10,
			Asks:       []Level{lv("102", "1"), lv("101", "2"), lv("103", "0")},
			Bids:       []Level{lv("99", "1"), lv("100", "3")},
		})

		seq, asks, bids := book.Depth(0)
		assert.Equal(t, int64(10), seq)
		assert.Equal(t, []string{"101", "102"}, prices(asks))
		assert.Equal(t, []string{"100", "99"}, prices(bids))
	})

	t.Run("update in sequence sets and deletes levels", func(t *testing.T) {
		book := NewOrderBook()
		book.ApplySnapshot(BookSnapshot{
			SequenceID: 10,
			Asks:       []Level{lv("101.0", "2"), lv("102", "1")},
			Bids:       []Level{lv("100", "3")},
		})

		require.NoError(t, book.ApplyUpdate(BookUpdate{
			FirstSequenceID: 11,
			LastSequenceID:  14,
			Asks:            []Level{lv("101", "0"), lv("102", "5")},
			Bids:            []Level{lv("99.5", "1")},
		}))

		seq, asks, bids := book.Depth(0)
		assert.Equal(t, int64(14), seq)
		require.Len(t, asks, 1)
		assert.Equal(t, "102", asks[0].Price.String())
		assert.Equal(t, "5", asks[0].Volume.String())
		assert.Equal(t, []string{"100", "99.5"}, prices(bids))
	})

	t.Run("gap leaves the book untouched", func(t *testing.T) {
		book := NewOrderBook()
		book.ApplySnapshot(BookSnapshot{SequenceID: 10, Asks: []Level{lv("101", "2")}})

		err := book.ApplyUpdate(BookUpdate{FirstSequenceID: 13, LastSequenceID: 15, Asks: []Level{lv("101", "0")}})
		assert.ErrorIs(t, err, ErrSequenceGap)

		seq, asks, _ := book.Depth(0)
		assert.Equal(t, int64(10), seq)
		assert.Equal(t, []string{"101"}, prices(asks))
	})

	t.Run("sequence restart at one is accepted", func(t *testing.T) {
		book := NewOrderBook()
		book.ApplySnapshot(BookSnapshot{SequenceID: 500})

		require.NoError(t, book.ApplyUpdate(BookUpdate{FirstSequenceID: 1, LastSequenceID: 2, Bids: []Level{lv("90", "1")}}))
		assert.Equal(t, int64(2), book.SequenceID())
	})

	t.Run("depth limits each side", func(t *testing.T) {
		book := NewOrderBook()
		book.ApplySnapshot(BookSnapshot{
			Asks: []Level{lv("1", "1"), lv("2", "1"), lv("3", "1")},
			Bids: []Level{lv("0.1", "1"), lv("0.2", "1"), lv("0.3", "1")},
		})

		_, asks, bids := book.Depth(2)
		assert.Equal(t, []string{"1", "2"}, prices(asks))
		assert.Equal(t, []string{"0.3", "0.2"}, prices(bids))
	})
}

func TestLevel_JSON(t *testing.T) {
	var levels []Level
	require.NoError(t, json.Unmarshal([]byte(`[["100.50","0.25"],[101,1]]`), &levels))
	require.Len(t, levels, 2)
	assert.Equal(t, "100.5", levels[0].Price.String())
	assert.Equal(t, "0.25", levels[0].Volume.String())
	assert.Equal(t, "101", levels[1].Price.String())

	out, err := json.Marshal(levels[0])
	require.NoError(t, err)
	assert.JSONEq(t, `["100.5","0.25"]`, string(out))

	var bad Level
	assert.Error(t, json.Unmarshal([]byte(`["100"]`), &bad))
}

func TestBookKeeper(t *testing.T) {
	t.Run("subscribes with snapshot", func(t *testing.T) {
		sub := &recordingSubscriber{}
		k := NewBookKeeper(sub, "btcbrl", "")

		require.NoError(t, k.Subscribe())
		assert.Equal(t, []Params{{Channel: "orderbook-250", MarketSymbol: "btcbrl", Snapshot: true}}, sub.sent)
	})

	t.Run("gap requests a new snapshot", func(t *testing.T) {
		sub := &recordingSubscriber{}
		k := NewBookKeeper(sub, "btcbrl", "100")
		ch := k.Channel()

		require.NoError(t, k.Handle(bookEvent(t, EventSnapshot, ch, "btcbrl", map[string]any{
			"sequence_id": 20,
			"asks":        [][]string{{"101", "1"}},
			"bids":        [][]string{{"100", "1"}},
		})))
		require.NoError(t, k.Handle(bookEvent(t, EventUpdate, ch, "btcbrl", map[string]any{
			"first_sequence_id": 21,
			"last_sequence_id":  22,
			"asks":              [][]string{{"101", "0"}},
			"bids":              [][]string{},
		})))
		assert.Empty(t, sub.sent)

		require.NoError(t, k.Handle(bookEvent(t, EventUpdate, ch, "btcbrl", map[string]any{
			"first_sequence_id": 30,
			"last_sequence_id":  31,
			"asks":              [][]string{{"105", "1"}},
			"bids":              [][]string{},
		})))
		require.Len(t, sub.sent, 1)
		assert.True(t, sub.sent[0].Snapshot)
		assert.Equal(t, "orderbook-100", sub.sent[0].Channel)

		view := k.View(DefaultBookDepth)
		assert.Equal(t, int64(22), view.SequenceID)
		assert.Empty(t, view.Asks)
		assert.Equal(t, []string{"100"}, prices(view.Bids))

		require.NoError(t, k.Handle(bookEvent(t, EventSnapshot, ch, "btcbrl", map[string]any{
			"sequence_id": 31,
			"asks":        [][]string{{"105", "1"}},
			"bids":        [][]string{},
		})))
		assert.Equal(t, int64(31), k.Book().SequenceID())
	})

	t.Run("other channels and markets are ignored", func(t *testing.T) {
		sub := &recordingSubscriber{}
		k := NewBookKeeper(sub, "btcbrl", "250")

		snap := map[string]any{"sequence_id": 5, "asks": [][]string{{"1", "1"}}, "bids": [][]string{}}
		require.NoError(t, k.Handle(bookEvent(t, EventSnapshot, "orderbook-1000", "btcbrl", snap)))
		require.NoError(t, k.Handle(bookEvent(t, EventSnapshot, k.Channel(), "ethbrl", snap)))
		assert.Equal(t, int64(0), k.Book().SequenceID())
	})

	t.Run("undecodable data", func(t *testing.T) {
		k := NewBookKeeper(&recordingSubscriber{}, "btcbrl", "250")
		ev := Event{Name: EventUpdate, Params: json.RawMessage(`{"channel":"orderbook-250"}`), Data: json.RawMessage(`"nope"`)}
		assert.Error(t, k.Handle(ev))
	})
}

func TestOrderBook_Property_NoEmptyLevels(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		genLevels := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) Level {
			price := decimal.New(rapid.Int64Range(1, 50).Draw(t, "price"), -1)
			volume := decimal.NewFromInt(rapid.Int64Range(0, 3).Draw(t, "volume"))
			return Level{Price: price, Volume: volume}
		}), 0, 10)

		book.ApplySnapshot(BookSnapshot{SequenceID: 1, Asks: genLevels.Draw(t, "asks"), Bids: genLevels.Draw(t, "bids")})
		seq := int64(1)
		for i, n := 0, rapid.IntRange(0, 5).Draw(t, "updates"); i < n; i++ {
			next := seq + rapid.Int64Range(1, 3).Draw(t, "span")
			if err := book.ApplyUpdate(BookUpdate{
				FirstSequenceID: seq + 1,
				LastSequenceID:  next,
				Asks:            genLevels.Draw(t, "updAsks"),
				Bids:            genLevels.Draw(t, "updBids"),
			}); err != nil {
				t.Fatalf("in sequence update rejected: %v", err)
			}
			seq = next
		}

		got, asks, bids := book.Depth(0)
		if got != seq {
			t.Fatalf("sequence %d, want %d", got, seq)
		}
		for i, l := range asks {
			if l.Volume.IsZero() {
				t.Fatalf("zero volume ask at %s", l.Price)
			}
			if i > 0 && !asks[i-1].Price.LessThan(l.Price) {
				t.Fatalf("asks out of order: %s then %s", asks[i-1].Price, l.Price)
			}
		}
		for i, l := range bids {
			if l.Volume.IsZero() {
				t.Fatalf("zero volume bid at %s", l.Price)
			}
			if i > 0 && !bids[i-1].Price.GreaterThan(l.Price) {
				t.Fatalf("bids out of order: %s then %s", bids[i-1].Price, l.Price)
			}
		}
	})
}
