package orderdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"
	"github.com/pkg/errors"
)

type State string

const (
	StatePlaced    State = "PLACED"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// Entry records one order sent by this process. It is an audit trail only;
// nothing is replayed or compensated from it.
type Entry struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"orderId"`
	Sn           string     `json:"sn"`
	MarketSymbol string     `json:"marketSymbol"`
	Side         string     `json:"side"`
	Type         string     `json:"type"`
	Price        string     `json:"price,omitempty"`
	Quantity     string     `json:"quantity"`
	State        State      `json:"state"`
	Error        string     `json:"error,omitempty"`
	PlacedAt     time.Time  `json:"placedAt"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
}

func NewEntry() Entry {
	return Entry{
		ID:       uuid.NewString(),
		PlacedAt: time.Now().UTC(),
	}
}

type OrderState struct {
	d *diskv.Diskv
}

var _ Iface = (*OrderState)(nil)

func New(path string) (*OrderState, error) {
	d := diskv.New(diskv.Options{
		BasePath:     fmt.Sprintf("%s/.db", path),
		Transform:    func(s string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024,
	})

	err := d.Write("test", []byte{})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	if !d.Has("test") {
		return nil, errors.Errorf("error creating %s/.db", path)
	}
	_ = d.Erase("test")

	return &OrderState{d: d}, nil
}

func (os *OrderState) Upsert(entry Entry) error {
	if entry.ID == "" {
		return errors.New("entry without id")
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode entry")
	}
	return os.d.Write(entry.ID, b)
}

func (os *OrderState) Delete(id string) error {
	return os.d.Erase(id)
}

// Get reports a missing entry as false with a nil error; an entry that
// cannot be read or decoded is an error.
func (os *OrderState) Get(id string) (Entry, bool, error) {
	if !os.d.Has(id) {
		return Entry{}, false, nil
	}
	b, err := os.d.Read(id)
	if err != nil {
		return Entry{}, false, errors.Wrapf(err, "read entry %s", id)
	}
	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return Entry{}, false, errors.Wrapf(err, "decode entry %s", id)
	}
	return entry, true, nil
}

// List returns every entry, oldest first.
func (os *OrderState) List() ([]Entry, error) {
	cancel := make(chan struct{})
	defer close(cancel)

	entries := make([]Entry, 0)
	for key := range os.d.Keys(cancel) {
		b, err := os.d.Read(key)
		if err != nil {
			return nil, errors.Wrapf(err, "read entry %s", key)
		}
		var entry Entry
		if err := json.Unmarshal(b, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode entry %s", key)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

type noDisk struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewNoDisk keeps the journal in memory.
func NewNoDisk() Iface {
	return &noDisk{entries: make(map[string]Entry)}
}

func (n *noDisk) Upsert(entry Entry) error {
	if entry.ID == "" {
		return errors.New("entry without id")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[entry.ID] = entry
	return nil
}

func (n *noDisk) Delete(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.entries, id)
	return nil
}

func (n *noDisk) Get(id string) (Entry, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, has := n.entries[id]
	return entry, has, nil
}

func (n *noDisk) List() ([]Entry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entries := make([]Entry, 0, len(n.entries))
	for _, entry := range n.entries {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PlacedAt.Equal(entries[j].PlacedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].PlacedAt.Before(entries[j].PlacedAt)
	})
}
