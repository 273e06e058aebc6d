package orderdb

type Iface interface {
	Upsert(entry Entry) error
	Delete(id string) error
	Get(id string) (Entry, bool, error)
	List() ([]Entry, error)
}
