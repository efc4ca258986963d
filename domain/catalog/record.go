package catalog

// Record is an Item persisted in the local catalog store, carrying the
// numeric id the resumable batch path pages over.
type Record struct {
	id   int64
	item Item
}

// NewRecord creates a Record.
func NewRecord(id int64, item Item) Record {
	return Record{id: id, item: item}
}

// ID returns the store-assigned record id.
func (r Record) ID() int64 { return r.id }

// Item returns the catalog item.
func (r Record) Item() Item { return r.item }
