// Package catalog defines the contract against the remote catalog service.
//
// The remote service organizes data as boards of items; relation columns on
// an item carry links to items on other boards. Implementations live in
// subpackages: monday (GraphQL transport) and memory (in-process fake).
package catalog

import "context"

// ItemID is the storage-assigned identifier of a catalog item. Opaque to
// callers; the remote service happens to use numeric strings.
type ItemID string

// BoardID addresses a board on the remote service.
type BoardID int64

// ColumnID addresses a column on a board.
type ColumnID string

// Item is an immutable snapshot of a catalog row. Fetched on demand and
// never cached beyond the current selection session.
type Item struct {
	ID   ItemID
	Name string
}

// ItemText is an item together with the value of one text column, used for
// display labels that override the item name.
type ItemText struct {
	ID   ItemID
	Name string
	Text string
}

// Client is the capability the core depends on. Transport concerns (auth,
// retries, rate limits) stay behind this interface.
type Client interface {
	// ListAll returns every item of a board in server order, paging through
	// the remote listing until no cursor remains. A failed page discards the
	// whole result; there is no partial success.
	ListAll(ctx context.Context, board BoardID) ([]Item, error)

	// LinkedIDs fetches the given relation columns of one item in a single
	// round trip. Columns whose payload cannot be decoded degrade to an
	// empty slice; every requested column is present in the result.
	LinkedIDs(ctx context.Context, item ItemID, cols []ColumnID) (map[ColumnID][]ItemID, error)

	// Names batch-resolves item names. An empty input returns an empty
	// slice without a remote call.
	Names(ctx context.Context, ids []ItemID) ([]Item, error)

	// ItemTexts batch-resolves items together with one text column.
	ItemTexts(ctx context.Context, ids []ItemID, col ColumnID) ([]ItemText, error)

	// FindByKey is a point lookup by a unique natural-key column. The first
	// match wins; ok is false when no item carries the key.
	FindByKey(ctx context.Context, board BoardID, col ColumnID, key string) (id ItemID, ok bool, err error)

	// CreateItem creates an item and returns its new id. Values are column
	// payloads as the remote service expects them; see Relation and the
	// value helpers in this package.
	CreateItem(ctx context.Context, board BoardID, name string, values map[ColumnID]any) (ItemID, error)
}
