// Package memory implements catalog.Client in process. It backs unit tests
// and the dev-mode server where no catalog token is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"intake/internal/catalog"
)

// Store is an in-memory catalog. Items keep board insertion order, matching
// the server-order guarantee of the remote listing.
type Store struct {
	mu        sync.RWMutex
	boards    map[catalog.BoardID][]catalog.Item
	relations map[catalog.ItemID]map[catalog.ColumnID][]catalog.ItemID
	texts     map[catalog.ItemID]map[catalog.ColumnID]string
	values    map[catalog.ItemID]map[catalog.ColumnID]any
	itemBoard map[catalog.ItemID]catalog.BoardID
	nextID    int64

	failures map[string]error
	calls    map[string]int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		boards:    make(map[catalog.BoardID][]catalog.Item),
		relations: make(map[catalog.ItemID]map[catalog.ColumnID][]catalog.ItemID),
		texts:     make(map[catalog.ItemID]map[catalog.ColumnID]string),
		values:    make(map[catalog.ItemID]map[catalog.ColumnID]any),
		itemBoard: make(map[catalog.ItemID]catalog.BoardID),
		nextID:    9000000,
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// AddItem seeds an item on a board.
func (s *Store) AddItem(board catalog.BoardID, id catalog.ItemID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board] = append(s.boards[board], catalog.Item{ID: id, Name: name})
	s.itemBoard[id] = board
}

// Link seeds a relation column on an item.
func (s *Store) Link(item catalog.ItemID, col catalog.ColumnID, ids ...catalog.ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.relations[item] == nil {
		s.relations[item] = make(map[catalog.ColumnID][]catalog.ItemID)
	}
	s.relations[item][col] = ids
}

// SetText seeds a text column value on an item.
func (s *Store) SetText(item catalog.ItemID, col catalog.ColumnID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.texts[item] == nil {
		s.texts[item] = make(map[catalog.ColumnID]string)
	}
	s.texts[item][col] = text
}

// FailWith makes the named operation return err until cleared with nil.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls reports how many times the named operation ran.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// ValuesOf returns the column values an item was created with.
func (s *Store) ValuesOf(id catalog.ItemID) map[catalog.ColumnID]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[id]
}

func (s *Store) enter(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) ListAll(ctx context.Context, board catalog.BoardID) ([]catalog.Item, error) {
	if err := s.enter("list_all"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]catalog.Item, len(s.boards[board]))
	copy(items, s.boards[board])
	return items, nil
}

func (s *Store) LinkedIDs(ctx context.Context, item catalog.ItemID, cols []catalog.ColumnID) (map[catalog.ColumnID][]catalog.ItemID, error) {
	if err := s.enter("linked_ids"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[catalog.ColumnID][]catalog.ItemID, len(cols))
	for _, col := range cols {
		out[col] = append([]catalog.ItemID(nil), s.relations[item][col]...)
	}
	return out, nil
}

func (s *Store) Names(ctx context.Context, ids []catalog.ItemID) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.enter("names"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.find(id); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) ItemTexts(ctx context.Context, ids []catalog.ItemID, col catalog.ColumnID) ([]catalog.ItemText, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.enter("item_texts"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]catalog.ItemText, 0, len(ids))
	for _, id := range ids {
		item, ok := s.find(id)
		if !ok {
			continue
		}
		items = append(items, catalog.ItemText{ID: item.ID, Name: item.Name, Text: s.texts[id][col]})
	}
	return items, nil
}

func (s *Store) FindByKey(ctx context.Context, board catalog.BoardID, col catalog.ColumnID, key string) (catalog.ItemID, bool, error) {
	if err := s.enter("find_by_key"); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.boards[board] {
		if v, ok := s.values[item.ID][col]; ok {
			if str, ok := v.(string); ok && str == key {
				return item.ID, true, nil
			}
		}
		if s.texts[item.ID][col] == key {
			return item.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) CreateItem(ctx context.Context, board catalog.BoardID, name string, values map[catalog.ColumnID]any) (catalog.ItemID, error) {
	if err := s.enter("create_item"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := catalog.ItemID(fmt.Sprintf("%d", s.nextID))
	s.boards[board] = append(s.boards[board], catalog.Item{ID: id, Name: name})
	s.itemBoard[id] = board
	if len(values) > 0 {
		stored := make(map[catalog.ColumnID]any, len(values))
		for k, v := range values {
			stored[k] = v
		}
		s.values[id] = stored
	}
	return id, nil
}

func (s *Store) find(id catalog.ItemID) (catalog.Item, bool) {
	board, ok := s.itemBoard[id]
	if !ok {
		return catalog.Item{}, false
	}
	for _, item := range s.boards[board] {
		if item.ID == id {
			return item, true
		}
	}
	return catalog.Item{}, false
}

var _ catalog.Client = (*Store)(nil)
