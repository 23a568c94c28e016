// Package catalog holds the ordered collection of rental items.
//
// The store has no locking of its own; the engine that owns it serialises
// access.
package catalog

import "prokat/internal/models"

type Store struct {
	items []models.RentalItem
}

func NewStore(items ...models.RentalItem) *Store {
	s := &Store{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add appends an item. Duplicate names are allowed.
func (s *Store) Add(item models.RentalItem) {
	s.items = append(s.items, item.Clone())
}

// FindByType returns copies of every item whose type matches, in insertion order.
func (s *Store) FindByType(itemType string) []models.RentalItem {
	found := make([]models.RentalItem, 0)
	for i := range s.items {
		if s.items[i].HasType(itemType) {
			found = append(found, s.items[i].Clone())
		}
	}
	return found
}

// FindByName returns a copy of the first item whose name matches.
func (s *Store) FindByName(name string) (models.RentalItem, bool) {
	idx := s.indexOf(func(item *models.RentalItem) bool { return item.HasName(name) })
	if idx < 0 {
		return models.RentalItem{}, false
	}
	return s.items[idx].Clone(), true
}

// Update applies fn in place to the first item accepted by match.
func (s *Store) Update(match func(*models.RentalItem) bool, fn func(*models.RentalItem)) bool {
	idx := s.indexOf(match)
	if idx < 0 {
		return false
	}
	fn(&s.items[idx])
	return true
}

// UpdateByName applies fn in place to the first item with the given name.
func (s *Store) UpdateByName(name string, fn func(*models.RentalItem)) bool {
	return s.Update(func(item *models.RentalItem) bool { return item.HasName(name) }, fn)
}

// Remove deletes the first item with the given name.
func (s *Store) Remove(name string) bool {
	idx := s.indexOf(func(item *models.RentalItem) bool { return item.HasName(name) })
	if idx < 0 {
		return false
	}
	copy(s.items[idx:], s.items[idx+1:])
	s.items[len(s.items)-1] = models.RentalItem{}
	s.items = s.items[:len(s.items)-1]
	return true
}

// All returns copies of all items in insertion order.
func (s *Store) All() []models.RentalItem {
	out := make([]models.RentalItem, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Filter returns copies of the items accepted by keep.
func (s *Store) Filter(keep func(*models.RentalItem) bool) []models.RentalItem {
	out := make([]models.RentalItem, 0)
	for i := range s.items {
		if keep(&s.items[i]) {
			out = append(out, s.items[i].Clone())
		}
	}
	return out
}

// Replace swaps the whole content of the store.
func (s *Store) Replace(items []models.RentalItem) {
	next := make([]models.RentalItem, len(items))
	for i := range items {
		next[i] = items[i].Clone()
	}
	s.items = next
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) indexOf(match func(*models.RentalItem) bool) int {
	for i := range s.items {
		if match(&s.items[i]) {
			return i
		}
	}
	return -1
}
