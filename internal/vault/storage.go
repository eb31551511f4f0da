package vault

import (
	"sort"

	"github.com/google/uuid"
)

// Storage holds item references created by expeditions, incidents,
// and rewards. Used count is derived from the item list.
type Storage struct {
	ID       uuid.UUID `json:"id"`
	VaultID  uuid.UUID `json:"vault_id"`
	Capacity int       `json:"capacity"`
	Items    []Item    `json:"items"`
}

// Used returns the number of occupied slots.
func (s *Storage) Used() int {
	return len(s.Items)
}

// Remaining returns the number of free slots.
func (s *Storage) Remaining() int {
	free := s.Capacity - len(s.Items)
	if free < 0 {
		return 0
	}
	return free
}

// Transfer moves loot into storage, best items first. Items are sorted
// descending by rarity, transferred up to the remaining capacity, and
// anything beyond capacity is returned as overflow so callers can
// surface the loss instead of dropping it silently.
func (s *Storage) Transfer(loot []Item) (transferred, overflow []Item) {
	if len(loot) == 0 {
		return nil, nil
	}

	sorted := make([]Item, len(loot))
	copy(sorted, loot)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rarity > sorted[j].Rarity
	})

	free := s.Remaining()
	if free > len(sorted) {
		free = len(sorted)
	}

	transferred = sorted[:free]
	overflow = sorted[free:]
	s.Items = append(s.Items, transferred...)
	return transferred, overflow
}
