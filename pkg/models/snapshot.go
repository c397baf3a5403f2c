package models

import (
	"slices"

	"github.com/goccy/go-json"
)

// Roster is the set of display names currently connected to a board.
// The zero value is an empty roster.
type Roster struct {
	users []string
}

// NewRoster builds a roster from names, collapsing duplicates.
func NewRoster(users ...string) Roster {
	if len(users) == 0 {
		return Roster{}
	}
	sorted := slices.Clone(users)
	slices.Sort(sorted)
	return Roster{users: slices.Compact(sorted)}
}

// Users returns the names in lexical order.
func (r Roster) Users() []string {
	return slices.Clone(r.users)
}

func (r Roster) Len() int {
	return len(r.users)
}

func (r Roster) Contains(user string) bool {
	_, found := slices.BinarySearch(r.users, user)
	return found
}

func (r Roster) Equal(other Roster) bool {
	return slices.Equal(r.users, other.users)
}

func (r Roster) MarshalJSON() ([]byte, error) {
	if r.users == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.users)
}

func (r *Roster) UnmarshalJSON(data []byte) error {
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*r = NewRoster(users...)
	return nil
}

// Snapshot is the complete local view of one board at a point in time.
type Snapshot struct {
	Board    *Board `json:"board"`
	Presence Roster `json:"presence"`
}

// WithBoard returns a copy of s holding b.
func (s Snapshot) WithBoard(b *Board) Snapshot {
	s.Board = b
	return s
}

// WithPresence returns a copy of s holding r.
func (s Snapshot) WithPresence(r Roster) Snapshot {
	s.Presence = r
	return s
}

// Clone deep copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Board: s.Board.Clone(), Presence: NewRoster(s.Presence.users...)}
}
