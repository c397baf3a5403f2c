package notice

import (
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

func TestCenterDismissesAfterTTL(t *testing.T) {
	c := NewCenter(WithTTL(20 * time.Millisecond))
	defer c.Close()

	n := c.Success("Card \"Login\" was created")
	assert.Equal(t, LevelSuccess, n.Level)
	assert.NotEqual(t, uuid.Nil, n.ID)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, n, latest)

	assert.Eventually(t, func() bool {
		return len(c.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCenterDefaultTTL(t *testing.T) {
	c := NewCenter()
	assert.Equal(t, 3*time.Second, c.ttl)
}

func TestCenterManualDismiss(t *testing.T) {
	c := NewCenter(WithTTL(0))

	first := c.Error(MsgMoveFailed)
	second := c.Success("ok")
	require.Len(t, c.Active(), 2)

	assert.True(t, c.Dismiss(first.ID))
	assert.False(t, c.Dismiss(first.ID))

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestCenterListeners(t *testing.T) {
	c := NewCenter(WithTTL(10 * time.Millisecond))
	defer c.Close()

	var (
		mu     sync.Mutex
		events []Status
	)
	c.OnChange(func(n Notice, status Status) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, status)
	})

	c.Error("boom")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{Shown, Dismissed}, events)
}

func TestCenterClose(t *testing.T) {
	c := NewCenter(WithTTL(time.Hour))
	c.Success("kept")
	c.Close()

	c.Success("dropped")
	require.Len(t, c.Active(), 1)
	assert.Equal(t, "kept", c.Active()[0].Message)
}

func TestDescribe(t *testing.T) {
	// Card 10 also shows up in Done under a stale title, as it can while a
	// move settles.
	before := models.Snapshot{Board: &models.Board{Columns: []models.Column{
		{ID: 1, Title: "Todo", Cards: []models.Card{{ID: 10, Title: "Login", Column: 1}}},
		{ID: 2, Title: "Done", Cards: []models.Card{{ID: 10, Title: "Sign in", Column: 2}}},
	}}}

	testCases := []struct {
		ev   event.Event
		want string
	}{
		{ev: event.BoardUpdated{Name: "Q3"}, want: `Board title updated to "Q3"`},
		{ev: event.ColumnCreated{Column: models.Column{Title: "Review"}}, want: `Column "Review" was created`},
		{ev: event.ColumnDeleted{ColumnID: 1}, want: `Column "Todo" was deleted`},
		{ev: event.ColumnDeleted{ColumnID: 9}, want: "A column was deleted"},
		{ev: event.CardCreated{Card: models.Card{Title: "Logout"}}, want: `Card "Logout" was created`},
		{ev: event.CardDeleted{ColumnID: 1, CardID: 10}, want: `Card "Login" was deleted`},
		{ev: event.CardDeleted{ColumnID: 2, CardID: 10}, want: `Card "Sign in" was deleted`},
		{ev: event.CardDeleted{ColumnID: 1, CardID: 99}, want: "A card was deleted"},
		{ev: event.CardDeleted{ColumnID: 3, CardID: 10}, want: "A card was deleted"},
		{ev: event.CardUpdated{Card: models.Card{Title: "Login v2"}}, want: `Card "Login v2" was updated`},
	}

	for _, tc := range testCases {
		got, ok := Describe(before, tc.ev)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got)
	}

	_, ok := Describe(before, event.PresenceUpdate{Users: []string{"alice"}})
	assert.False(t, ok)
}
