package connection

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
)

func TestNewConfig(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"ws://localhost:8000", "ws://localhost:8000/ws/board/7/?username=ana"},
		{"http://localhost:8000/", "ws://localhost:8000/ws/board/7/?username=ana"},
		{"https://boards.example.com/kanban", "wss://boards.example.com/kanban/ws/board/7/?username=ana"},
		{"wss://boards.example.com", "wss://boards.example.com/ws/board/7/?username=ana"},
	}

	for _, tc := range cases {
		t.Run(tc.base, func(t *testing.T) {
			base, err := url.Parse(tc.base)
			require.NoError(t, err)

			cfg := NewConfig(base, 7, "ana")
			assert.Equal(t, tc.want, cfg.URL.String())
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNewConfigEscapesUsername(t *testing.T) {
	base, err := url.Parse("ws://localhost:8000")
	require.NoError(t, err)

	cfg := NewConfig(base, 1, "ana maria&co")
	assert.Equal(t, "ana maria&co", cfg.URL.Query().Get("username"))
}

func TestConfigValidate(t *testing.T) {
	base, err := url.Parse("ws://localhost:8000")
	require.NoError(t, err)

	noBoard := NewConfig(base, 0, "ana")
	assert.ErrorIs(t, noBoard.Validate(), constants.ErrNoBoardID)

	noUser := NewConfig(base, 1, "")
	assert.ErrorIs(t, noUser.Validate(), constants.ErrNoUsername)

	noHost := &Config{BoardID: 1, Username: "ana"}
	assert.ErrorIs(t, noHost.Validate(), constants.ErrNoBaseURL)

	ftp, err := url.Parse("ftp://localhost")
	require.NoError(t, err)
	badScheme := NewConfig(ftp, 1, "ana")
	assert.ErrorContains(t, badScheme.Validate(), "unsupported scheme")
}
