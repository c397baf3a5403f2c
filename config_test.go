package boardsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{APIURL: "http://localhost:8000/api", BoardID: 1, Username: "ana"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no api url", func(c *Config) { c.APIURL = "" }, constants.ErrNoBaseURL},
		{"no board", func(c *Config) { c.BoardID = 0 }, constants.ErrNoBoardID},
		{"negative board", func(c *Config) { c.BoardID = -4 }, constants.ErrNoBoardID},
		{"no username", func(c *Config) { c.Username = "" }, constants.ErrNoUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("api url without host", func(t *testing.T) {
		cfg := valid
		cfg.APIURL = "/api"
		assert.ErrorContains(t, cfg.Validate(), "has no host")
	})
}

func TestConfigChannelBase(t *testing.T) {
	cfg := Config{APIURL: "https://boards.example.com/api/v1"}
	u, err := cfg.channelBase()
	require.NoError(t, err)
	assert.Equal(t, "https://boards.example.com", u.String())

	cfg.WSURL = "wss://push.example.com/prefix"
	u, err = cfg.channelBase()
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com/prefix", u.String())
}

func TestConfigNoticeTTL(t *testing.T) {
	assert.Equal(t, constants.NoticeTTL, (&Config{}).noticeTTL())
	assert.Equal(t, time.Second, (&Config{NoticeTTL: time.Second}).noticeTTL())
	assert.Zero(t, (&Config{NoticeTTL: -1}).noticeTTL())
}
