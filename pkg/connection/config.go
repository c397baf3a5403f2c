package connection

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

// Config describes the push channel of one board.
type Config struct {
	// URL is the full channel address, including the board path and the
	// username query parameter.
	URL url.URL

	BoardID  models.BoardID
	Username string

	// DialTimeout bounds the websocket handshake. Zero means no bound
	// beyond the context passed to Connect.
	DialTimeout time.Duration

	Logger logger.Logger
}

// NewConfig creates a Config for the board's push channel under base, such
// as "ws://localhost:8000". http and https bases are mapped to ws and wss.
//
// It is not strictly necessary to create a Config with this function, but it
// makes sure the channel path and query are laid out the way the server
// expects.
func NewConfig(base *url.URL, board models.BoardID, username string) *Config {
	u := *base
	switch u.Scheme {
	case constants.HTTPScheme:
		u.Scheme = constants.WebsocketScheme
	case constants.HTTPSecureScheme:
		u.Scheme = constants.WebsocketSecureScheme
	}
	u.Path = ChannelPath(base.Path, board)
	u.RawPath = ""
	u.RawQuery = url.Values{"username": []string{username}}.Encode()

	return &Config{
		URL:         u,
		BoardID:     board,
		Username:    username,
		DialTimeout: constants.DefaultDialTimeout,
		Logger:      logger.Discard(),
	}
}

// ChannelPath returns the path of a board's push channel below prefix.
func ChannelPath(prefix string, board models.BoardID) string {
	for len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix + "/ws/board/" + strconv.FormatInt(int64(board), 10) + "/"
}

// Validate reports the first missing piece of c.
func (c *Config) Validate() error {
	if c.URL.Host == "" {
		return constants.ErrNoBaseURL
	}
	switch c.URL.Scheme {
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
	default:
		return fmt.Errorf("connection: unsupported scheme %q", c.URL.Scheme)
	}
	if c.BoardID <= 0 {
		return constants.ErrNoBoardID
	}
	if c.Username == "" {
		return constants.ErrNoUsername
	}
	return nil
}
