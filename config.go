package boardsync

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/optimistic"
	"github.com/kanbanlive/boardsync.go/pkg/session"
)

type Config struct {
	// APIURL is the REST API root, such as "http://localhost:8000/api".
	APIURL string

	// WSURL is the push channel root, such as "ws://localhost:8000". When
	// empty it is derived from the scheme and host of APIURL.
	WSURL string

	BoardID models.BoardID

	// Username is announced to other users on the board.
	Username string

	// CBOR switches REST bodies from JSON to CBOR.
	CBOR bool

	HTTPClient *http.Client

	// Retryer paces reconnects. Nil means exponential backoff without a
	// limit on attempts.
	Retryer session.Retryer

	// PersistOrder sends the card position along with every move, so that
	// reordering within a column survives a reload.
	PersistOrder bool

	MovePolicy optimistic.Policy

	// NoticeTTL is how long notices stay visible. Zero means three seconds
	// and a negative value keeps them until dismissed.
	NoticeTTL time.Duration

	// OnFatal is called when the push channel gives up reconnecting.
	OnFatal func(error)

	Logger logger.Logger
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return constants.ErrNoBaseURL
	}
	if c.BoardID <= 0 {
		return constants.ErrNoBoardID
	}
	if c.Username == "" {
		return constants.ErrNoUsername
	}
	if _, err := c.channelBase(); err != nil {
		return err
	}
	return nil
}

// channelBase returns WSURL, or the root of APIURL when WSURL is empty.
func (c *Config) channelBase() (*url.URL, error) {
	if c.WSURL != "" {
		u, err := url.Parse(c.WSURL)
		if err != nil {
			return nil, fmt.Errorf("boardsync: invalid websocket url: %w", err)
		}
		return u, nil
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return nil, fmt.Errorf("boardsync: invalid api url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("boardsync: api url %q has no host", c.APIURL)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

func (c *Config) noticeTTL() time.Duration {
	switch {
	case c.NoticeTTL < 0:
		return 0
	case c.NoticeTTL == 0:
		return constants.NoticeTTL
	default:
		return c.NoticeTTL
	}
}
