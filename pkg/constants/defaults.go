package constants

import "time"

const (
	// RequestIDLength is the length of the X-Request-ID value sent with each REST call.
	RequestIDLength = 16

	DefaultHTTPTimeout  = 10 * time.Second
	DefaultDialTimeout  = 10 * time.Second
	DefaultCloseTimeout = 2 * time.Second

	// NoticeTTL is how long a notice stays visible before it dismisses itself.
	NoticeTTL = 3 * time.Second

	// ReloadAttempts bounds how often a reload is fetched again because
	// pushed changes landed while it was in flight.
	ReloadAttempts = 3

	// ResyncRetryDelay spaces out reloads after a reconnect that could not
	// be applied yet.
	ResyncRetryDelay = 250 * time.Millisecond

	// CloseMessageCode is the websocket close code sent on a normal shutdown.
	CloseMessageCode = 1000
)

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)
