// Package fakeboard provides an in-memory board server for tests.
//
// It serves the REST API under /api and the push channel under
// /ws/board/{id}/, and announces every change it makes to the sockets
// connected to the affected board, like the real server does. REST routes
// are served by gorilla/mux and the push channel by gws.
//
// Failures can be injected per route: a request can be made to fail with a
// status code, or held until the test releases it. Sockets can be dropped or
// refused to exercise reconnection.
package fakeboard

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/lxzan/gws"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

// Request is a REST request the server received.
type Request struct {
	Method    string
	Path      string
	Body      []byte
	RequestID string
}

type Server struct {
	logger logger.Logger
	binary bool

	router   *mux.Router
	upgrader *gws.Upgrader
	http     *httptest.Server
	outbox   *outbox

	mu       sync.Mutex
	boards   map[models.BoardID]*models.Board
	nextID   int64
	sockets  map[*gws.Conn]*subscriber
	refuse   int
	failures []*failure
	holds    []*hold
	requests []Request
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithBinaryFrames makes the server push CBOR binary frames instead of JSON
// text frames.
func WithBinaryFrames() Option {
	return func(s *Server) {
		s.binary = true
	}
}

// New creates a server. It does not listen until Start is called, but
// Handler can be mounted anywhere.
func New(opts ...Option) *Server {
	s := &Server{
		logger:  logger.Discard(),
		boards:  make(map[models.BoardID]*models.Board),
		sockets: make(map[*gws.Conn]*subscriber),
		outbox:  newOutbox(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = gws.NewUpgrader(&socketHandler{server: s}, &gws.ServerOption{})

	r := mux.NewRouter()
	r.Use(s.recordAndInject)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/boards/{id:[0-9]+}/", s.getBoard).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id:[0-9]+}/", s.patchBoard).Methods(http.MethodPatch)
	api.HandleFunc("/columns/", s.createColumn).Methods(http.MethodPost)
	api.HandleFunc("/columns/{id:[0-9]+}/", s.deleteColumn).Methods(http.MethodDelete)
	api.HandleFunc("/cards/", s.createCard).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id:[0-9]+}/", s.patchCard).Methods(http.MethodPatch)
	api.HandleFunc("/cards/{id:[0-9]+}/", s.deleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/ws/board/{id:[0-9]+}/", s.handleSocket).Methods(http.MethodGet)
	s.router = r

	go s.outbox.run()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on a random local port.
func (s *Server) Start() {
	s.http = httptest.NewServer(s.router)
}

// Close drops every socket and stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.outbox.close()
	s.releaseAll()
	if s.http != nil {
		s.http.CloseClientConnections()
		s.http.Close()
	}
}

// APIURL is the REST base URL, e.g. http://127.0.0.1:1234/api.
func (s *Server) APIURL() string {
	return s.http.URL + "/api"
}

// WSURL is the push channel base URL, e.g. ws://127.0.0.1:1234.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http")
}

// Requests returns the REST requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Board returns a copy of the board as the server has it.
func (s *Server) Board(id models.BoardID) (*models.Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Presence returns the users connected to a board.
func (s *Server) Presence(id models.BoardID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presenceLocked(id)
}

// Connections returns the number of open sockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.sockets {
		if sub.open {
			n++
		}
	}
	return n
}

// AddBoard creates an empty board.
func (s *Server) AddBoard(name string) models.BoardID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.BoardID(s.newID())
	s.boards[id] = &models.Board{ID: id, Name: name, Columns: []models.Column{}}
	return id
}

// RemoveBoard deletes a board. Its open sockets stay up; new ones are
// answered with 404.
func (s *Server) RemoveBoard(id models.BoardID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, id)
}

// AddColumn appends a column as if another user created it.
func (s *Server) AddColumn(board models.BoardID, title string) models.ColumnID {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.boards[board]
	col := s.addColumnLocked(b, title, len(b.Columns))
	return col.ID
}

// AddCard appends a card as if another user created it.
func (s *Server) AddCard(column models.ColumnID, title string) models.CardID {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, i := s.columnLocked(column)
	card := s.addCardLocked(b, i, models.Card{Title: title})
	return card.ID
}

// Broadcast pushes ev to every socket on the board without changing state.
func (s *Server) Broadcast(board models.BoardID, ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(board, ev)
}

// BroadcastRaw pushes data as a text frame to every socket on the board.
func (s *Server) BroadcastRaw(board models.BoardID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox.push(outbound{to: s.recipientsLocked(board), opcode: gws.OpcodeText, data: data})
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) presenceLocked(id models.BoardID) []string {
	seen := make(map[string]struct{})
	for _, sub := range s.sockets {
		if sub.open && sub.board == id && sub.username != "" {
			seen[sub.username] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
