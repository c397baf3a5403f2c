package fakeboard

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/lxzan/gws"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

type subscriber struct {
	board    models.BoardID
	username string
	open     bool
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	if s.refuse != 0 {
		if s.refuse > 0 {
			s.refuse--
		}
		s.mu.Unlock()
		http.Error(w, "connections refused", http.StatusServiceUnavailable)
		return
	}
	_, known := s.boards[models.BoardID(id)]
	s.mu.Unlock()

	if !known {
		http.NotFound(w, r)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.logger.Error("fakeboard.Server failed to upgrade", "error", err)
		return
	}

	s.mu.Lock()
	s.sockets[socket] = &subscriber{
		board:    models.BoardID(id),
		username: r.URL.Query().Get("username"),
	}
	s.mu.Unlock()

	go socket.ReadLoop()
}

// RefuseConnections makes the next n socket upgrades fail with 503.
// A negative n refuses until RefuseConnections(0) is called.
func (s *Server) RefuseConnections(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = n
}

// DropConnections closes every socket without a close frame, like a network
// failure would.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.NetConn().Close()
	}
}

// CloseConnections closes every socket with a normal close frame.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.WriteClose(1000, []byte("bye"))
	}
}

func (s *Server) recipientsLocked(board models.BoardID) []*gws.Conn {
	var out []*gws.Conn
	for c, sub := range s.sockets {
		if sub.open && sub.board == board {
			out = append(out, c)
		}
	}
	return out
}

// publishLocked queues ev for the sockets on board. Queue order follows the
// order of calls, so clients see changes in the order they were made.
func (s *Server) publishLocked(board models.BoardID, ev event.Event) {
	encode, opcode := event.Encode, gws.OpcodeText
	if s.binary {
		encode, opcode = event.EncodeCBOR, gws.OpcodeBinary
	}
	data, err := encode(ev)
	if err != nil {
		s.logger.Error("fakeboard.Server failed to encode event", "error", err)
		return
	}
	s.outbox.push(outbound{to: s.recipientsLocked(board), opcode: opcode, data: data})
}

type socketHandler struct {
	server *Server
}

func (h *socketHandler) OnOpen(socket *gws.Conn) {
	s := h.server
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.sockets[socket]
	if !ok {
		return
	}
	sub.open = true
	s.publishLocked(sub.board, event.PresenceUpdate{Users: s.presenceLocked(sub.board)})
}

func (h *socketHandler) OnClose(socket *gws.Conn, err error) {
	s := h.server
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.sockets[socket]
	if !ok {
		return
	}
	delete(s.sockets, socket)
	s.publishLocked(sub.board, event.PresenceUpdate{Users: s.presenceLocked(sub.board)})
}

func (h *socketHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *socketHandler) OnPong(socket *gws.Conn, payload []byte) {}

// OnMessage discards client frames; the push channel is one way.
func (h *socketHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
}

type outbound struct {
	to     []*gws.Conn
	opcode gws.Opcode
	data   []byte
}

// outbox delivers frames from a single goroutine, in the order they were
// queued. Pushing never blocks.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []outbound
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(item outbound) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.items = append(o.items, item)
	o.cond.Signal()
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Broadcast()
}

func (o *outbox) run() {
	for {
		o.mu.Lock()
		for len(o.items) == 0 && !o.closed {
			o.cond.Wait()
		}
		if o.closed {
			o.mu.Unlock()
			return
		}
		item := o.items[0]
		o.items = o.items[1:]
		o.mu.Unlock()

		for _, c := range item.to {
			_ = c.WriteMessage(item.opcode, item.data)
		}
	}
}
