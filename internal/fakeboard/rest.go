package fakeboard

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kanbanlive/boardsync.go/internal/codec"
	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/models"
)

var cborCodec = codec.NewCBOR()

func requestCodec(r *http.Request) codec.Codec {
	if r.Header.Get("Content-Type") == cborCodec.ContentType() {
		return cborCodec
	}
	return codec.JSON{}
}

func responseCodec(r *http.Request) codec.Codec {
	if r.Header.Get("Accept") == cborCodec.ContentType() {
		return cborCodec
	}
	return codec.JSON{}
}

func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	c := responseCodec(r)
	data, err := c.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	b, ok := s.boards[models.BoardID(pathID(r))]
	var out *models.Board
	if ok {
		out = b.Clone()
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeResponse(w, r, http.StatusOK, out)
}

type boardPatch struct {
	Name *string `json:"name"`
}

func (s *Server) patchBoard(w http.ResponseWriter, r *http.Request) {
	var patch boardPatch
	if err := requestCodec(r).NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	b, ok := s.boards[models.BoardID(pathID(r))]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	if patch.Name != nil {
		b.Name = *patch.Name
		s.publishLocked(b.ID, event.BoardUpdated{Name: b.Name})
	}
	out := b.Clone()
	s.mu.Unlock()

	s.writeResponse(w, r, http.StatusOK, out)
}

type columnRequest struct {
	Title string         `json:"title"`
	Board models.BoardID `json:"board"`
	Order *int           `json:"order"`
}

func (s *Server) createColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := requestCodec(r).NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "title and board are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	b, ok := s.boards[req.Board]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "unknown board", http.StatusBadRequest)
		return
	}
	order := len(b.Columns)
	if req.Order != nil {
		order = *req.Order
	}
	col := s.addColumnLocked(b, req.Title, order)
	s.mu.Unlock()

	s.writeResponse(w, r, http.StatusCreated, col)
}

func (s *Server) deleteColumn(w http.ResponseWriter, r *http.Request) {
	id := models.ColumnID(pathID(r))

	s.mu.Lock()
	b, i := s.columnLocked(id)
	if b == nil {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	b.Columns = append(b.Columns[:i:i], b.Columns[i+1:]...)
	s.publishLocked(b.ID, event.ColumnDeleted{ColumnID: id})
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

type cardRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Column      models.ColumnID `json:"column"`
	DueDate     *models.Date    `json:"due_date"`
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := requestCodec(r).NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "title and column are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	b, i := s.columnLocked(req.Column)
	if b == nil {
		s.mu.Unlock()
		http.Error(w, "unknown column", http.StatusBadRequest)
		return
	}
	card := s.addCardLocked(b, i, models.Card{Title: req.Title, Description: req.Description, DueDate: req.DueDate})
	s.mu.Unlock()

	s.writeResponse(w, r, http.StatusCreated, card)
}

type cardPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Column      *models.ColumnID `json:"column"`
	Order       *int             `json:"order"`
	DueDate     *models.Date     `json:"due_date"`
}

func (s *Server) patchCard(w http.ResponseWriter, r *http.Request) {
	var patch cardPatch
	if err := requestCodec(r).NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := models.CardID(pathID(r))

	s.mu.Lock()
	b, loc, ok := s.cardLocked(id)
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}

	if patch.Column != nil || patch.Order != nil {
		dest := loc.Column
		if patch.Column != nil {
			dest = *patch.Column
		}
		di := b.ColumnIndex(dest)
		if di < 0 {
			s.mu.Unlock()
			http.Error(w, "unknown column", http.StatusBadRequest)
			return
		}
		s.moveCardLocked(b, loc, dest, patch.Order)
	}

	card := s.updateCardLocked(b, id, func(c *models.Card) {
		if patch.Title != nil {
			c.Title = *patch.Title
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.DueDate != nil {
			c.DueDate = patch.DueDate
		}
	})
	s.mu.Unlock()

	s.writeResponse(w, r, http.StatusOK, card)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id := models.CardID(pathID(r))

	s.mu.Lock()
	b, loc, ok := s.cardLocked(id)
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	i := b.ColumnIndex(loc.Column)
	cards := b.Columns[i].Cards
	b.Columns[i].Cards = append(cards[:loc.Index:loc.Index], cards[loc.Index+1:]...)
	s.publishLocked(b.ID, event.CardDeleted{ColumnID: loc.Column, CardID: id})
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
