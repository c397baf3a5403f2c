package fakeboard

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

type failure struct {
	method string
	prefix string
	status int
	times  int
}

type hold struct {
	method   string
	prefix   string
	arrived  chan struct{}
	released chan struct{}
	used     bool
	// response holds the answer instead of the request.
	response bool
}

// FailNext makes the next times requests matching method and path prefix
// fail with status. The prefix is relative to /api, e.g. "/cards/".
func (s *Server) FailNext(method, prefix string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: prefix, status: status, times: times})
}

// Hold blocks the next request matching method and path prefix until release
// is called. arrived is closed once the request is being held.
func (s *Server) Hold(method, prefix string) (arrived <-chan struct{}, release func()) {
	return s.addHold(&hold{method: method, prefix: prefix})
}

// HoldResponse lets the next request matching method and path prefix be
// handled, then holds its response until release is called. arrived is
// closed once the response is ready, so changes made after it are not part
// of that response.
func (s *Server) HoldResponse(method, prefix string) (arrived <-chan struct{}, release func()) {
	return s.addHold(&hold{method: method, prefix: prefix, response: true})
}

func (s *Server) addHold(h *hold) (<-chan struct{}, func()) {
	h.arrived = make(chan struct{})
	h.released = make(chan struct{})

	s.mu.Lock()
	s.holds = append(s.holds, h)
	s.mu.Unlock()

	return h.arrived, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		h.release()
	}
}

func (h *hold) release() {
	select {
	case <-h.released:
	default:
		close(h.released)
	}
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.holds {
		h.release()
	}
	s.holds = nil
}

func matches(method, prefix string, r *http.Request) bool {
	return r.Method == method && strings.HasPrefix(strings.TrimPrefix(r.URL.Path, "/api"), prefix)
}

// recordAndInject records every REST request, then applies any hold or
// failure configured for it.
func (s *Server) recordAndInject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      strings.TrimPrefix(r.URL.Path, "/api"),
			Body:      body,
			RequestID: r.Header.Get("X-Request-ID"),
		})

		var held *hold
		for _, h := range s.holds {
			if !h.used && matches(h.method, h.prefix, r) {
				h.used = true
				held = h
				break
			}
		}

		status := 0
		for i, f := range s.failures {
			if f.times > 0 && matches(f.method, f.prefix, r) {
				f.times--
				status = f.status
				if f.times == 0 {
					s.failures = append(s.failures[:i], s.failures[i+1:]...)
				}
				break
			}
		}
		s.mu.Unlock()

		if held != nil && !held.response {
			if !held.wait(r) {
				return
			}
		}

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}

		if held == nil || !held.response {
			next.ServeHTTP(w, r)
			return
		}

		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, r)
		if !held.wait(r) {
			return
		}
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	})
}

// wait signals arrival and blocks until the hold is released. It reports
// false if the client went away first.
func (h *hold) wait(r *http.Request) bool {
	close(h.arrived)
	select {
	case <-h.released:
		return true
	case <-r.Context().Done():
		return false
	}
}
