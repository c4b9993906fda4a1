// Package patchtest provides an in-memory patch server for tests.
package patchtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// Request is one request the server received.
type Request struct {
	Method string
	Branch string
	Prev   uint64
	Target uint64
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s %d->%d", r.Method, r.Branch, r.Prev, r.Target)
}

type artifact struct {
	body []byte

	// announced overrides Content-Length on HEAD when >= 0.
	announced int64

	// shortBody is served on GET instead of body when set.
	shortBody []byte
}

// Server serves {os}/{arch}/{branch}/{prev}/{target}.pwr for one platform.
type Server struct {
	*httptest.Server

	platform game.Platform

	mu        sync.Mutex
	artifacts map[string]*artifact
	requests  []Request
	failHEAD  bool
}

// NewServer starts a server for platform.
func NewServer(platform game.Platform) *Server {
	s := &Server{
		platform:  platform,
		artifacts: make(map[string]*artifact),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))

	return s
}

func key(branch game.Branch, prev, target uint64) string {
	return fmt.Sprintf("%s/%d/%d", branch, prev, target)
}

// Add publishes an artifact.
func (s *Server) Add(branch game.Branch, prev, target uint64, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[key(branch, prev, target)] = &artifact{body: body, announced: -1}
}

// AddTruncated publishes an artifact whose HEAD announces announced bytes
// while GET delivers served bytes without a Content-Length.
func (s *Server) AddTruncated(branch game.Branch, prev, target uint64, announced, served int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[key(branch, prev, target)] = &artifact{
		announced: announced,
		shortBody: make([]byte, served),
	}
}

// Remove withdraws an artifact.
func (s *Server) Remove(branch game.Branch, prev, target uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, key(branch, prev, target))
}

// FailHEAD makes every HEAD request fail at the transport level.
func (s *Server) FailHEAD(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failHEAD = fail
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Request(nil), s.requests...)
}

// RequestCount returns the number of requests received so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[0] != s.platform.OS || parts[1] != s.platform.Arch {
		http.NotFound(w, r)

		return
	}

	prev, errPrev := strconv.ParseUint(parts[3], 10, 64)
	target, errTarget := strconv.ParseUint(strings.TrimSuffix(parts[4], ".pwr"), 10, 64)

	if errPrev != nil || errTarget != nil || !strings.HasSuffix(parts[4], ".pwr") {
		http.NotFound(w, r)

		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Branch: parts[2], Prev: prev, Target: target})
	art, ok := s.artifacts[key(game.Branch(parts[2]), prev, target)]
	failHEAD := s.failHEAD
	s.mu.Unlock()

	if r.Method == http.MethodHead && failHEAD {
		if hj, hijackable := w.(http.Hijacker); hijackable {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()

				return
			}
		}

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	if !ok {
		http.NotFound(w, r)

		return
	}

	switch r.Method {
	case http.MethodHead:
		size := int64(len(art.body))
		if art.announced >= 0 {
			size = art.announced
		}

		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if art.shortBody != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(art.shortBody)

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(art.body)))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, strings.NewReader(string(art.body)))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
