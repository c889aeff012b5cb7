package navd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"codenav/internal/config"
	"codenav/internal/highlight"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
	"codenav/internal/search"
)

// OverdueAfter is how long a request may wait in the not-indexed backlog
// before it is answered with an error instead of being retried.
const OverdueAfter = 5 * time.Second

type Options struct {
	Listen string
	Conf   *config.Config

	// Index enqueues a path onto the indexing pipeline.
	Index func(path string)

	Search *search.Store
}

type event struct {
	msg    *protocol.Message
	out    func(protocol.Response)
	update *querydb.FileUpdate
}

type backlogEntry struct {
	msg   *protocol.Message
	out   func(protocol.Response)
	added time.Time
}

// Server drains all messages on a single dispatch goroutine; handlers run
// to completion before the next message, so the query database needs no
// locks.
type Server struct {
	opts Options
	h    *MessageHandler

	events  chan event
	backlog []backlogEntry

	mu        sync.Mutex
	listener  net.Listener
	notifyTo  io.Writer
	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Conf == nil {
		opts.Conf = config.Default()
	}
	if opts.Listen == "" {
		opts.Listen = opts.Conf.Listen
	}
	s := &Server{
		opts:   opts,
		events: make(chan event, 64),
		closed: make(chan struct{}),
	}
	s.h = NewMessageHandler(opts.Conf)
	s.h.Index = opts.Index
	s.h.Search = opts.Search
	s.h.Exit = func() { _ = s.Close() }
	s.h.Notify = s.sendNotification
	return s
}

// Handler exposes the message handler for in-process use and tests.
func (s *Server) Handler() *MessageHandler { return s.h }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// PostUpdate hands a finished index result to the dispatch loop. Safe to
// call from indexer goroutines.
func (s *Server) PostUpdate(u *querydb.FileUpdate) {
	if s == nil || u == nil {
		return
	}
	select {
	case s.events <- event{update: u}:
	case <-s.closed:
	}
}

func (s *Server) sendNotification(method string, params any) {
	s.mu.Lock()
	w := s.notifyTo
	s.mu.Unlock()
	if w == nil {
		return
	}
	raw, err := json.Marshal(params)
	if err != nil {
		log.Printf("notify %s: %v", method, err)
		return
	}
	if err := WriteOneLine(w, protocol.Message{
		JSONRPC: "2.0",
		Method:  method,
		Params:  raw,
	}); err != nil {
		log.Printf("notify %s: %v", method, err)
	}
}

// Run listens for TCP connections and serves until Close.
func (s *Server) Run() error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}

	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.dispatchLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		go s.serveConn(conn, conn)
	}
}

// RunStdio serves a single session over the given reader/writer pair,
// typically stdin/stdout.
func (s *Server) RunStdio(r io.Reader, w io.Writer) error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}
	go s.dispatchLoop()
	s.serveConn(io.NopCloser(r), w)
	return nil
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) serveConn(rc io.ReadCloser, w io.Writer) {
	session := uuid.NewString()
	log.Printf("session %s: connected", session)
	defer func() {
		log.Printf("session %s: closed", session)
		_ = rc.Close()
	}()

	r := bufio.NewReader(rc)
	bw := bufio.NewWriter(w)
	var wmu sync.Mutex
	write := func(v any) {
		wmu.Lock()
		defer wmu.Unlock()
		_ = WriteOneLine(bw, v)
		_ = bw.Flush()
	}

	// Notifications go to the most recently active session.
	s.mu.Lock()
	s.notifyTo = writerFunc(func(p []byte) (int, error) {
		wmu.Lock()
		defer wmu.Unlock()
		n, err := bw.Write(p)
		if err == nil {
			err = bw.Flush()
		}
		return n, err
	})
	s.mu.Unlock()

	for {
		line, err := ReadOneLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			write(protocol.Response{
				JSONRPC: "2.0",
				ID:      json.RawMessage("null"),
				Error:   &protocol.ErrorObject{Code: protocol.ParseError, Message: "parse error"},
			})
			continue
		}

		ev := event{msg: &msg, out: func(resp protocol.Response) { write(resp) }}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// dispatchLoop is the single worker context of the whole server.
func (s *Server) dispatchLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case ev := <-s.events:
			if ev.update != nil {
				s.applyUpdate(ev.update)
				s.retryBacklog()
				continue
			}
			s.dispatch(ev.msg, ev.out, time.Now())
		case <-ticker.C:
			s.retryBacklog()
		case <-s.closed:
			return
		}
	}
}

func (s *Server) dispatch(msg *protocol.Message, out func(protocol.Response), added time.Time) {
	err := s.h.Run(msg, out)
	var notIndexed *NotIndexed
	if errors.As(err, &notIndexed) {
		s.backlog = append(s.backlog, backlogEntry{msg: msg, out: out, added: added})
		return
	}
	if err != nil {
		log.Printf("dispatch %s: %v", msg.Method, err)
	}
}

// retryBacklog re-runs parked requests. Entries older than OverdueAfter
// run with the overdue flag set, which makes findOrFail answer with an
// error instead of parking again.
func (s *Server) retryBacklog() {
	if len(s.backlog) == 0 {
		return
	}
	pending := s.backlog
	s.backlog = nil
	for _, entry := range pending {
		s.h.Overdue = time.Since(entry.added) > OverdueAfter
		s.dispatch(entry.msg, entry.out, entry.added)
	}
	s.h.Overdue = false
}

// applyUpdate merges one indexed file into the database, refreshes the
// index-line snapshot of an open buffer, and re-publishes its highlights.
func (s *Server) applyUpdate(u *querydb.FileUpdate) {
	s.h.DB.ApplyFileUpdate(u)
	path := querydb.NormalizePath(u.Path)
	wf := s.h.WFiles.GetFile(path)
	if wf == nil {
		return
	}
	wf.SetIndexContent(u.Content)
	if file, _ := s.h.DB.FindFileByPath(path); file != nil {
		s.h.hl.Publish(s.h.DB, wf, file)
		highlight.EmitSkippedRanges(s.h.Notify, wf, file)
	}
}
