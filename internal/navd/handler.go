// Package navd implements the navigation daemon: a JSONL JSON-RPC server
// whose message handler routes LSP-style requests and notifications to
// typed handlers with per-message failure isolation.
package navd

import (
	"encoding/json"
	"fmt"

	"codenav/internal/config"
	"codenav/internal/core/cache"
	"codenav/internal/highlight"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
	"codenav/internal/search"
	"codenav/internal/wfiles"
)

// NotIndexed reports that a file exists but has no index yet. It is never
// converted into a protocol error by the dispatcher; the server parks the
// request and retries it when the index lands.
type NotIndexed struct {
	Path string
}

func (e *NotIndexed) Error() string { return e.Path + " is not indexed" }

// paramError marks a parameter-decode failure so the dispatcher can report
// InvalidParams with the expected shape and the failing JSON path.
type paramError struct {
	method string
	detail string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid params of %s: %s", e.method, e.detail)
}

type notificationFunc func(params json.RawMessage) error
type requestFunc func(params json.RawMessage, reply *ReplyOnce) error

// MessageHandler owns the two dispatch tables. They are built once at
// construction from a static bind list and read-only afterwards.
type MessageHandler struct {
	DB     *querydb.DB
	WFiles *wfiles.WorkingFiles
	Conf   *config.Config
	Search *search.Store

	// Notify is the fire-and-forget sink for server-initiated messages.
	Notify func(method string, params any)

	// Index enqueues a file onto the indexing pipeline; nil when the
	// server runs without one.
	Index func(path string)

	// Exit is invoked by the exit notification.
	Exit func()

	// Overdue is set by the server before re-running a parked request
	// whose retry window has expired; findOrFail then answers with an
	// error instead of parking again.
	Overdue bool

	ShutdownRequested bool

	hl        *highlight.Engine
	xrefCache *cache.LRU[xrefKey, []protocol.LocationLink]

	method2notification map[string]notificationFunc
	method2request      map[string]requestFunc
}

func NewMessageHandler(conf *config.Config) *MessageHandler {
	if conf == nil {
		conf = config.Default()
	}
	h := &MessageHandler{
		DB:                  querydb.NewDB(),
		WFiles:              wfiles.New(),
		Conf:                conf,
		Notify:              func(string, any) {},
		method2notification: map[string]notificationFunc{},
		method2request:      map[string]requestFunc{},
	}
	h.hl = highlight.NewEngine(conf.Highlight, func(method string, params any) {
		h.Notify(method, params)
	})
	h.xrefCache = cache.NewLRU[xrefKey, []protocol.LocationLink](256)

	bindNotification(h, "initialized", h.initialized)
	bindNotification(h, "exit", h.exit)
	bindNotification(h, "textDocument/didOpen", h.textDocumentDidOpen)
	bindNotification(h, "textDocument/didChange", h.textDocumentDidChange)
	bindNotification(h, "textDocument/didSave", h.textDocumentDidSave)
	bindNotification(h, "textDocument/didClose", h.textDocumentDidClose)
	bindRequest(h, "initialize", h.initialize)
	bindRequest(h, "shutdown", h.shutdown)
	bindRequest(h, "textDocument/definition", h.textDocumentDefinition)
	bindRequest(h, "textDocument/references", h.textDocumentReferences)
	bindRequest(h, "textDocument/documentHighlight", h.textDocumentDocumentHighlight)
	bindRequest(h, "workspace/symbol", h.workspaceSymbol)
	bindRequest(h, "$/info", h.info)
	return h
}

// bindNotification wraps a typed notification handler in a decode-then-
// invoke adapter.
func bindNotification[P any](h *MessageHandler, method string, fn func(*P) error) {
	h.method2notification[method] = func(params json.RawMessage) error {
		var p P
		if err := decodeParams(method, params, &p); err != nil {
			return err
		}
		return fn(&p)
	}
}

func bindRequest[P any](h *MessageHandler, method string, fn func(*P, *ReplyOnce) error) {
	h.method2request[method] = func(params json.RawMessage, reply *ReplyOnce) error {
		var p P
		if err := decodeParams(method, params, &p); err != nil {
			return err
		}
		return fn(&p, reply)
	}
}

// decodeParams turns any decoder failure into a single error kind carrying
// the expected shape and the JSON path at which decoding failed.
func decodeParams(method string, params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if ok := asTypeError(err, &typeErr); ok {
			path := typeErr.Field
			if path == "" {
				path = "(root)"
			}
			return &paramError{
				method: method,
				detail: fmt.Sprintf("expected %s at %s, got %s", typeErr.Type, path, typeErr.Value),
			}
		}
		return &paramError{method: method, detail: err.Error()}
	}
	return nil
}

func asTypeError(err error, target **json.UnmarshalTypeError) bool {
	te, ok := err.(*json.UnmarshalTypeError)
	if ok {
		*target = te
	}
	return ok
}

// Run dispatches one decoded message. Requests get exactly one response:
// success, a typed error, or — for NotIndexed only — no response yet, with
// the error propagated to the caller for backlog handling. Notification
// failures degrade to a window/showMessage and are never fatal.
func (h *MessageHandler) Run(msg *protocol.Message, out func(protocol.Response)) error {
	if h == nil || msg == nil {
		return fmt.Errorf("handler is nil")
	}

	if msg.HasID() {
		reply := &ReplyOnce{ID: msg.ID, Handler: h, Out: out}
		handler, ok := h.method2request[msg.Method]
		if !ok {
			reply.Error(protocol.MethodNotFound, "unknown request "+msg.Method)
			return nil
		}
		err := runIsolated(func() error { return handler(msg.Params, reply) })
		if err == errHandled {
			return nil
		}
		switch e := err.(type) {
		case nil:
			if !reply.Sent() {
				reply.Error(protocol.InternalError, "no reply produced for "+msg.Method)
			}
			return nil
		case *NotIndexed:
			// Propagate undecoded: the outer layer owns retry.
			return e
		case *paramError:
			reply.Error(protocol.InvalidParams, e.Error())
			return nil
		default:
			reply.Error(protocol.InternalError, "failed to process "+msg.Method)
			return nil
		}
	}

	handler, ok := h.method2notification[msg.Method]
	if !ok {
		return nil
	}
	if err := runIsolated(func() error { return handler(msg.Params) }); err != nil {
		h.Notify("window/showMessage", protocol.ShowMessageParam{
			Type:    protocol.MessageTypeError,
			Message: "failed to process " + msg.Method,
		})
	}
	return nil
}

// runIsolated converts a handler panic into an error so one bad message
// cannot take the server down. ReplyOnce double-reply panics are real
// programming errors and re-raised.
func runIsolated(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, isReply := r.(doubleReply); isReply {
				panic(r)
			}
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}

// findFile returns the indexed file for path, or nil when unknown.
func (h *MessageHandler) findFile(path string) (*querydb.File, int) {
	return h.DB.FindFileByPath(path)
}

// findOrFail resolves both the working file and the indexed file for path.
// A missing working file answers InvalidRequest immediately; a missing
// index entry raises NotIndexed unless the request is already overdue.
func (h *MessageHandler) findOrFail(path string, reply *ReplyOnce) (*querydb.File, *wfiles.File, error) {
	wf := h.WFiles.GetFile(path)
	if wf == nil {
		reply.NotOpened(path)
		return nil, nil, errHandled
	}
	file, _ := h.findFile(path)
	if file == nil {
		if !h.Overdue {
			return nil, nil, &NotIndexed{Path: path}
		}
		reply.Error(protocol.InvalidRequest, "not indexed")
		return nil, nil, errHandled
	}
	return file, wf, nil
}

// errHandled signals that a reply was already produced; the dispatcher
// treats it as success.
var errHandled = fmt.Errorf("already replied")
