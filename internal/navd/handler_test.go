package navd

import (
	"encoding/json"
	"strings"
	"testing"

	"codenav/internal/config"
	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func request(method string, params string) *protocol.Message {
	return &protocol.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  method,
		Params:  json.RawMessage(params),
	}
}

func notification(method string, params string) *protocol.Message {
	return &protocol.Message{
		JSONRPC: "2.0",
		Method:  method,
		Params:  json.RawMessage(params),
	}
}

func runOne(t *testing.T, h *MessageHandler, msg *protocol.Message) (*protocol.Response, error) {
	t.Helper()
	var resp *protocol.Response
	err := h.Run(msg, func(r protocol.Response) {
		if resp != nil {
			t.Fatal("second response for one request")
		}
		resp = &r
	})
	return resp, err
}

func TestUnknownRequestAnswersMethodNotFound(t *testing.T) {
	h := NewMessageHandler(nil)
	resp, err := runOne(t, h, request("frobnicate/all", "{}"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.MethodNotFound {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestUnknownNotificationIgnored(t *testing.T) {
	h := NewMessageHandler(nil)
	var notes []string
	h.Notify = func(method string, params any) { notes = append(notes, method) }
	if err := h.Run(notification("frobnicate/all", "{}"), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("unexpected notifications: %v", notes)
	}
}

func TestInvalidParamsNamesFailingPath(t *testing.T) {
	h := NewMessageHandler(nil)
	resp, err := runOne(t, h, request("textDocument/definition", `{"textDocument":{"uri":5}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InvalidParams {
		t.Fatalf("resp=%+v", resp)
	}
	if !strings.Contains(resp.Error.Message, "textDocument.uri") {
		t.Fatalf("message should name the failing path: %q", resp.Error.Message)
	}
}

func TestDefinitionOnUnopenedFile(t *testing.T) {
	h := NewMessageHandler(nil)
	resp, err := runOne(t, h, request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":0}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InvalidRequest {
		t.Fatalf("resp=%+v", resp)
	}
	if !strings.Contains(resp.Error.Message, "is not opened") {
		t.Fatalf("message=%q", resp.Error.Message)
	}
}

func TestDefinitionBeforeIndexPropagatesNotIndexed(t *testing.T) {
	h := NewMessageHandler(nil)
	if _, err := runOne(t, h, notification("textDocument/didOpen",
		`{"textDocument":{"uri":"file:///src/a.cc","version":1,"text":"int x;\n"}}`)); err != nil {
		t.Fatalf("didOpen: %v", err)
	}

	resp, err := runOne(t, h, request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`))
	var notIndexed *NotIndexed
	if !asNotIndexed(err, &notIndexed) {
		t.Fatalf("err=%v", err)
	}
	if resp != nil {
		t.Fatalf("parked request must not be answered yet: %+v", resp)
	}

	// Once the retry window has expired the request gets a hard error.
	h.Overdue = true
	resp, err = runOne(t, h, request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InvalidRequest ||
		!strings.Contains(resp.Error.Message, "not indexed") {
		t.Fatalf("resp=%+v", resp)
	}
}

func asNotIndexed(err error, target **NotIndexed) bool {
	ni, ok := err.(*NotIndexed)
	if ok {
		*target = ni
	}
	return ok
}

func openAndIndex(t *testing.T, h *MessageHandler) {
	t.Helper()
	if _, err := runOne(t, h, notification("textDocument/didOpen",
		`{"textDocument":{"uri":"file:///src/a.cc","version":1,"text":"int x;\nx = 1;\n"}}`)); err != nil {
		t.Fatalf("didOpen: %v", err)
	}
	h.DB.ApplyFileUpdate(&querydb.FileUpdate{
		Path: "/src/a.cc",
		Symbols: []querydb.SymbolData{
			{USR: 7, Kind: querydb.KindVar, Name: "x",
				SymKind: protocol.SymbolKindVariable, Spell: position.NewRange(0, 4, 0, 5)},
		},
		Occurrences: []querydb.Occurrence{
			{USR: 7, Kind: querydb.KindVar, Range: position.NewRange(0, 4, 0, 5), Refcnt: 1},
			{USR: 7, Kind: querydb.KindVar, Range: position.NewRange(1, 0, 1, 1), Refcnt: 1},
		},
	})
}

func TestDefinitionResolvesToSpell(t *testing.T) {
	h := NewMessageHandler(nil)
	openAndIndex(t, h)

	resp, err := runOne(t, h, request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":1,"character":0}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error != nil {
		t.Fatalf("resp=%+v", resp)
	}
	locs, ok := resp.Result.([]protocol.Location)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if len(locs) != 1 {
		t.Fatalf("locations=%v", locs)
	}
	if locs[0].URI != "file:///src/a.cc" || locs[0].Range.Start.Line != 0 || locs[0].Range.Start.Character != 4 {
		t.Fatalf("location=%+v", locs[0])
	}
}

func TestDefinitionRepeatAnswersFromCache(t *testing.T) {
	h := NewMessageHandler(nil)
	openAndIndex(t, h)

	ask := func() []protocol.Location {
		resp, err := runOne(t, h, request("textDocument/definition",
			`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":1,"character":0}}`))
		if err != nil || resp == nil || resp.Error != nil {
			t.Fatalf("resp=%+v err=%v", resp, err)
		}
		return resp.Result.([]protocol.Location)
	}

	first := ask()
	if h.xrefCache.Len() != 1 {
		t.Fatalf("cache len=%d", h.xrefCache.Len())
	}
	second := ask()
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("first=%v second=%v", first, second)
	}
	if h.xrefCache.Len() != 1 {
		t.Fatalf("cache len=%d after repeat", h.xrefCache.Len())
	}

	// A new index generation misses the old entry.
	h.DB.Generation++
	ask()
	if h.xrefCache.Len() != 2 {
		t.Fatalf("cache len=%d after generation bump", h.xrefCache.Len())
	}
}

func TestDefinitionLinkSupport(t *testing.T) {
	conf := config.Default()
	conf.Client.LinkSupport = true
	h := NewMessageHandler(conf)
	openAndIndex(t, h)

	resp, err := runOne(t, h, request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":1,"character":0}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	links, ok := resp.Result.([]protocol.LocationLink)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if len(links) != 1 || links[0].TargetURI != "file:///src/a.cc" {
		t.Fatalf("links=%+v", links)
	}
}

func TestReferencesListUses(t *testing.T) {
	h := NewMessageHandler(nil)
	openAndIndex(t, h)

	resp, err := runOne(t, h, request("textDocument/references",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	locs, ok := resp.Result.([]protocol.Location)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if len(locs) != 2 {
		t.Fatalf("locations=%v", locs)
	}
}

func TestDocumentHighlightSameFileUses(t *testing.T) {
	h := NewMessageHandler(nil)
	openAndIndex(t, h)

	resp, err := runOne(t, h, request("textDocument/documentHighlight",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error != nil {
		t.Fatalf("resp=%+v", resp)
	}
	hls, ok := resp.Result.([]protocol.DocumentHighlight)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if len(hls) != 2 {
		t.Fatalf("highlights=%v", hls)
	}
	// Sorted by position: the declaration first, then the assignment.
	if hls[0].Range.Start.Line != 0 || hls[0].Range.Start.Character != 4 ||
		hls[1].Range.Start.Line != 1 || hls[1].Range.Start.Character != 0 {
		t.Fatalf("highlights=%v", hls)
	}
	for _, hl := range hls {
		if hl.Kind != protocol.DocumentHighlightText {
			t.Fatalf("kind=%d", hl.Kind)
		}
	}
}

func TestReplyLocationLinkDedupeSortCap(t *testing.T) {
	conf := config.Default()
	conf.Xref.MaxNum = 2
	h := NewMessageHandler(conf)

	var resp *protocol.Response
	reply := &ReplyOnce{ID: json.RawMessage("1"), Handler: h, Out: func(r protocol.Response) { resp = &r }}

	link := func(line int) protocol.LocationLink {
		return protocol.LocationLink{
			TargetURI: "file:///src/a.cc",
			TargetRange: protocol.Range{
				Start: protocol.Position{Line: line},
				End:   protocol.Position{Line: line, Character: 1},
			},
			TargetSelectionRange: protocol.Range{
				Start: protocol.Position{Line: line},
				End:   protocol.Position{Line: line, Character: 1},
			},
		}
	}
	reply.ReplyLocationLink([]protocol.LocationLink{link(9), link(2), link(2), link(5)})

	locs := resp.Result.([]protocol.Location)
	if len(locs) != 2 {
		t.Fatalf("cap not applied: %v", locs)
	}
	if locs[0].Range.Start.Line != 2 || locs[1].Range.Start.Line != 5 {
		t.Fatalf("sort/dedupe wrong: %v", locs)
	}
}

func TestDoubleReplyPanics(t *testing.T) {
	reply := &ReplyOnce{ID: json.RawMessage("1"), Out: func(protocol.Response) {}}
	reply.Reply("ok")
	defer func() {
		r := recover()
		if _, ok := r.(doubleReply); !ok {
			t.Fatalf("expected doubleReply panic, got %v", r)
		}
	}()
	reply.Reply("again")
}

func TestHandlerPanicIsolatedToInternalError(t *testing.T) {
	h := NewMessageHandler(nil)
	h.method2request["boom"] = func(params json.RawMessage, reply *ReplyOnce) error {
		panic("kaboom")
	}
	resp, err := runOne(t, h, request("boom", "{}"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InternalError {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestMissingReplyAnswersInternalError(t *testing.T) {
	h := NewMessageHandler(nil)
	h.method2request["quiet"] = func(params json.RawMessage, reply *ReplyOnce) error {
		return nil
	}
	resp, err := runOne(t, h, request("quiet", "{}"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InternalError {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestNotificationFailureDegradesToShowMessage(t *testing.T) {
	h := NewMessageHandler(nil)
	var shown []protocol.ShowMessageParam
	h.Notify = func(method string, params any) {
		if method == "window/showMessage" {
			shown = append(shown, params.(protocol.ShowMessageParam))
		}
	}

	// didChange on a file that was never opened fails inside the handler.
	err := h.Run(notification("textDocument/didChange",
		`{"textDocument":{"uri":"file:///src/nope.cc"},"contentChanges":[{"text":"x"}]}`), nil)
	if err != nil {
		t.Fatalf("notification failures must not escalate: %v", err)
	}
	if len(shown) != 1 || !strings.Contains(shown[0].Message, "textDocument/didChange") {
		t.Fatalf("shown=%+v", shown)
	}
}

func TestShutdownThenInfo(t *testing.T) {
	h := NewMessageHandler(nil)
	resp, err := runOne(t, h, request("shutdown", "null"))
	if err != nil || resp == nil || resp.Error != nil {
		t.Fatalf("shutdown resp=%+v err=%v", resp, err)
	}
	if !h.ShutdownRequested {
		t.Fatal("shutdown flag not set")
	}

	resp, err = runOne(t, h, request("$/info", "{}"))
	if err != nil || resp == nil || resp.Error != nil {
		t.Fatalf("$/info resp=%+v err=%v", resp, err)
	}
}

func TestExitNotificationInvokesExit(t *testing.T) {
	h := NewMessageHandler(nil)
	called := false
	h.Exit = func() { called = true }
	if err := h.Run(notification("exit", ""), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("exit hook not invoked")
	}
}
