package navd

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"codenav/internal/config"
	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func indexedUpdate(path, content string) *querydb.FileUpdate {
	return &querydb.FileUpdate{
		Path:    path,
		Content: content,
		Symbols: []querydb.SymbolData{
			{USR: 7, Kind: querydb.KindVar, Name: "x",
				SymKind: protocol.SymbolKindVariable, Spell: position.NewRange(0, 4, 0, 5)},
		},
		Occurrences: []querydb.Occurrence{
			{USR: 7, Kind: querydb.KindVar, Range: position.NewRange(0, 4, 0, 5), Refcnt: 1},
		},
	}
}

func TestBacklogAnsweredAfterUpdate(t *testing.T) {
	s := NewServer(Options{Conf: config.Default()})
	h := s.Handler()

	if err := h.Run(notification("textDocument/didOpen",
		`{"textDocument":{"uri":"file:///src/a.cc","version":1,"text":"int x;\n"}}`), nil); err != nil {
		t.Fatalf("didOpen: %v", err)
	}

	var resp *protocol.Response
	out := func(r protocol.Response) { resp = &r }
	s.dispatch(request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`), out, time.Now())

	if resp != nil {
		t.Fatalf("request should be parked, got %+v", resp)
	}
	if len(s.backlog) != 1 {
		t.Fatalf("backlog=%d", len(s.backlog))
	}

	s.applyUpdate(indexedUpdate("/src/a.cc", "int x;\n"))
	s.retryBacklog()

	if resp == nil || resp.Error != nil {
		t.Fatalf("resp=%+v", resp)
	}
	locs, ok := resp.Result.([]protocol.Location)
	if !ok || len(locs) != 1 {
		t.Fatalf("result=%v", resp.Result)
	}
	if len(s.backlog) != 0 {
		t.Fatalf("backlog not drained: %d", len(s.backlog))
	}
}

func TestBacklogOverdueAnsweredWithError(t *testing.T) {
	s := NewServer(Options{Conf: config.Default()})
	h := s.Handler()

	if err := h.Run(notification("textDocument/didOpen",
		`{"textDocument":{"uri":"file:///src/a.cc","version":1,"text":"int x;\n"}}`), nil); err != nil {
		t.Fatalf("didOpen: %v", err)
	}

	var resp *protocol.Response
	out := func(r protocol.Response) { resp = &r }
	s.dispatch(request("textDocument/definition",
		`{"textDocument":{"uri":"file:///src/a.cc"},"position":{"line":0,"character":4}}`), out, time.Now())
	if len(s.backlog) != 1 {
		t.Fatalf("backlog=%d", len(s.backlog))
	}

	// Age the entry past the retry window without indexing the file.
	s.backlog[0].added = time.Now().Add(-OverdueAfter - time.Second)
	s.retryBacklog()

	if resp == nil || resp.Error == nil || resp.Error.Code != protocol.InvalidRequest {
		t.Fatalf("resp=%+v", resp)
	}
	if h.Overdue {
		t.Fatal("overdue flag must be reset after the retry pass")
	}
}

func TestApplyUpdateRefreshesOpenBuffer(t *testing.T) {
	s := NewServer(Options{Conf: config.Default()})
	h := s.Handler()

	var published []string
	h.Notify = func(method string, params any) { published = append(published, method) }

	if err := h.Run(notification("textDocument/didOpen",
		`{"textDocument":{"uri":"file:///src/a.cc","version":1,"text":"int x;\n"}}`), nil); err != nil {
		t.Fatalf("didOpen: %v", err)
	}

	s.applyUpdate(indexedUpdate("/src/a.cc", "int x;\n"))

	wf := h.WFiles.GetFile("/src/a.cc")
	if wf == nil || len(wf.IndexLines) == 0 || wf.IndexLines[0] != "int x;" {
		t.Fatalf("index lines not refreshed: %+v", wf)
	}

	var sawHighlight bool
	for _, m := range published {
		if m == "$/publishSemanticHighlight" {
			sawHighlight = true
		}
	}
	if !sawHighlight {
		t.Fatalf("published=%v", published)
	}
}

func TestServerOverTCP(t *testing.T) {
	conf := config.Default()
	conf.Listen = "127.0.0.1:0"
	s := NewServer(Options{Conf: conf})
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	var addr string
	for i := 0; i < 100; i++ {
		if addr = s.Addr(); addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never started listening")
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	// Garbage is answered with a parse error, then the session stays up.
	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := ReadOneLine(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var parseResp protocol.Response
	if err := json.Unmarshal(line, &parseResp); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if parseResp.Error == nil || parseResp.Error.Code != protocol.ParseError {
		t.Fatalf("resp=%+v", parseResp)
	}

	init := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":"file:///src"}}` + "\n"
	if _, err := conn.Write([]byte(init)); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err = ReadOneLine(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var initResp protocol.Response
	if err := json.Unmarshal(line, &initResp); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if initResp.Error != nil {
		t.Fatalf("resp=%+v", initResp)
	}
	if string(initResp.ID) != "1" {
		t.Fatalf("id=%s", initResp.ID)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
