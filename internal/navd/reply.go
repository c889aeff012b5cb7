package navd

import (
	"encoding/json"
	"sort"

	"codenav/internal/protocol"
)

// doubleReply is the panic payload raised when a ReplyOnce is invoked
// twice. Sending two responses for one request id is a programming error,
// not a runtime condition, so it is made loud instead of being swallowed.
type doubleReply struct {
	ID string
}

// ReplyOnce wraps one pending request id. It becomes inert after its first
// invocation.
type ReplyOnce struct {
	ID      json.RawMessage
	Handler *MessageHandler
	Out     func(protocol.Response)

	sent bool
}

func (r *ReplyOnce) Sent() bool { return r != nil && r.sent }

func (r *ReplyOnce) send(resp protocol.Response) {
	if r.sent {
		panic(doubleReply{ID: string(r.ID)})
	}
	r.sent = true
	resp.JSONRPC = "2.0"
	resp.ID = r.ID
	if r.Out != nil {
		r.Out(resp)
	}
}

func (r *ReplyOnce) Reply(result any) {
	r.send(protocol.Response{Result: result})
}

func (r *ReplyOnce) Error(code protocol.ErrorCode, message string) {
	r.send(protocol.Response{Error: &protocol.ErrorObject{Code: code, Message: message}})
}

// NotOpened is the canned error for operations on a file the client never
// declared open.
func (r *ReplyOnce) NotOpened(path string) {
	r.Error(protocol.InvalidRequest, path+" is not opened")
}

// ReplyLocationLink sorts, dedupes and caps the result list, then emits
// either the rich link shape or plain locations depending on the client's
// linkSupport capability recorded at initialize time.
func (r *ReplyOnce) ReplyLocationLink(result []protocol.LocationLink) {
	sort.Slice(result, func(i, j int) bool {
		return result[i].Compare(result[j]) < 0
	})
	out := result[:0]
	for i, link := range result {
		if i == 0 || link.Compare(result[i-1]) != 0 {
			out = append(out, link)
		}
	}
	result = out

	maxNum := 0
	if r.Handler != nil && r.Handler.Conf != nil {
		maxNum = r.Handler.Conf.Xref.MaxNum
	}
	if maxNum > 0 && len(result) > maxNum {
		result = result[:maxNum]
	}

	if r.Handler != nil && r.Handler.Conf != nil && r.Handler.Conf.Client.LinkSupport {
		r.Reply(result)
		return
	}
	locations := make([]protocol.Location, 0, len(result))
	for _, link := range result {
		locations = append(locations, link.Location())
	}
	r.Reply(locations)
}
