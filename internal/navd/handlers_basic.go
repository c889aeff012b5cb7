package navd

import (
	"encoding/json"

	"codenav/internal/config"
	"codenav/internal/highlight"
	"codenav/internal/protocol"
	"codenav/internal/version"
)

type emptyParam struct{}

// initOptions is the subset of configuration a client may override through
// initializationOptions.
type initOptions struct {
	Xref *struct {
		MaxNum int `json:"maxNum"`
	} `json:"xref,omitempty"`
	Highlight *struct {
		Whitelist     []string `json:"whitelist,omitempty"`
		Blacklist     []string `json:"blacklist,omitempty"`
		LargeFileSize *int     `json:"largeFileSize,omitempty"`
		RangeFormat   string   `json:"rangeFormat,omitempty"`
	} `json:"highlight,omitempty"`
}

func (h *MessageHandler) initialize(p *protocol.InitializeParams, reply *ReplyOnce) error {
	h.Conf.Client.LinkSupport = p.Capabilities.TextDocument.Definition.LinkSupport

	if len(p.InitializationOptions) > 0 {
		var opts initOptions
		if err := json.Unmarshal(p.InitializationOptions, &opts); err != nil {
			return &paramError{method: "initialize", detail: "expected object at initializationOptions"}
		}
		if opts.Xref != nil && opts.Xref.MaxNum > 0 {
			h.Conf.Xref.MaxNum = opts.Xref.MaxNum
		}
		if opts.Highlight != nil {
			hc := &h.Conf.Highlight
			if opts.Highlight.Whitelist != nil {
				hc.Whitelist = opts.Highlight.Whitelist
			}
			if opts.Highlight.Blacklist != nil {
				hc.Blacklist = opts.Highlight.Blacklist
			}
			if opts.Highlight.LargeFileSize != nil {
				hc.LargeFileSize = *opts.Highlight.LargeFileSize
			}
			if opts.Highlight.RangeFormat != "" {
				hc.RangeFormat = opts.Highlight.RangeFormat
			}
			if err := h.Conf.Validate(); err != nil {
				return &paramError{method: "initialize", detail: err.Error()}
			}
			// The glob matcher is derived state; rebuild it with the
			// session's configuration.
			h.hl = highlight.NewEngine(*hc, func(method string, params any) {
				h.Notify(method, params)
			})
		}
	}

	reply.Reply(protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync:         1, // full
			DefinitionProvider:       true,
			ReferencesProvider:       true,
			WorkspaceSymbolProvider:  true,
			DocumentHighlightSupport: true,
		},
	})
	return nil
}

func (h *MessageHandler) initialized(p *emptyParam) error {
	return nil
}

func (h *MessageHandler) shutdown(p *emptyParam, reply *ReplyOnce) error {
	h.ShutdownRequested = true
	reply.Reply(nil)
	return nil
}

func (h *MessageHandler) exit(p *emptyParam) error {
	if h.Exit != nil {
		h.Exit()
	}
	return nil
}

type infoResult struct {
	Version string `json:"version"`
	DB      struct {
		Files int `json:"files"`
		Funcs int `json:"funcs"`
		Types int `json:"types"`
		Vars  int `json:"vars"`
	} `json:"db"`
	RangeFormat string `json:"rangeFormat"`
}

func (h *MessageHandler) info(p *emptyParam, reply *ReplyOnce) error {
	var res infoResult
	res.Version = version.String()
	res.DB.Files = len(h.DB.Files)
	res.DB.Funcs = len(h.DB.Funcs)
	res.DB.Types = len(h.DB.Types)
	res.DB.Vars = len(h.DB.Vars)
	res.RangeFormat = h.Conf.Highlight.RangeFormat
	if res.RangeFormat == "" {
		res.RangeFormat = config.RangeFormatOffset
	}
	reply.Reply(res)
	return nil
}
