package navd

import (
	"codenav/internal/protocol"
)

type symbolInformation struct {
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	Location      protocol.Location `json:"location"`
	ContainerName string            `json:"containerName,omitempty"`
}

func (h *MessageHandler) workspaceSymbol(p *protocol.WorkspaceSymbolParam, reply *ReplyOnce) error {
	if h.Search == nil {
		reply.Reply([]symbolInformation{})
		return nil
	}
	limit := p.Limit
	if limit <= 0 || limit > h.Conf.Xref.MaxNum {
		limit = h.Conf.Xref.MaxNum
	}
	hits, err := h.Search.Search(p.Query, limit)
	if err != nil {
		return err
	}
	out := make([]symbolInformation, 0, len(hits))
	for _, hit := range hits {
		out = append(out, symbolInformation{
			Name:          hit.Name,
			Kind:          hit.Kind,
			ContainerName: hit.Detailed,
			Location: protocol.Location{
				URI: protocol.URIFromPath(hit.Path),
				Range: protocol.Range{
					Start: protocol.Position{Line: hit.Line, Character: hit.Char},
					End:   protocol.Position{Line: hit.Line, Character: hit.Char + len(hit.Name)},
				},
			},
		})
	}
	reply.Reply(out)
	return nil
}
