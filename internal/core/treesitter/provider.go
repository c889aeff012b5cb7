//go:build treesitter && cgo

package treesitter

import (
	"path/filepath"
	"strings"
)

type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Extract(path string, src []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	switch ext {
	case ".go":
		return extractGo(src)
	case ".c":
		return extractC(src)
	case ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx":
		return extractCPP(src)
	case ".h":
		// Prefer C++ for headers; it can usually parse C too.
		return extractCPP(src)
	default:
		return nil, ErrUnsupported
	}
}
