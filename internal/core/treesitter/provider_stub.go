//go:build !treesitter || !cgo

package treesitter

type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Extract(path string, src []byte) (*Result, error) {
	return nil, ErrDisabled
}
