package mock

import "github.com/fwojciec/docsrs"

var _ docsrs.PageParser = (*PageParser)(nil)

// PageParser is a mock implementation of docsrs.PageParser.
type PageParser struct {
	ParseFn func(page []byte) ([]docsrs.RawEntry, error)
}

func (p *PageParser) Parse(page []byte) ([]docsrs.RawEntry, error) {
	return p.ParseFn(page)
}
