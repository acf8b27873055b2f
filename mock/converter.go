package mock

import "github.com/fwojciec/docsrs"

var _ docsrs.Converter = (*Converter)(nil)

// Converter is a mock implementation of docsrs.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
