package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/docsrs"
)

// Ensure LoggingParser implements docsrs.PageParser.
var _ docsrs.PageParser = (*LoggingParser)(nil)

// LoggingParser wraps a PageParser with debug logging.
type LoggingParser struct {
	next   docsrs.PageParser
	logger *slog.Logger
}

// NewLoggingParser creates a new LoggingParser.
func NewLoggingParser(next docsrs.PageParser, logger *slog.Logger) *LoggingParser {
	return &LoggingParser{next: next, logger: logger}
}

// Parse delegates to the wrapped parser and logs the operation.
func (p *LoggingParser) Parse(page []byte) (entries []docsrs.RawEntry, err error) {
	defer func(begin time.Time) {
		p.logger.Debug("parse",
			"bytes", len(page),
			"entries", len(entries),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return p.next.Parse(page)
}
