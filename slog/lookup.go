package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docsrs"
)

// Ensure LoggingLookupService implements docsrs.LookupService.
var _ docsrs.LookupService = (*LoggingLookupService)(nil)

// LoggingLookupService wraps a LookupService with logging.
type LoggingLookupService struct {
	next   docsrs.LookupService
	logger *slog.Logger
}

// NewLoggingLookupService creates a new LoggingLookupService.
func NewLoggingLookupService(next docsrs.LookupService, logger *slog.Logger) *LoggingLookupService {
	return &LoggingLookupService{next: next, logger: logger}
}

// Lookup delegates to the wrapped service and logs the operation.
func (s *LoggingLookupService) Lookup(ctx context.Context, req docsrs.LookupRequest) (result *docsrs.LookupResult, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"package", req.Name,
			"version", req.Version,
			"kind", string(req.Kind),
			"refresh", req.Refresh,
			"duration", time.Since(begin),
		}
		if err != nil {
			s.logger.Warn("lookup", append(attrs, "code", docsrs.ErrorCode(err), "err", err)...)
			return
		}
		s.logger.Info("lookup", append(attrs, "count", len(result.Resources), "stale", result.Stale)...)
	}(time.Now())
	return s.next.Lookup(ctx, req)
}
