package cache

import (
	"time"

	"github.com/okian/finbrief/pkg/logger"
)

// AnalysisOption applies a configuration option to the AnalysisCache.
type AnalysisOption func(*AnalysisCache)

// WithAnalysisClock overrides the time source; used by tests to control
// which day counts as "yesterday".
func WithAnalysisClock(clock func() time.Time) AnalysisOption {
	return func(c *AnalysisCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithAnalysisLogger sets a custom logger for the analysis cache.
func WithAnalysisLogger(log logger.Logger) AnalysisOption {
	return func(c *AnalysisCache) {
		if log != nil {
			c.log = log
		}
	}
}

// ReferenceOption applies a configuration option to the ReferenceCache.
type ReferenceOption func(*ReferenceCache)

// WithReferenceLogger sets a custom logger for the reference cache.
func WithReferenceLogger(log logger.Logger) ReferenceOption {
	return func(c *ReferenceCache) {
		if log != nil {
			c.log = log
		}
	}
}
