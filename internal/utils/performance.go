// Package utils holds small cross-cutting helpers.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold is the duration above which a timed operation is logged as a
// warning instead of a debug line.
const slowThreshold = 10 * time.Second

// OperationTimer measures the duration of an operation in a defer-friendly
// way:
//
//	defer utils.OperationTimer("mark_to_market", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		if duration > slowThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration_ms", duration).
				Msg("Slow operation")
			return
		}

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")
	}
}
