//go:build !mqdebug

package mqueue

import "github.com/baaaht/mqueue/internal/logger"

// invariant reports a broken internal invariant. Release builds log and continue.
func invariant(log *logger.Logger, ok bool, msg string, args ...any) {
	if ok {
		return
	}
	log.Error("Invariant violated: "+msg, args...)
}
