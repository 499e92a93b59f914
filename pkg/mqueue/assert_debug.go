//go:build mqdebug

package mqueue

import (
	"fmt"

	"github.com/baaaht/mqueue/internal/logger"
)

// invariant reports a broken internal invariant. Debug builds abort.
func invariant(log *logger.Logger, ok bool, msg string, args ...any) {
	if ok {
		return
	}
	log.Error("Invariant violated: "+msg, args...)
	panic(fmt.Sprintf("mqueue: invariant violated: %s %v", msg, args))
}
