package mount

import (
	"os"
	"sync/atomic"
	"time"
)

// generationCounter is the process-scoped monotonic counter mixed into
// every mount's generation number. spec.md §9 calls this the only piece of
// global mutable state the core needs: a single atomic, initialized once,
// with no teardown.
var generationCounter uint64

// processBootTime is captured once at process start and folded into every
// generation number, so two mounts created by two different daemon
// invocations on the same pid (a wrapped-around pid) still disagree.
var processBootTime = time.Now().Unix()

// NextGeneration returns a new 64-bit mount generation:
// (pid<<48) | (boot-time<<16) | (monotonic-counter & 0xFFFF).
func NextGeneration() uint64 {
	counter := atomic.AddUint64(&generationCounter, 1) & 0xFFFF
	pid := uint64(os.Getpid()) & 0xFFFF
	boot := uint64(processBootTime) & 0xFFFFFFFF
	return (pid << 48) | (boot << 16) | counter
}
