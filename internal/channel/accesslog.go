package channel

import "sync"

// AccessLog is the Go analogue of EdenMount's ProcessAccessLog: a per-pid
// counter of filesystem operations serviced through a channel, queried by
// getProcessAccessLog. Every Channel implementation owns one; which pids
// ever get recorded into it depends on how much caller identity the
// underlying protocol surfaces (FUSE hands back a real caller pid per
// request, NFS and the projection driver do not, so their logs stay empty).
type AccessLog struct {
	mu     sync.Mutex
	counts map[uint32]int64
}

// NewAccessLog returns an empty AccessLog.
func NewAccessLog() *AccessLog {
	return &AccessLog{counts: make(map[uint32]int64)}
}

// RecordAccess increments pid's operation count by one.
func (a *AccessLog) RecordAccess(pid uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[pid]++
}

// AccessCounts returns a snapshot of per-pid operation counts.
func (a *AccessLog) AccessCounts() map[uint32]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uint32]int64, len(a.counts))
	for pid, n := range a.counts {
		out[pid] = n
	}
	return out
}
