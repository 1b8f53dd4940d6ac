package overlay

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// bufferedWriter coalesces small, contiguous writes to the same overlay
// inode before flushing them to disk, so a sequence of small FUSE writes to
// one file doesn't turn into one syscall per write.
type bufferedWriter struct {
	mu      sync.RWMutex
	config  *bufferedWriterConfig
	buffers map[string]*pendingBuffer
	stats   bufferedWriterStats
	flushCh chan string
	stopCh  chan struct{}
	stopped chan struct{}
}

type bufferedWriterConfig struct {
	MaxBufferSize  int64
	MaxBuffers     int
	FlushInterval  time.Duration
	FlushThreshold int64
	SyncOnClose    bool
}

type bufferedWriterStats struct {
	TotalWrites   uint64
	TotalFlushes  uint64
	TotalBytes    int64
	PendingWrites int
	PendingBytes  int64
	Errors        uint64
	LastFlush     time.Time
}

type pendingBuffer struct {
	key        string
	data       []byte
	offset     int64
	lastWrite  time.Time
	lastAccess time.Time
	dirty      bool
	flushing   bool
}

// writeResult reports the outcome of a buffered write.
type writeResult struct {
	Buffered bool
	Error    error
}

// flushFunc applies a coalesced write to durable storage.
type flushFunc func(key string, data []byte, offset int64) error

func defaultBufferedWriterConfig() *bufferedWriterConfig {
	return &bufferedWriterConfig{
		MaxBufferSize:  4 * 1024 * 1024,
		MaxBuffers:     4096,
		FlushInterval:  5 * time.Second,
		FlushThreshold: 256 * 1024,
		SyncOnClose:    true,
	}
}

func newBufferedWriter(config *bufferedWriterConfig, flush flushFunc) (*bufferedWriter, error) {
	if config == nil {
		config = defaultBufferedWriterConfig()
	}
	if config.MaxBuffers <= 0 {
		config.MaxBuffers = 4096
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	w := &bufferedWriter{
		config:  config,
		buffers: make(map[string]*pendingBuffer),
		flushCh: make(chan string, config.MaxBuffers),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go w.flushLoop(flush)
	return w, nil
}

// Write buffers data at offset under key and schedules a flush once the
// buffer crosses the flush threshold. A write that is non-contiguous with
// what's already buffered is rejected with an error.
func (w *bufferedWriter) Write(key string, offset int64, data []byte) writeResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.TotalWrites++
	w.stats.TotalBytes += int64(len(data))

	buf, exists := w.buffers[key]
	if !exists {
		if len(w.buffers) >= w.config.MaxBuffers {
			w.evictLRULocked()
		}
		buf = &pendingBuffer{key: key, data: make([]byte, 0, len(data)), offset: offset, lastWrite: time.Now(), lastAccess: time.Now()}
		w.buffers[key] = buf
	}
	buf.lastAccess = time.Now()

	if !w.canCoalesce(buf, offset, data) {
		return writeResult{Error: fmt.Errorf("overlay: write not contiguous with buffered range for %q", key)}
	}

	if len(buf.data) == 0 {
		buf.offset = offset
	}
	buf.data = append(buf.data, data...)
	buf.lastWrite = time.Now()
	buf.dirty = true

	if int64(len(buf.data)) >= w.config.FlushThreshold {
		w.scheduleFlushLocked(key)
	}

	return writeResult{Buffered: true}
}

func (w *bufferedWriter) canCoalesce(buf *pendingBuffer, offset int64, data []byte) bool {
	if int64(len(buf.data))+int64(len(data)) > w.config.MaxBufferSize {
		return false
	}
	if len(buf.data) == 0 {
		return true
	}
	return offset == buf.offset+int64(len(buf.data))
}

func (w *bufferedWriter) scheduleFlushLocked(key string) {
	select {
	case w.flushCh <- key:
	default:
	}
}

func (w *bufferedWriter) evictLRULocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, buf := range w.buffers {
		if first || buf.lastAccess.Before(oldestTime) {
			oldestKey, oldestTime, first = key, buf.lastAccess, false
		}
	}
	if oldestKey != "" {
		w.scheduleFlushLocked(oldestKey)
	}
}

func (w *bufferedWriter) flushLoop(flush flushFunc) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			w.mu.RLock()
			keys := make([]string, 0, len(w.buffers))
			for key := range w.buffers {
				keys = append(keys, key)
			}
			w.mu.RUnlock()
			for _, key := range keys {
				w.flushBuffer(key, flush)
			}
			return
		case key := <-w.flushCh:
			w.flushBuffer(key, flush)
		case <-ticker.C:
			w.flushStale(flush)
		}
	}
}

func (w *bufferedWriter) flushBuffer(key string, flush flushFunc) {
	w.mu.Lock()
	buf, exists := w.buffers[key]
	if !exists || !buf.dirty || buf.flushing {
		w.mu.Unlock()
		return
	}
	buf.flushing = true
	data := make([]byte, len(buf.data))
	copy(data, buf.data)
	offset := buf.offset
	w.mu.Unlock()

	var err error
	if flush != nil {
		err = flush(key, data, offset)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		delete(w.buffers, key)
		w.stats.TotalFlushes++
		w.stats.LastFlush = time.Now()
	} else {
		if buf, still := w.buffers[key]; still {
			buf.flushing = false
		}
		w.stats.Errors++
	}
}

func (w *bufferedWriter) flushStale(flush flushFunc) {
	w.mu.RLock()
	stale := make([]string, 0)
	now := time.Now()
	for key, buf := range w.buffers {
		if buf.dirty && !buf.flushing && now.Sub(buf.lastWrite) > w.config.FlushInterval {
			stale = append(stale, key)
		}
	}
	w.mu.RUnlock()

	for _, key := range stale {
		w.flushBuffer(key, flush)
	}
}

// Sync blocks until all currently buffered writes have been flushed.
func (w *bufferedWriter) Sync(ctx context.Context) error {
	w.mu.Lock()
	keys := make([]string, 0, len(w.buffers))
	for key := range w.buffers {
		keys = append(keys, key)
	}
	w.mu.Unlock()

	for _, key := range keys {
		w.mu.RLock()
		_, exists := w.buffers[key]
		w.mu.RUnlock()
		if exists {
			w.scheduleFlushLocked(key)
		}
	}

	deadline := time.Now().Add(w.config.FlushInterval*2 + time.Second)
	for {
		w.mu.RLock()
		pending := len(w.buffers)
		w.mu.RUnlock()
		if pending == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("overlay: sync timed out with %d buffers still pending", pending)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (w *bufferedWriter) Stats() bufferedWriterStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats := w.stats
	stats.PendingWrites = len(w.buffers)
	stats.PendingBytes = 0
	for _, buf := range w.buffers {
		stats.PendingBytes += int64(len(buf.data))
	}
	return stats
}

func (w *bufferedWriter) Close() error {
	if w.config.SyncOnClose {
		if err := w.Sync(context.Background()); err != nil {
			return err
		}
	}
	close(w.stopCh)
	<-w.stopped
	return nil
}
