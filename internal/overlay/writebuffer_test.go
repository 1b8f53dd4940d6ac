package overlay

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedWriter_CoalescesContiguousWrites(t *testing.T) {
	var mu sync.Mutex
	var flushedKey string
	var flushedData []byte
	var flushedOffset int64

	w, err := newBufferedWriter(&bufferedWriterConfig{
		MaxBufferSize:  1024,
		MaxBuffers:     8,
		FlushThreshold: 1024,
	}, func(key string, data []byte, offset int64) error {
		mu.Lock()
		defer mu.Unlock()
		flushedKey, flushedData, flushedOffset = key, append([]byte(nil), data...), offset
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	res := w.Write("f1", 0, []byte("hello "))
	require.NoError(t, res.Error)
	res = w.Write("f1", 6, []byte("world"))
	require.NoError(t, res.Error)

	require.NoError(t, w.Sync(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "f1", flushedKey)
	assert.Equal(t, "hello world", string(flushedData))
	assert.Equal(t, int64(0), flushedOffset)
}

func TestBufferedWriter_NonContiguousRejected(t *testing.T) {
	w, err := newBufferedWriter(nil, func(string, []byte, int64) error { return nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	res := w.Write("f1", 0, []byte("abc"))
	require.NoError(t, res.Error)

	res = w.Write("f1", 50, []byte("xyz"))
	assert.Error(t, res.Error)
}

func TestBufferedWriter_FlushThresholdTriggersFlush(t *testing.T) {
	flushed := make(chan struct{}, 1)
	w, err := newBufferedWriter(&bufferedWriterConfig{
		MaxBufferSize:  1024,
		MaxBuffers:     8,
		FlushThreshold: 4,
	}, func(string, []byte, int64) error {
		select {
		case flushed <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	res := w.Write("f1", 0, []byte("abcdef"))
	require.NoError(t, res.Error)

	require.NoError(t, w.Sync(context.Background()))
	select {
	case <-flushed:
	default:
		t.Fatal("expected flush to have fired")
	}
}

func TestBufferedWriter_StatsTracksPending(t *testing.T) {
	w, err := newBufferedWriter(&bufferedWriterConfig{
		MaxBufferSize:  1024,
		MaxBuffers:     8,
		FlushThreshold: 1 << 20,
	}, func(string, []byte, int64) error { return nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.Write("f1", 0, []byte("abc"))
	stats := w.Stats()
	assert.Equal(t, 1, stats.PendingWrites)
	assert.Equal(t, int64(3), stats.PendingBytes)
}
