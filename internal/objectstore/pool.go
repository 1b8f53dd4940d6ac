package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ConnectionPool manages a pool of S3 client connections used to fetch
// trees and blobs.
type ConnectionPool struct {
	mu          sync.RWMutex
	connections chan *s3.Client
	factory     func() (*s3.Client, error)
	maxSize     int
	currentSize int
	closed      bool

	healthCheck *poolHealthChecker
	stats       PoolStats
}

// PoolStats tracks connection pool statistics.
type PoolStats struct {
	Active      int
	Idle        int
	Total       int
	MaxSize     int
	Hits        int64
	Misses      int64
	Timeouts    int64
	Errors      int64
	Created     int64
	Destroyed   int64
	LastCreated time.Time
	LastError   string
	LastErrorAt time.Time
}

type poolHealthChecker struct {
	pool     *ConnectionPool
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopped  chan struct{}
}

// NewConnectionPool creates a connection pool that lazily creates up to
// maxSize clients via factory.
func NewConnectionPool(maxSize int, factory func() (*s3.Client, error)) (*ConnectionPool, error) {
	if maxSize <= 0 {
		maxSize = 8
	}
	if factory == nil {
		return nil, fmt.Errorf("objectstore: connection factory cannot be nil")
	}

	pool := &ConnectionPool{
		connections: make(chan *s3.Client, maxSize),
		factory:     factory,
		maxSize:     maxSize,
		stats:       PoolStats{MaxSize: maxSize},
	}

	pool.healthCheck = &poolHealthChecker{
		pool:     pool,
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go pool.healthCheck.run()

	return pool, nil
}

// Get retrieves a connection from the pool, creating one if none is idle
// and the pool has not reached maxSize.
func (p *ConnectionPool) Get() *s3.Client {
	return p.GetWithTimeout(30 * time.Second)
}

// GetWithTimeout retrieves a connection, waiting up to timeout for an idle
// one before falling back to creating a new one.
func (p *ConnectionPool) GetWithTimeout(timeout time.Duration) *s3.Client {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		p.mu.Lock()
		p.stats.Hits++
		p.stats.Active++
		p.mu.Unlock()
		return conn

	case <-time.After(timeout):
		p.mu.Lock()
		p.stats.Timeouts++
		p.mu.Unlock()

		client, err := p.factory()
		if err != nil {
			return nil
		}
		return client

	default:
		if p.canCreateConnection() {
			conn, err := p.createConnection()
			if err == nil {
				return conn
			}

			p.mu.Lock()
			p.stats.Errors++
			p.stats.LastError = err.Error()
			p.stats.LastErrorAt = time.Now()
			p.mu.Unlock()
		}

		p.mu.Lock()
		p.stats.Misses++
		p.mu.Unlock()

		select {
		case conn := <-p.connections:
			p.mu.Lock()
			p.stats.Hits++
			p.stats.Active++
			p.mu.Unlock()
			return conn
		case <-time.After(timeout):
			p.mu.Lock()
			p.stats.Timeouts++
			p.mu.Unlock()
			client, _ := p.factory()
			return client
		}
	}
}

// Put returns a connection to the pool.
func (p *ConnectionPool) Put(conn *s3.Client) {
	if conn == nil {
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()

	select {
	case p.connections <- conn:
		p.mu.Lock()
		p.stats.Active--
		p.mu.Unlock()
	default:
		p.mu.Lock()
		p.stats.Destroyed++
		p.currentSize--
		p.mu.Unlock()
	}
}

// Stats returns current pool statistics.
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := p.stats
	stats.Total = p.currentSize
	stats.Idle = len(p.connections)
	return stats
}

// Close shuts down the health checker and drains the pool.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.healthCheck.stopCh)
	<-p.healthCheck.stopped

	close(p.connections)
	for range p.connections {
	}

	return nil
}

func (p *ConnectionPool) canCreateConnection() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentSize < p.maxSize && !p.closed
}

func (p *ConnectionPool) createConnection() (*s3.Client, error) {
	conn, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.currentSize++
	p.stats.Created++
	p.stats.Active++
	p.stats.LastCreated = time.Now()
	p.mu.Unlock()

	return conn, nil
}

func (hc *poolHealthChecker) run() {
	defer close(hc.stopped)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stopCh:
			return
		case <-ticker.C:
			hc.checkHealth()
		}
	}
}

func (hc *poolHealthChecker) checkHealth() {
	testCount := 3
	if hc.pool.Stats().Idle < testCount {
		testCount = hc.pool.Stats().Idle
	}

	var unhealthy int
	for i := 0; i < testCount; i++ {
		conn := hc.pool.GetWithTimeout(time.Second)
		if conn == nil {
			continue
		}

		if hc.testConnection(conn) {
			hc.pool.Put(conn)
			continue
		}

		unhealthy++
		hc.pool.mu.Lock()
		hc.pool.currentSize--
		hc.pool.stats.Destroyed++
		hc.pool.mu.Unlock()
	}

	if unhealthy > testCount/2 {
		hc.pool.mu.Lock()
		hc.pool.stats.LastError = fmt.Sprintf("found %d unhealthy connections", unhealthy)
		hc.pool.stats.LastErrorAt = time.Now()
		hc.pool.mu.Unlock()
	}
}

func (hc *poolHealthChecker) testConnection(conn *s3.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	_, err := conn.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}
