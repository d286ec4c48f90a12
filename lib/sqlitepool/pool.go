// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/bureau-foundation/sqlitecache/lib/clock"
	"github.com/bureau-foundation/sqlitecache/lib/sqliteconn"
)

// ErrPoolClosed is returned by Take once Close has been called.
var ErrPoolClosed = errors.New("sqlitepool: pool closed")

// Borrower grants exclusive use of one connection per checkout. Every
// successful Take must be paired with exactly one Put of the same
// connection.
type Borrower interface {
	Take(ctx context.Context) (*sqliteconn.Connection, error)
	Put(conn *sqliteconn.Connection)
}

// Config holds the parameters for opening a connection pool. Path is
// required; all other fields have sensible defaults.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string

	// Mode is the access mode for every connection. The zero value is
	// read-only, which requires the file to exist.
	Mode sqliteconn.Mode

	// BusyTimeout is applied to every connection. Zero means lock
	// contention fails immediately with a BusyError.
	BusyTimeout time.Duration

	// PoolSize is the maximum number of connections. If zero or
	// negative, defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used. It is also passed to every connection.
	Logger *slog.Logger

	// Clock stamps checkouts and returns. If nil, the real clock is
	// used.
	Clock clock.Clock

	// OnConnect is called once per connection right after it opens.
	// Use it for schema creation or pragmas. If it returns an error
	// the connection is closed and the error is returned from Take.
	OnConnect func(conn *sqliteconn.Connection) error

	// Opener overrides the engine used to open connections. Nil uses
	// sqliteconn.OpenSQLite.
	Opener sqliteconn.Opener
}

// ConnectionStats describes one pooled connection. Statement cache
// figures are as of the connection's most recent Put: the pool never
// reads the cache of a connection that is checked out.
type ConnectionStats struct {
	Index        int
	UseCount     int
	Borrowed     bool
	LastReleased time.Time
	Statements   int
	Hits         int
	Misses       int
}

// Pool is a fixed-size pool of statement-caching connections.
//
// Pool is safe for concurrent use. Individual connections are not;
// each goroutine must Take its own connection and Put it back when
// done.
type Pool struct {
	config Config
	logger *slog.Logger
	clock  clock.Clock

	// slots holds one token per checked-out connection. Take blocks
	// sending into it when every connection is borrowed.
	slots chan struct{}
	// done is closed by Close to wake blocked Takes.
	done chan struct{}

	mu      sync.Mutex
	members []*member // members[i].conn.Index() == i
	closed  bool
}

type member struct {
	conn         *sqliteconn.Connection
	borrowed     bool
	takenAt      time.Time
	lastReleased time.Time
	cache        sqliteconn.Stats
}

var _ Borrower = (*Pool)(nil)

// Open validates the configuration and creates a pool. No connection
// is opened until the first Take. The caller must call Close when the
// pool is no longer needed.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	if cfg.BusyTimeout < 0 {
		return nil, fmt.Errorf("sqlitepool: BusyTimeout must not be negative, got %v", cfg.BusyTimeout)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.NumCPU()
		if cfg.PoolSize < 4 {
			cfg.PoolSize = 4
		}
	}

	cfg.Logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"mode", cfg.Mode.String(),
		"busy_timeout", cfg.BusyTimeout,
		"pool_size", cfg.PoolSize,
	)

	return &Pool{
		config: cfg,
		logger: cfg.Logger,
		clock:  cfg.Clock,
		slots:  make(chan struct{}, cfg.PoolSize),
		done:   make(chan struct{}),
	}, nil
}

// Size returns the maximum number of connections.
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// Take borrows a connection from the pool. Blocks until a connection
// is available, ctx is cancelled, or the pool is closed. The caller
// MUST call Put when done with the connection, typically via defer:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqliteconn.Connection, error) {
	select {
	case p.slots <- struct{}{}:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("sqlitepool: take: %w", ctx.Err())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		<-p.slots
		return nil, ErrPoolClosed
	}

	// Holding a slot guarantees fewer than PoolSize borrowers, so
	// either an idle connection exists or there is room to open one.
	chosen := p.leastUsedIdleLocked()
	if chosen == nil {
		opened, err := p.openLocked()
		if err != nil {
			<-p.slots
			return nil, err
		}
		chosen = opened
	}

	chosen.borrowed = true
	chosen.takenAt = p.clock.Now()
	chosen.conn.Increment()
	return chosen.conn, nil
}

// Put returns a connection to the pool. Safe to call with nil (no-op).
// Putting a connection that is not checked out from this pool is
// logged and ignored. After Put, the caller must not use the
// connection or any statement obtained from it.
func (p *Pool) Put(conn *sqliteconn.Connection) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	returned := p.memberLocked(conn)
	if returned == nil || !returned.borrowed {
		p.mu.Unlock()
		p.logger.Error("sqlite pool: put of a connection that is not checked out",
			"path", p.config.Path,
			"index", conn.Index(),
		)
		return
	}
	now := p.clock.Now()
	held := now.Sub(returned.takenAt)
	returned.borrowed = false
	returned.lastReleased = now
	// The borrower is handing the connection back, so this goroutine
	// is its sole user at this point.
	returned.cache = conn.CacheCounts()
	p.mu.Unlock()

	<-p.slots

	p.logger.Debug("sqlite connection returned",
		"index", conn.Index(),
		"held", held,
		"statements", returned.cache.StatementCount,
	)
}

// Stats returns one entry per opened connection, ordered by index.
func (p *Pool) Stats() []ConnectionStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]ConnectionStats, 0, len(p.members))
	for _, m := range p.members {
		stats = append(stats, ConnectionStats{
			Index:        m.conn.Index(),
			UseCount:     m.conn.UseCount(),
			Borrowed:     m.borrowed,
			LastReleased: m.lastReleased,
			Statements:   m.cache.StatementCount,
			Hits:         m.cache.Hits,
			Misses:       m.cache.Misses,
		})
	}
	return stats
}

// Close closes all connections in the pool, finalizing their cached
// statements. Blocks until all borrowed connections are returned.
// After Close, Take returns ErrPoolClosed. Closing twice is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	// Filling every slot means every borrower has called Put.
	for range p.config.PoolSize {
		p.slots <- struct{}{}
	}

	p.mu.Lock()
	members := p.members
	p.members = nil
	p.mu.Unlock()

	var errs []error
	for _, m := range members {
		if err := m.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.logger.Error("sqlite pool close error",
			"path", p.config.Path,
			"error", err,
		)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.config.Path, err)
	}
	p.logger.Info("sqlite pool closed",
		"path", p.config.Path,
		"connections", len(members),
	)
	return nil
}

// With takes a connection from borrower, calls fn with it, and puts it
// back whether or not fn fails.
func With(ctx context.Context, borrower Borrower, fn func(conn *sqliteconn.Connection) error) error {
	conn, err := borrower.Take(ctx)
	if err != nil {
		return err
	}
	defer borrower.Put(conn)
	return fn(conn)
}

// leastUsedIdleLocked returns the idle member with the lowest use
// count, lowest index first on ties, or nil if every member is
// borrowed.
func (p *Pool) leastUsedIdleLocked() *member {
	var chosen *member
	for _, m := range p.members {
		if m.borrowed {
			continue
		}
		if chosen == nil || m.conn.UseCount() < chosen.conn.UseCount() {
			chosen = m
		}
	}
	return chosen
}

// openLocked opens the next connection and runs OnConnect on it.
func (p *Pool) openLocked() (*member, error) {
	index := len(p.members)
	conn, err := sqliteconn.Open(p.config.Path, sqliteconn.Options{
		Mode:        p.config.Mode,
		BusyTimeout: p.config.BusyTimeout,
		Index:       index,
		Logger:      p.logger,
		Opener:      p.config.Opener,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening connection %d: %w", index, err)
	}

	if p.config.OnConnect != nil {
		if err := p.config.OnConnect(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}

	opened := &member{conn: conn}
	p.members = append(p.members, opened)
	return opened, nil
}

func (p *Pool) memberLocked(conn *sqliteconn.Connection) *member {
	index := conn.Index()
	if index < 0 || index >= len(p.members) || p.members[index].conn != conn {
		return nil
	}
	return p.members[index]
}
