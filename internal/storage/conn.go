package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Conn is the single shared Client of the process. It is established on
// first use; concurrent first callers share one dial attempt. Once set the
// client is never replaced. A failed dial leaves it unset so the next call
// dials again.
type Conn struct {
	dial   Dialer
	logger *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	client Client
	closed bool
}

// NewConn returns an unestablished connection that dials with dial.
func NewConn(dial Dialer, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{dial: dial, logger: logger}
}

// Client returns the shared client, establishing it if needed.
func (c *Conn) Client(ctx context.Context) (Client, error) {
	if cl, err := c.current(); cl != nil || err != nil {
		return cl, err
	}

	v, err, shared := c.group.Do("connect", func() (interface{}, error) {
		if cl, err := c.current(); cl != nil || err != nil {
			return cl, err
		}

		c.logger.Info("connecting to database")
		// The dial outlives the caller that triggered it; it is shared.
		cl, err := c.dial(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Error("database connection failed", "error", err)
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = cl.Close(context.WithoutCancel(ctx))
			return nil, ErrClosed
		}
		c.client = cl
		c.logger.Info("database connected")
		return cl, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if shared {
		c.logger.Debug("joined in-progress database connection")
	}
	return v.(Client), nil
}

func (c *Conn) current() (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.client, nil
}

// Established reports whether a client has been set.
func (c *Conn) Established() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Close closes the client if one was established. Later calls to Client
// fail with ErrClosed.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	cl := c.client
	already := c.closed
	c.closed = true
	c.mu.Unlock()

	if already || cl == nil {
		return nil
	}
	c.logger.Info("closing database connection")
	if err := cl.Close(ctx); err != nil {
		return fmt.Errorf("close database connection: %w", err)
	}
	return nil
}
