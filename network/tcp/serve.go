package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/errdefs"
)

// Listen binds addr. Failure to bind is reported as a network error.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Network("listen %s: %w", addr, err)
	}

	return ln, nil
}

// Serve accepts connections on ln until ctx is done and runs handler for each
// one in its own goroutine. The handler's ctx is cancelled once Serve stops
// accepting. Serve closes ln and returns only after every handler has.
func Serve(ctx context.Context, ln net.Listener, handler func(ctx context.Context, conn net.Conn)) error {
	ctx, cancel := context.WithCancel(ctx)
	handlers := sync.WaitGroup{}
	defer handlers.Wait()
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay = min(2*delay, time.Second)
				}

				logger.Warnf("[tcp][%s] accept error: %v, retrying in %s", ln.Addr(), err, delay)
				time.Sleep(delay)
				continue
			}

			return errdefs.Network("accept %s: %w", ln.Addr(), err)
		}
		delay = 0

		logger.Debugf("[tcp][%s] client connected: %s", ln.Addr(), conn.RemoteAddr())

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			handler(ctx, conn)
		}()
	}
}
