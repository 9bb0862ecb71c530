package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-zoox/logger"
	"github.com/gorilla/websocket"
)

// DefaultPath is where the server accepts tunnel upgrades.
const DefaultPath = "/ws"

// Handler upgrades requests on path and passes each websocket to onConnect,
// which owns it for the rest of its life.
func Handler(path string, onConnect func(conn *websocket.Conn, r *http.Request)) http.Handler {
	if path == "" {
		path = DefaultPath
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
		// tunnel clients are not browsers
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("[ws][%s] failed to upgrade: %v", r.RemoteAddr, err)
			return
		}

		onConnect(conn, r)
	})

	return mux
}

// Serve runs an HTTP server for handler on ln until ctx is done. Request
// contexts derive from ctx. Serve returns only after every handler has,
// including those whose connection was hijacked for a websocket, which
// Shutdown does not wait for.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handlers := &tracker{}
	server := &http.Server{
		Handler:           handlers.wrap(handler),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	shutdown := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(shutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	})

	err := server.Serve(ln)
	if stop() {
		// stopped without ctx, e.g. the listener failed
		server.Close()
	} else {
		<-shutdown
	}

	cancel()
	handlers.wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// tracker counts running handlers. Once wait has been called, new requests
// are turned away so the count can only go down.
type tracker struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (t *tracker) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			http.Error(w, "server closed", http.StatusServiceUnavailable)
			return
		}
		t.wg.Add(1)
		t.mu.Unlock()
		defer t.wg.Done()

		handler.ServeHTTP(w, r)
	})
}

func (t *tracker) wait() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.wg.Wait()
}
