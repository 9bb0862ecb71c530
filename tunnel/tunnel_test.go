package tunnel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-zoox/gztunnel/auth"
	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/secure"
	"github.com/go-zoox/gztunnel/session"
	"github.com/go-zoox/gztunnel/testutil"
)

func newSealer(t *testing.T) *secure.Sealer {
	t.Helper()

	key, err := secure.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %s", err)
	}

	sealer, err := secure.NewSealer(key, "")
	if err != nil {
		t.Fatalf("failed to create sealer: %s", err)
	}

	return sealer
}

type pipe struct {
	sealer *secure.Sealer
	// client and server ends of the transport
	clientConn, serverConn net.Conn
	client, server         codec.Codec
}

func newPipe(t *testing.T) *pipe {
	t.Helper()

	sealer := newSealer(t)
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	return &pipe{
		sealer:     sealer,
		clientConn: a,
		serverConn: b,
		client:     codec.NewBinary(a, sealer, 0),
		server:     codec.NewBinary(b, sealer, 0),
	}
}

type accepted struct {
	conn *Conn
	err  error
}

func acceptAsync(p *pipe, cfg *Config) chan accepted {
	done := make(chan accepted, 1)
	go func() {
		conn, err := Accept(context.Background(), p.server, cfg, auth.NewVerifier("t1"))
		done <- accepted{conn, err}
	}()
	return done
}

func waitAccepted(t *testing.T, done chan accepted) accepted {
	t.Helper()

	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for Accept")
		return accepted{}
	}
}

func read[T protocol.Message](t *testing.T, c codec.Codec) T {
	t.Helper()

	type result struct {
		m   protocol.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := c.ReadMessage()
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("failed to read message: %s", r.err)
		}
		v, ok := r.m.(T)
		if !ok {
			t.Fatalf("message not match, expect %T, but got %T %+v", *new(T), r.m, r.m)
		}
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %T", *new(T))
	}

	var zero T
	return zero
}

func write(t *testing.T, c codec.Codec, m protocol.Message) {
	t.Helper()

	if err := c.WriteMessage(m); err != nil {
		t.Fatalf("failed to write %s: %s", m.Type(), err)
	}
}

func waitDone(t *testing.T, conn *Conn) {
	t.Helper()

	select {
	case <-conn.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for tunnel %s to close", conn.ID)
	}
}

// rawServer authenticates a client Conn with the test acting as the server.
func rawServer(t *testing.T, p *pipe) *Conn {
	t.Helper()

	return rawServerWith(t, p, &Config{})
}

func rawServerWith(t *testing.T, p *pipe, cfg *Config) *Conn {
	t.Helper()

	c := *cfg
	c.Token = "t1"
	c.ClientID = "c1"

	done := make(chan accepted, 1)
	go func() {
		conn, err := Dial(context.Background(), p.client, &c)
		done <- accepted{conn, err}
	}()

	handshake := read[*protocol.Handshake](t, p.server)
	if handshake.Token != "t1" || handshake.ClientID != "c1" {
		t.Fatalf("Handshake not match, got %+v", handshake)
	}
	write(t, p.server, &protocol.HandshakeResponse{OK: true, TunnelID: "tunnel-1"})

	r := waitAccepted(t, done)
	if r.err != nil {
		t.Fatalf("failed to dial: %s", r.err)
	}
	return r.conn
}

// rawClient authenticates the test, acting as a client, to a server Conn.
func rawClient(t *testing.T, p *pipe, cfg *Config) *Conn {
	t.Helper()

	done := acceptAsync(p, cfg)
	write(t, p.client, &protocol.Handshake{Token: "t1", ClientID: "c1"})
	if response := read[*protocol.HandshakeResponse](t, p.client); !response.OK {
		t.Fatalf("expect handshake to succeed, but got %+v", response)
	}

	r := waitAccepted(t, done)
	if r.err != nil {
		t.Fatalf("failed to accept: %s", r.err)
	}
	t.Cleanup(func() {
		r.conn.Close()
	})
	return r.conn
}

func TestHandshake(t *testing.T) {
	p := newPipe(t)
	done := acceptAsync(p, &Config{})

	client, err := Dial(context.Background(), p.client, &Config{Token: "t1", ClientID: "c1"})
	if err != nil {
		t.Fatalf("failed to dial: %s", err)
	}
	defer client.Close()

	r := waitAccepted(t, done)
	if r.err != nil {
		t.Fatalf("failed to accept: %s", r.err)
	}
	defer r.conn.Close()

	if client.ID != r.conn.ID || client.ID == "" {
		t.Fatalf("tunnel id not match, expect %s, but got %s", r.conn.ID, client.ID)
	}

	if r.conn.ClientID != "c1" {
		t.Fatalf("ClientID not match, expect c1, but got %s", r.conn.ClientID)
	}

	if client.State() != StateAuthenticated || r.conn.State() != StateAuthenticated {
		t.Fatalf("State not match, expect authenticated, but got %s / %s", client.State(), r.conn.State())
	}
}

func TestHandshakeRejected(t *testing.T) {
	p := newPipe(t)
	done := acceptAsync(p, &Config{})

	write(t, p.client, &protocol.Handshake{Token: "t2", ClientID: "c1"})

	response := read[*protocol.HandshakeResponse](t, p.client)
	if response.OK || response.Reason == "" {
		t.Fatalf("expect rejection with a reason, but got %+v", response)
	}

	if r := waitAccepted(t, done); !errors.Is(r.err, errdefs.ErrAuth) {
		t.Fatalf("expect auth error, but got %v", r.err)
	}

	// nothing more on this connection
	if _, err := p.client.ReadMessage(); err == nil {
		t.Fatalf("expect the rejected connection to be closed")
	}
}

func TestDialRejected(t *testing.T) {
	p := newPipe(t)
	done := acceptAsync(p, &Config{})

	_, err := Dial(context.Background(), p.client, &Config{Token: "wrong", ClientID: "c1"})
	if !errors.Is(err, errdefs.ErrAuth) {
		t.Fatalf("expect auth error, but got %v", err)
	}

	if r := waitAccepted(t, done); !errors.Is(r.err, errdefs.ErrAuth) {
		t.Fatalf("expect auth error on the server, but got %v", r.err)
	}
}

func TestMessageBeforeHandshake(t *testing.T) {
	p := newPipe(t)
	done := acceptAsync(p, &Config{})

	write(t, p.client, &protocol.ProxyRequest{SessionID: 1, Host: "example.com", Port: 80})

	read[*protocol.Error](t, p.client)

	if r := waitAccepted(t, done); !errors.Is(r.err, errdefs.ErrProtocol) {
		t.Fatalf("expect protocol error, but got %v", r.err)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	p := newPipe(t)
	done := acceptAsync(p, &Config{HandshakeTimeout: 50 * time.Millisecond})

	if r := waitAccepted(t, done); !errors.Is(r.err, errdefs.ErrTimeout) {
		t.Fatalf("expect timeout error, but got %v", r.err)
	}
}

func TestClientSessionLifecycle(t *testing.T) {
	p := newPipe(t)
	client := rawServer(t, p)
	defer client.Close()

	local, app := net.Pipe()
	defer app.Close()

	relayed := make(chan error, 1)
	go func() {
		sess, err := client.Open(context.Background(), "example.com", 80)
		if err != nil {
			relayed <- err
			return
		}
		relayed <- client.Relay(sess, local)
	}()

	request := read[*protocol.ProxyRequest](t, p.server)
	if request.SessionID != 1 || request.Host != "example.com" || request.Port != 80 {
		t.Fatalf("ProxyRequest not match, got %+v", request)
	}
	write(t, p.server, &protocol.ProxyResponse{SessionID: 1, OK: true})

	go app.Write([]byte("GET / HTTP/1.0\r\n\r\n"))

	data := read[*protocol.Data](t, p.server)
	if data.SessionID != 1 || string(data.Bytes) != "GET / HTTP/1.0\r\n\r\n" {
		t.Fatalf("Data not match, got %d %q", data.SessionID, data.Bytes)
	}

	write(t, p.server, &protocol.Data{SessionID: 1, Bytes: []byte("HTTP/1.0 200 OK\r\n\r\nhello")})
	testutilRead(t, app, "HTTP/1.0 200 OK\r\n\r\nhello")

	app.Close()

	if c := read[*protocol.Close](t, p.server); c.SessionID != 1 {
		t.Fatalf("Close not match, expect session 1, but got %d", c.SessionID)
	}
	write(t, p.server, &protocol.Close{SessionID: 1})

	select {
	case err := <-relayed:
		if err != nil {
			t.Fatalf("unexpected relay error: %s", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for the relay to finish")
	}

	// the connection stays usable
	if client.State() != StateAuthenticated {
		t.Fatalf("State not match, expect authenticated, but got %s", client.State())
	}

	opened := make(chan error, 1)
	go func() {
		_, err := client.Open(context.Background(), "example.org", 443)
		opened <- err
	}()

	request = read[*protocol.ProxyRequest](t, p.server)
	if request.SessionID != 2 {
		t.Fatalf("SessionID not match, expect 2, but got %d", request.SessionID)
	}
	write(t, p.server, &protocol.ProxyResponse{SessionID: 2, Error: "connection refused"})

	if err := <-opened; !errors.Is(err, errdefs.ErrNetwork) {
		t.Fatalf("expect network error, but got %v", err)
	}

	if client.Sessions() != 0 {
		t.Fatalf("Sessions not match, expect 0, but got %d", client.Sessions())
	}
}

func testutilRead(t *testing.T, r io.Reader, expect string) {
	t.Helper()

	buf := make([]byte, len(expect))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("failed to read: %s", err)
	}
	if string(buf) != expect {
		t.Fatalf("bytes not match, expect %q, but got %q", expect, buf)
	}
}

func TestServerRefusedTarget(t *testing.T) {
	p := newPipe(t)
	rawClient(t, p, &Config{})
	echo := testutil.StartEchoTCPServer(t)
	host, port := testutil.HostPort(t, echo.Addr())

	write(t, p.client, &protocol.ProxyRequest{SessionID: 1, Host: "127.0.0.1", Port: testutil.ClosedPort(t)})

	response := read[*protocol.ProxyResponse](t, p.client)
	if response.SessionID != 1 || response.OK || response.Error == "" {
		t.Fatalf("expect failed ProxyResponse for session 1, but got %+v", response)
	}

	// data for the refused id goes nowhere
	write(t, p.client, &protocol.Data{SessionID: 1, Bytes: []byte("lost")})

	write(t, p.client, &protocol.ProxyRequest{SessionID: 2, Host: host, Port: port})
	if response := read[*protocol.ProxyResponse](t, p.client); response.SessionID != 2 || !response.OK {
		t.Fatalf("expect ProxyResponse ok for session 2, but got %+v", response)
	}

	write(t, p.client, &protocol.Data{SessionID: 2, Bytes: []byte("ping")})
	data := read[*protocol.Data](t, p.client)
	if data.SessionID != 2 || string(data.Bytes) != "ping" {
		t.Fatalf("expect echo on session 2, but got %d %q", data.SessionID, data.Bytes)
	}
}

func TestServerSessionLimit(t *testing.T) {
	p := newPipe(t)
	rawClient(t, p, &Config{MaxSessions: 1})
	echo := testutil.StartEchoTCPServer(t)
	host, port := testutil.HostPort(t, echo.Addr())

	write(t, p.client, &protocol.ProxyRequest{SessionID: 1, Host: host, Port: port})
	if response := read[*protocol.ProxyResponse](t, p.client); !response.OK {
		t.Fatalf("expect first session to be accepted, but got %+v", response)
	}

	write(t, p.client, &protocol.ProxyRequest{SessionID: 2, Host: host, Port: port})
	response := read[*protocol.ProxyResponse](t, p.client)
	if response.SessionID != 2 || response.OK || response.Error != "session limit reached" {
		t.Fatalf("expect session limit rejection, but got %+v", response)
	}
}

func TestDuplicateSessionIsFatal(t *testing.T) {
	p := newPipe(t)
	server := rawClient(t, p, &Config{})
	echo := testutil.StartEchoTCPServer(t)
	host, port := testutil.HostPort(t, echo.Addr())

	write(t, p.client, &protocol.ProxyRequest{SessionID: 1, Host: host, Port: port})
	read[*protocol.ProxyResponse](t, p.client)

	go func() {
		// keep draining so the server's last Error frame cannot block it
		for {
			if _, err := p.client.ReadMessage(); err != nil {
				return
			}
		}
	}()
	write(t, p.client, &protocol.ProxyRequest{SessionID: 1, Host: host, Port: port})

	waitDone(t, server)
	if !errors.Is(server.Err(), errdefs.ErrProtocol) {
		t.Fatalf("expect protocol error, but got %v", server.Err())
	}
}

func TestTamperedFrameTearsDownEverySession(t *testing.T) {
	p := newPipe(t)
	server := rawClient(t, p, &Config{})
	echo := testutil.StartEchoTCPServer(t)
	host, port := testutil.HostPort(t, echo.Addr())

	for id := uint32(1); id <= 2; id++ {
		write(t, p.client, &protocol.ProxyRequest{SessionID: id, Host: host, Port: port})
		read[*protocol.ProxyResponse](t, p.client)
	}

	if server.Sessions() != 2 {
		t.Fatalf("Sessions not match, expect 2, but got %d", server.Sessions())
	}

	buf := &bytes.Buffer{}
	if err := codec.NewBinary(nopCloser{buf}, p.sealer, 0).WriteMessage(&protocol.Data{SessionID: 1, Bytes: []byte("abc")}); err != nil {
		t.Fatalf("failed to encode frame: %s", err)
	}
	frame := buf.Bytes()
	frame[len(frame)-1] ^= 0x01

	go func() {
		for {
			if _, err := p.client.ReadMessage(); err != nil {
				return
			}
		}
	}()
	if _, err := p.clientConn.Write(frame); err != nil {
		t.Fatalf("failed to write tampered frame: %s", err)
	}

	waitDone(t, server)
	if !errors.Is(server.Err(), errdefs.ErrProtocol) {
		t.Fatalf("expect protocol error, but got %v", server.Err())
	}

	if server.Sessions() != 0 {
		t.Fatalf("Sessions not match, expect 0 after cascade, but got %d", server.Sessions())
	}
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestTransportLossCascades(t *testing.T) {
	p := newPipe(t)
	client := rawServer(t, p)

	opened := make(chan error, 1)
	go func() {
		_, err := client.Open(context.Background(), "example.com", 80)
		opened <- err
	}()
	read[*protocol.ProxyRequest](t, p.server)

	p.serverConn.Close()

	waitDone(t, client)
	if err := <-opened; err == nil {
		t.Fatalf("expect pending Open to fail when the transport is lost")
	}

	if _, err := client.Open(context.Background(), "example.com", 80); !errors.Is(err, errdefs.ErrClosed) {
		t.Fatalf("expect ErrClosed on a closed tunnel, but got %v", err)
	}
}

// openSession opens session id on a client Conn, with the test acting as the
// server, and relays it to the returned app end. Messages in early are
// written right behind the ProxyResponse, before Open has returned.
func openSession(t *testing.T, p *pipe, client *Conn, id uint32, early ...protocol.Message) (net.Conn, chan error) {
	t.Helper()

	var sess *session.Session
	opened := make(chan error, 1)
	go func() {
		var err error
		sess, err = client.Open(context.Background(), "example.com", 25)
		opened <- err
	}()

	if request := read[*protocol.ProxyRequest](t, p.server); request.SessionID != id {
		t.Fatalf("SessionID not match, expect %d, but got %d", id, request.SessionID)
	}
	write(t, p.server, &protocol.ProxyResponse{SessionID: id, OK: true})
	for _, m := range early {
		write(t, p.server, m)
	}

	select {
	case err := <-opened:
		if err != nil {
			t.Fatalf("failed to open session %d: %s", id, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for session %d to open", id)
	}

	local, app := net.Pipe()
	t.Cleanup(func() {
		app.Close()
	})

	relayed := make(chan error, 1)
	go func() {
		relayed <- client.Relay(sess, local)
	}()

	return app, relayed
}

func waitRelayed(t *testing.T, relayed chan error) error {
	t.Helper()

	select {
	case err := <-relayed:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for the relay to finish")
		return nil
	}
}

func TestDataRightAfterResponse(t *testing.T) {
	p := newPipe(t)
	client := rawServer(t, p)
	defer client.Close()

	// targets that greet first, like SMTP or SSH
	for id := uint32(1); id <= 20; id++ {
		banner := fmt.Sprintf("220 mx%d ready\r\n", id)
		app, relayed := openSession(t, p, client, id, &protocol.Data{SessionID: id, Bytes: []byte(banner)})

		testutilRead(t, app, banner)

		app.Close()
		if c := read[*protocol.Close](t, p.server); c.SessionID != id {
			t.Fatalf("Close not match, expect session %d, but got %d", id, c.SessionID)
		}
		write(t, p.server, &protocol.Close{SessionID: id})

		if err := waitRelayed(t, relayed); err != nil {
			t.Fatalf("unexpected relay error: %s", err)
		}
	}

	if client.State() != StateAuthenticated {
		t.Fatalf("State not match, expect authenticated, but got %s: %v", client.State(), client.Err())
	}
	if client.Sessions() != 0 {
		t.Fatalf("Sessions not match, expect 0, but got %d", client.Sessions())
	}
}

func TestCloseRightAfterResponse(t *testing.T) {
	p := newPipe(t)
	client := rawServer(t, p)
	defer client.Close()

	// the target accepted and hung up at once
	app, relayed := openSession(t, p, client, 1, &protocol.Close{SessionID: 1})

	if c := read[*protocol.Close](t, p.server); c.SessionID != 1 {
		t.Fatalf("Close not match, expect session 1, but got %d", c.SessionID)
	}

	app.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := app.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("expect io.EOF on the local stream, but got %v", err)
	}

	if err := waitRelayed(t, relayed); err != nil {
		t.Fatalf("unexpected relay error: %s", err)
	}

	if client.State() != StateAuthenticated || client.Sessions() != 0 {
		t.Fatalf("expect an open tunnel without sessions, but got %s with %d", client.State(), client.Sessions())
	}
}

func TestCloseLeavesSiblingStreaming(t *testing.T) {
	p := newPipe(t)
	client := rawServer(t, p)
	defer client.Close()

	app1, relayed1 := openSession(t, p, client, 1)
	app2, relayed2 := openSession(t, p, client, 2)

	chunks := make([]string, 12)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk-%02d;", i)
	}
	expect := strings.Join(chunks, "")

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, len(expect))
		n, _ := io.ReadFull(app2, buf)
		received <- string(buf[:n])
	}()

	for _, chunk := range chunks[:4] {
		write(t, p.server, &protocol.Data{SessionID: 2, Bytes: []byte(chunk)})
	}

	app1.Close()
	if c := read[*protocol.Close](t, p.server); c.SessionID != 1 {
		t.Fatalf("Close not match, expect session 1, but got %d", c.SessionID)
	}

	for _, chunk := range chunks[4:8] {
		write(t, p.server, &protocol.Data{SessionID: 2, Bytes: []byte(chunk)})
	}
	write(t, p.server, &protocol.Close{SessionID: 1})
	for _, chunk := range chunks[8:] {
		write(t, p.server, &protocol.Data{SessionID: 2, Bytes: []byte(chunk)})
	}

	if err := waitRelayed(t, relayed1); err != nil {
		t.Fatalf("unexpected relay error for session 1: %s", err)
	}

	select {
	case got := <-received:
		if got != expect {
			t.Fatalf("session 2 bytes not match, expect %q, but got %q", expect, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for session 2 bytes")
	}

	if client.State() != StateAuthenticated {
		t.Fatalf("State not match, expect authenticated, but got %s", client.State())
	}
	if client.Sessions() != 1 {
		t.Fatalf("Sessions not match, expect 1, but got %d", client.Sessions())
	}

	// session 2 still works upstream too
	go app2.Write([]byte("pong"))
	if data := read[*protocol.Data](t, p.server); data.SessionID != 2 || string(data.Bytes) != "pong" {
		t.Fatalf("Data not match, got %d %q", data.SessionID, data.Bytes)
	}

	select {
	case err := <-relayed2:
		t.Fatalf("expect session 2 to keep relaying, but it finished: %v", err)
	default:
	}
}

func TestStalledSessionIsAbortedAlone(t *testing.T) {
	p := newPipe(t)
	client := rawServerWith(t, p, &Config{QueueSize: 1, StallTimeout: 50 * time.Millisecond})
	defer client.Close()

	// nobody reads app1
	app1, relayed1 := openSession(t, p, client, 1)
	app2, _ := openSession(t, p, client, 2)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, len("alive"))
		n, _ := io.ReadFull(app2, buf)
		received <- string(buf[:n])
	}()

	// one chunk blocked in the local write, one queued, one stalls
	for i := 0; i < 3; i++ {
		write(t, p.server, &protocol.Data{SessionID: 1, Bytes: []byte("blocked")})
	}
	write(t, p.server, &protocol.Data{SessionID: 2, Bytes: []byte("alive")})

	if e := read[*protocol.Error](t, p.server); e.SessionID != 1 {
		t.Fatalf("Error not match, expect session 1, but got %+v", e)
	}
	if c := read[*protocol.Close](t, p.server); c.SessionID != 1 {
		t.Fatalf("Close not match, expect session 1, but got %d", c.SessionID)
	}
	write(t, p.server, &protocol.Close{SessionID: 1})

	waitRelayed(t, relayed1)

	select {
	case got := <-received:
		if got != "alive" {
			t.Fatalf("session 2 bytes not match, expect alive, but got %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for session 2 bytes")
	}

	app1.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := io.ReadAll(app1); errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expect the stalled session's local stream to be closed, but got %v", err)
	}

	if client.State() != StateAuthenticated {
		t.Fatalf("State not match, expect authenticated, but got %s", client.State())
	}
	if client.Sessions() != 1 {
		t.Fatalf("Sessions not match, expect 1, but got %d", client.Sessions())
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	if cfg.StallTimeout != DefaultStallTimeout {
		t.Fatalf("StallTimeout not match, expect %s, but got %s", DefaultStallTimeout, cfg.StallTimeout)
	}
	// dispatch is shared, a stalled session must not hold siblings for long
	if DefaultStallTimeout > 2*time.Second {
		t.Fatalf("expect a short default stall window, but got %s", DefaultStallTimeout)
	}
	if cfg.QueueSize != DefaultQueueSize || cfg.OutboxSize != DefaultOutboxSize {
		t.Fatalf("queue sizes not match, got %d / %d", cfg.QueueSize, cfg.OutboxSize)
	}
	// nil selects the tcp dial tagged with the tunnel and session ids
	if cfg.Dial != nil {
		t.Fatalf("expect Dial to stay nil by default")
	}

	cfg = (&Config{StallTimeout: 50 * time.Millisecond}).withDefaults()
	if cfg.StallTimeout != 50*time.Millisecond {
		t.Fatalf("StallTimeout not match, expect 50ms, but got %s", cfg.StallTimeout)
	}
}
