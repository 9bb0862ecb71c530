// Package socks5 accepts SOCKS5 CONNECT requests on the client side of the
// tunnel. It is a thin layer over github.com/txthinking/socks5: negotiation
// with optional username/password, request parsing and the replies the
// client needs.
package socks5

import (
	"crypto/subtle"
	"fmt"
	"net"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	CmdConnect = txsocks5.CmdConnect
	CmdBind    = txsocks5.CmdBind
	CmdUDP     = txsocks5.CmdUDP

	RepGeneralFailure      = txsocks5.RepServerFailure
	RepConnectionRefused   = txsocks5.RepConnectionRefused
	RepCommandNotSupported = txsocks5.RepCommandNotSupported
)

// Auth enables username/password negotiation when Username is set.
type Auth struct {
	Username string
	Password string
}

// Request is a parsed SOCKS5 request.
type Request struct {
	Cmd  byte
	Atyp byte
	Host string
	Port uint16
}

func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// Handshake negotiates a method with the application and reads its request.
func Handshake(conn net.Conn, auth Auth) (*Request, error) {
	if err := negotiate(conn, auth); err != nil {
		return nil, err
	}

	return readRequest(conn)
}

func negotiate(conn net.Conn, auth Auth) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if auth.Username == "" {
		if !hasMethod(neg.Methods, txsocks5.MethodNone) {
			writeNoAcceptableMethods(conn)
			return fmt.Errorf("client does not offer no-auth")
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
			return fmt.Errorf("negotiation reply: %w", err)
		}
		return nil
	}

	if !hasMethod(neg.Methods, txsocks5.MethodUsernamePassword) {
		writeNoAcceptableMethods(conn)
		return fmt.Errorf("client does not offer username/password")
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}

	urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}

	ok := subtle.ConstantTimeCompare(urq.Uname, []byte(auth.Username)) == 1
	ok = subtle.ConstantTimeCompare(urq.Passwd, []byte(auth.Password)) == 1 && ok
	if !ok {
		txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
		return fmt.Errorf("invalid username or password for %q", urq.Uname)
	}

	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("userpass reply: %w", err)
	}
	return nil
}

func readRequest(conn net.Conn) (*Request, error) {
	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	host, port, err := net.SplitHostPort(req.Address())
	if err != nil {
		return nil, fmt.Errorf("request address: %w", err)
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("request port %q: %w", port, err)
	}

	return &Request{
		Cmd:  req.Cmd,
		Atyp: req.Atyp,
		Host: host,
		Port: uint16(p),
	}, nil
}

func hasMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}

	return false
}
