package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// WriteSuccess reports a connected stream. bound is the address announced to
// the application; the tunnel has no meaningful one, so callers usually pass
// the local listener address.
func WriteSuccess(conn net.Conn, bound net.Addr) error {
	atyp, addr, port, err := txsocks5.ParseAddress(bound.String())
	if err != nil {
		return fmt.Errorf("parse bound address %q: %w", bound.String(), err)
	}
	if atyp == txsocks5.ATYPDomain {
		addr = addr[1:]
	}

	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, atyp, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// WriteFailure sends a failure reply with a zero bound address.
func WriteFailure(conn net.Conn, rep, atyp byte) error {
	if _, err := zeroAddrReply(rep, atyp).WriteTo(conn); err != nil {
		return fmt.Errorf("failure reply: %w", err)
	}
	return nil
}

func WriteGeneralFailure(conn net.Conn, atyp byte) error {
	return WriteFailure(conn, txsocks5.RepServerFailure, atyp)
}

func WriteConnectionRefused(conn net.Conn, atyp byte) error {
	return WriteFailure(conn, txsocks5.RepConnectionRefused, atyp)
}

func WriteCommandNotSupported(conn net.Conn, atyp byte) error {
	return WriteFailure(conn, txsocks5.RepCommandNotSupported, atyp)
}

func zeroAddrReply(rep, atyp byte) *txsocks5.Reply {
	if atyp == txsocks5.ATYPIPv6 {
		return txsocks5.NewReply(rep, txsocks5.ATYPIPv6, []byte(net.IPv6zero), []byte{0x00, 0x00})
	}

	return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}

func writeNoAcceptableMethods(conn net.Conn) {
	// 0xff: no acceptable methods
	txsocks5.NewNegotiationReply(0xff).WriteTo(conn)
}
