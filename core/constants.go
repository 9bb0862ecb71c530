package core

import (
	"time"
)

const (
	TRANSPORT_TCP = "tcp"
	TRANSPORT_WS  = "ws"
	//
	SCHEME_TCP = "tcp"
	SCHEME_TLS = "tls"
	SCHEME_WS  = "ws"
	SCHEME_WSS = "wss"
)

const (
	DefaultServerListen = "0.0.0.0:8080"
	DefaultSocksListen  = "127.0.0.1:1080"
)

// negotiateTimeout bounds the SOCKS5 exchange with a local application.
const negotiateTimeout = 10 * time.Second
