package main

import (
	"io"
	"net"
	"os"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/socks5"
)

// fetch requests http://example.com/ through the local socks5 listener.
func main() {
	conn, err := net.Dial("tcp", "127.0.0.1:1080")
	if err != nil {
		logger.Fatal("failed to connect proxy: %s", err)
		return
	}
	defer conn.Close()

	if err := socks5.Connect(conn, socks5.Auth{}, "example.com:80"); err != nil {
		logger.Fatal("failed to connect example.com: %s", err)
		return
	}

	if _, err := io.WriteString(conn, "GET / HTTP/1.0\r\nHost: example.com\r\n\r\n"); err != nil {
		logger.Errorf("failed to write request: %s", err)
		return
	}

	io.Copy(os.Stdout, conn)
}
