package main

import (
	"github.com/go-zoox/cli"

	"github.com/go-zoox/gztunnel/command"
)

func main() {
	app := cli.NewMultipleProgram(&cli.MultipleProgramConfig{
		Name:    "gztunnel",
		Usage:   "gztunnel is a socks5 proxy tunneled to a remote server over an authenticated, encrypted connection.",
		Version: Version,
	})

	command.RegisterServer(app)
	command.RegisterClient(app)
	command.RegisterKeygen(app)

	app.Run()
}
