package command

import (
	"github.com/go-zoox/cli"

	"github.com/go-zoox/gztunnel/core"
)

func RegisterClient(app *cli.MultipleProgram) {
	app.Register("client", &cli.Command{
		Name:  "client",
		Usage: "local socks5 proxy, tunnels every connection to the server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "socks5 listen address",
				Aliases: []string{"l"},
				Value:   core.DefaultSocksListen,
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "server url, format: tcp|tls|ws|wss://host:port[/path]",
				Aliases: []string{"s"},
				EnvVars: []string{"GZTUNNEL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "the token presented to the server",
				Aliases: []string{"t"},
				EnvVars: []string{"GZTUNNEL_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "client id sent in the handshake, a random uuid by default",
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "base64 encoded 32 byte key for binary mode",
				Aliases: []string{"k"},
				EnvVars: []string{"GZTUNNEL_KEY"},
			},
			cipherFlag(),
			modeFlag(),
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "skip server certificate verification, development use only",
			},
			&cli.BoolFlag{
				Name:  "multiplex",
				Usage: "share one tunnel connection between socks5 connections",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "socks-username",
				Usage: "require this username from socks5 applications",
			},
			&cli.StringFlag{
				Name:    "socks-password",
				Usage:   "require this password from socks5 applications",
				EnvVars: []string{"GZTUNNEL_SOCKS_PASSWORD"},
			},
			&cli.IntFlag{
				Name:  "handshake-timeout",
				Usage: "handshake timeout in seconds",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "request-timeout",
				Usage: "seconds to wait for the server to connect a target",
				Value: 15,
			},
			&cli.IntFlag{
				Name:  "stall-timeout",
				Usage: "seconds a session's inbound queue may stay full",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "keepalive",
				Usage: "websocket ping interval in seconds, negative to disable",
				Value: 30,
			},
			&cli.IntFlag{
				Name:  "max-frame-size",
				Usage: "largest accepted frame in bytes",
				Value: 256 * 1024,
			},
		},
		Action: func(ctx *cli.Context) error {
			var cfg core.ClientConfig
			fromFile, err := loadConfig(ctx, &cfg)
			if err != nil {
				return exit(err)
			}

			f := &flags{ctx: ctx, fromFile: fromFile}
			f.String("listen", &cfg.Listen)
			f.String("server", &cfg.Server)
			f.String("token", &cfg.Token)
			f.String("client-id", &cfg.ClientID)
			f.String("key", &cfg.Key)
			f.String("cipher", &cfg.Cipher)
			f.String("mode", &cfg.Mode)
			f.Bool("insecure", &cfg.Insecure)
			f.Bool("multiplex", &cfg.Multiplex)
			f.String("socks-username", &cfg.SocksUsername)
			f.String("socks-password", &cfg.SocksPassword)
			f.Seconds("handshake-timeout", &cfg.HandshakeTimeout)
			f.Seconds("request-timeout", &cfg.RequestTimeout)
			f.Seconds("stall-timeout", &cfg.StallTimeout)
			f.Seconds("keepalive", &cfg.Keepalive)
			f.Int("max-frame-size", &cfg.MaxFrameSize)

			client, err := core.NewClient(&cfg)
			if err != nil {
				return exit(err)
			}

			return exit(serve("client", client.Run))
		},
	})
}
