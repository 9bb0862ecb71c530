package command

import (
	"github.com/go-zoox/cli"

	"github.com/go-zoox/gztunnel/core"
)

func RegisterServer(app *cli.MultipleProgram) {
	app.Register("server", &cli.Command{
		Name:  "server",
		Usage: "tunnel server, connects sessions to their targets",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "listen address",
				Aliases: []string{"l"},
				Value:   core.DefaultServerListen,
				EnvVars: []string{"GZTUNNEL_LISTEN"},
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "tcp or ws",
				Value: core.TRANSPORT_TCP,
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "websocket path",
				Value: "/ws",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "the token clients must present",
				Aliases: []string{"t"},
				EnvVars: []string{"GZTUNNEL_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "base64 encoded 32 byte key for binary mode",
				Aliases: []string{"k"},
				EnvVars: []string{"GZTUNNEL_KEY"},
			},
			cipherFlag(),
			modeFlag(),
			&cli.StringFlag{
				Name:  "tls-cert",
				Usage: "certificate file for the tls listener",
			},
			&cli.StringFlag{
				Name:  "tls-key",
				Usage: "certificate key file for the tls listener",
			},
			&cli.IntFlag{
				Name:  "handshake-timeout",
				Usage: "handshake timeout in seconds",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "connect-timeout",
				Usage: "outbound connect timeout in seconds",
				Value: 10,
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
				Name:  "max-sessions",
				Usage: "sessions per tunnel connection, 0 for unlimited",
			},
			&cli.IntFlag{
				Name:  "max-frame-size",
				Usage: "largest accepted frame in bytes",
				Value: 256 * 1024,
			},
			&cli.BoolFlag{
				Name:  "generate-key",
				Usage: "print a new key and token, then exit",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.Bool("generate-key") {
				return exit(printSecrets())
			}

			var cfg core.ServerConfig
			fromFile, err := loadConfig(ctx, &cfg)
			if err != nil {
				return exit(err)
			}

			f := &flags{ctx: ctx, fromFile: fromFile}
			f.String("listen", &cfg.Listen)
			f.String("transport", &cfg.Transport)
			f.String("path", &cfg.Path)
			f.String("token", &cfg.Token)
			f.String("key", &cfg.Key)
			f.String("cipher", &cfg.Cipher)
			f.String("mode", &cfg.Mode)
			f.String("tls-cert", &cfg.TLSCert)
			f.String("tls-key", &cfg.TLSKey)
			f.Seconds("handshake-timeout", &cfg.HandshakeTimeout)
			f.Seconds("connect-timeout", &cfg.ConnectTimeout)
			f.Seconds("stall-timeout", &cfg.StallTimeout)
			f.Seconds("keepalive", &cfg.Keepalive)
			f.Int("max-sessions", &cfg.MaxSessions)
			f.Int("max-frame-size", &cfg.MaxFrameSize)

			server, err := core.NewServer(&cfg)
			if err != nil {
				return exit(err)
			}

			return exit(serve("server", server.Run))
		},
	})
}
