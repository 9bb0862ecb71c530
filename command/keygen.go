package command

import (
	"fmt"

	"github.com/go-zoox/cli"

	"github.com/go-zoox/gztunnel/keygen"
)

func RegisterKeygen(app *cli.MultipleProgram) {
	app.Register("keygen", &cli.Command{
		Name:  "keygen",
		Usage: "generate a key and token, and optionally a self-signed certificate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "cert-out",
				Usage: "write a self-signed certificate to this file",
			},
			&cli.StringFlag{
				Name:  "key-out",
				Usage: "write the certificate key to this file",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "comma separated hosts for the certificate",
				Value: "localhost,127.0.0.1",
			},
		},
		Action: func(ctx *cli.Context) error {
			if err := printSecrets(); err != nil {
				return exit(err)
			}

			if ctx.String("cert-out") == "" && ctx.String("key-out") == "" {
				return nil
			}

			cfg := &keygen.CertificateConfig{
				CertFile: ctx.String("cert-out"),
				KeyFile:  ctx.String("key-out"),
				Hosts:    splitList(ctx.String("host")),
			}
			if err := keygen.WriteCertificate(cfg); err != nil {
				return exit(err)
			}

			fmt.Printf("certificate: %s\ncertificate key: %s\n", cfg.CertFile, cfg.KeyFile)
			return nil
		},
	})
}

func printSecrets() error {
	secrets, err := keygen.Generate()
	if err != nil {
		return err
	}

	fmt.Printf("key: %s\nfingerprint: %s\ntoken: %s\n", secrets.Key, secrets.Fingerprint, secrets.Token)
	return nil
}
