package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-zoox/cli"
	"github.com/go-zoox/config"
	"github.com/go-zoox/fs"
	"github.com/go-zoox/logger"
	"golang.org/x/sync/errgroup"

	"github.com/go-zoox/gztunnel/errdefs"
)

const (
	EXIT_OK     = 0
	EXIT_FAILED = 1
	EXIT_CONFIG = 2
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return EXIT_OK
	case errors.Is(err, errdefs.ErrConfig):
		return EXIT_CONFIG
	default:
		return EXIT_FAILED
	}
}

// exit ends the process for a failed action. Graceful shutdown returns nil.
func exit(err error) error {
	if err == nil {
		return nil
	}

	logger.Errorf("%v", err)
	os.Exit(ExitCode(err))
	return err
}

// loadConfig fills cfg from the --config file when one is given.
func loadConfig(ctx *cli.Context, cfg any) (bool, error) {
	filepath := ctx.String("config")
	if filepath == "" {
		return false, nil
	}

	if !fs.IsExist(filepath) {
		return false, errdefs.Config("config file not found at %s", filepath)
	}

	if err := config.Load(cfg, &config.LoadOptions{
		FilePath: filepath,
	}); err != nil {
		return false, errdefs.Config("failed to load config file at %s: %w", filepath, err)
	}

	return true, nil
}

// flags copies set flags over file values. A flag that was not given still
// supplies its default when the file left the value empty.
type flags struct {
	ctx      *cli.Context
	fromFile bool
}

func (f *flags) String(name string, target *string) {
	if f.ctx.IsSet(name) || *target == "" {
		*target = f.ctx.String(name)
	}
}

func (f *flags) Int(name string, target *int) {
	if f.ctx.IsSet(name) || *target == 0 {
		*target = f.ctx.Int(name)
	}
}

func (f *flags) Seconds(name string, target *int64) {
	if f.ctx.IsSet(name) || *target == 0 {
		*target = int64(f.ctx.Int(name))
	}
}

func (f *flags) Bool(name string, target *bool) {
	if f.ctx.IsSet(name) || !f.fromFile {
		*target = f.ctx.Bool(name)
	}
}

// serve runs fn until it returns or the process is interrupted.
func serve(name string, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fn(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Infof("[%s] shutting down", name)
		}
		return nil
	})

	return g.Wait()
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "the filepath for configuration",
		Aliases: []string{"c"},
	}
}

func cipherFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "cipher",
		Usage: "binary mode cipher, aes-256-gcm or chacha20-poly1305",
		Value: "aes-256-gcm",
	}
}

func modeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "mode",
		Usage: "binary or transparent, defaults to binary when a key is set",
	}
}
