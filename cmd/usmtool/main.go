// Command usmtool extracts, creates, re-encrypts and inspects USM containers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm/format/usm"
	"github.com/ugparu/gousm/utils/logger"
)

const (
	defaultLogLevel = "info"
	defaultEncoding = "UTF-8"
)

var (
	logLevel   string
	encoding   string
	configFile string
	cfg        Config
)

var errMissingInput = errors.New("missing input file")

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "usmtool",
		Usage: "Extract, create and re-encrypt CRI USM containers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warning or error", Value: defaultLogLevel, Destination: &logLevel},
			&cli.StringFlag{Name: "encoding", Usage: "character encoding of page strings", Value: defaultEncoding, Destination: &encoding},
			&cli.StringFlag{Name: "config", Usage: "path to a YAML defaults file", Destination: &configFile},
		},
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			extractCmd(),
			createCmd(),
			encryptCmd(),
			probeCmd(),
			serveCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	if cfg, err = LoadConfig(configFile); err != nil {
		return ctx, err
	}
	applyGlobalConfig(cmd, cfg)

	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return ctx, err
	}
	logger.Init(lvl)
	return ctx, nil
}

// parseKey accepts decimal, 0x-prefixed hex and 0o-prefixed octal keys.
func parseKey(s string) (uint64, error) {
	key, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return key, nil
}

// containerOptions builds the options shared by every command opening a container.
func containerOptions(key string, extra ...usm.Option) ([]usm.Option, error) {
	opts := []usm.Option{usm.WithEncoding(encoding)}
	if key != "" {
		k, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, usm.WithKey(k))
	}
	return append(opts, extra...), nil
}

func inputArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() == 0 {
		return "", fmt.Errorf("%s: %w", cmd.Name, errMissingInput)
	}
	return cmd.Args().First(), nil
}
