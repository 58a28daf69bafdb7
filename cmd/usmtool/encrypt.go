package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/format/usm"
)

func encryptCmd() *cli.Command {
	var (
		output  string
		key     string
		decrypt bool
	)

	return &cli.Command{
		Name:      "encrypt",
		Usage:     "Repack a container with its streams encrypted or decrypted",
		ArgsUsage: "<file.usm>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file", Required: true, Destination: &output},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "stream key", Destination: &key},
			&cli.BoolFlag{Name: "decrypt", Usage: "decrypt instead of encrypting", Destination: &decrypt},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyKeyConfig(c, cfg, &key)
			input, err := inputArg(c)
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("%s: %w", c.Name, usm.ErrKeyRequired)
			}

			opts, err := containerOptions(key)
			if err != nil {
				return err
			}
			u, err := usm.Open(input, opts...)
			if err != nil {
				return err
			}
			defer u.Close()

			mode := gousm.OpEncrypt
			if decrypt {
				mode = gousm.OpDecrypt
			}
			if err := u.Save(output, mode); err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, output)
			return nil
		},
	}
}
