package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/format/usm"
	"github.com/ugparu/gousm/utils"
)

func createCmd() *cli.Command {
	var (
		output    string
		key       string
		alphaPath string
		audioFrom string
	)

	return &cli.Command{
		Name:      "create",
		Usage:     "Create a container from a VP9 IVF file",
		ArgsUsage: "<video.ivf>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory", Value: ".", Destination: &output},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "encrypt the streams with this key", Destination: &key},
			&cli.StringFlag{Name: "alpha", Usage: "VP9 IVF file of the alpha channel (not supported yet)", Destination: &alphaPath},
			&cli.StringFlag{Name: "audio-from", Usage: "unencrypted container to take the audios from", Destination: &audioFrom},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyKeyConfig(c, cfg, &key)
			applyOutputConfig(c, cfg, &output)
			if alphaPath != "" {
				return fmt.Errorf("%s: %w", c.Name, utils.UnimplementedError{Feature: "writing alpha channels"})
			}
			input, err := inputArg(c)
			if err != nil {
				return err
			}

			opts, err := containerOptions(key)
			if err != nil {
				return err
			}

			video, err := usm.NewVideoFromIVF(input, 0, false, opts...)
			if err != nil {
				return err
			}
			var audios []gousm.AudioElement
			if audioFrom != "" {
				src, err := usm.Open(audioFrom, usm.WithEncoding(encoding))
				if err != nil {
					return err
				}
				defer src.Close()
				audios = src.Audios()
			}

			u, err := usm.New([]gousm.VideoElement{video}, audios, nil, opts...)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(output, 0o755); err != nil {
				return err
			}

			mode := gousm.OpNone
			if u.HasKey() {
				mode = gousm.OpEncrypt
			}
			path := filepath.Join(output, u.Filename())
			if err := u.Save(path, mode); err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, path)
			return nil
		},
	}
}
