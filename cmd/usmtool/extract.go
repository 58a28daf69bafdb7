package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm/format/usm"
)

func extractCmd() *cli.Command {
	var (
		output   string
		key      string
		folder   string
		parallel int
		noVideo  bool
		noAudio  bool
		noAlpha  bool
		lenient  bool
	)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract the videos, audios and alphas of a container",
		ArgsUsage: "<file.usm>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory", Value: ".", Destination: &output},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "decryption key", Destination: &key},
			&cli.StringFlag{Name: "folder", Usage: "output folder name, the container name by default", Destination: &folder},
			&cli.IntFlag{Name: "parallel", Usage: "elements written at once", Value: 1, Destination: &parallel},
			&cli.BoolFlag{Name: "no-video", Usage: "skip videos", Destination: &noVideo},
			&cli.BoolFlag{Name: "no-audio", Usage: "skip audios", Destination: &noAudio},
			&cli.BoolFlag{Name: "no-alpha", Usage: "skip alpha videos", Destination: &noAlpha},
			&cli.BoolFlag{Name: "lenient", Usage: "skip chunks that cannot be decoded", Destination: &lenient},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyExtractConfig(c, cfg, &key, &output, &parallel)
			input, err := inputArg(c)
			if err != nil {
				return err
			}

			var extra []usm.Option
			if c.IsSet("lenient") {
				extra = append(extra, usm.WithLenient(lenient))
			}
			opts, err := containerOptions(key, extra...)
			if err != nil {
				return err
			}
			u, err := usm.Open(input, opts...)
			if err != nil {
				return err
			}
			defer u.Close()

			demuxOpts := []usm.DemuxOption{
				usm.DemuxVideo(!noVideo),
				usm.DemuxAudio(!noAudio),
				usm.DemuxAlpha(!noAlpha),
				usm.DemuxParallel(parallel),
			}
			if folder != "" {
				demuxOpts = append(demuxOpts, usm.DemuxFolder(folder))
			}
			res, err := u.Demux(output, demuxOpts...)
			if err != nil {
				return err
			}

			for _, group := range [][]string{res.Videos, res.Audios, res.Alphas} {
				for _, p := range group {
					fmt.Fprintln(c.Root().Writer, p)
				}
			}
			return nil
		},
	}
}
