package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/page"
	"github.com/ugparu/gousm/format/usm"
)

type elementInfo struct {
	Channel  int          `json:"channel"`
	Filename string       `json:"filename"`
	Frames   int          `json:"frames"`
	Crid     *page.Page   `json:"crid"`
	Header   *page.Page   `json:"header"`
	Metadata []*page.Page `json:"metadata,omitempty"`
}

type containerInfo struct {
	Filename string        `json:"filename"`
	Version  uint32        `json:"version"`
	Encoding string        `json:"encoding"`
	MaxFrame int           `json:"max_frame"`
	HasKey   bool          `json:"has_key"`
	Videos   []elementInfo `json:"videos"`
	Audios   []elementInfo `json:"audios"`
	Alphas   []elementInfo `json:"alphas"`
}

func describeElements[T gousm.Element](elements []T) []elementInfo {
	out := make([]elementInfo, 0, len(elements))
	for _, e := range elements {
		out = append(out, elementInfo{
			Channel:  e.ChannelNumber(),
			Filename: e.Filename(),
			Frames:   e.Len(),
			Crid:     e.CridPage(),
			Header:   e.HeaderPage(),
			Metadata: e.MetadataPages(),
		})
	}
	return out
}

func describe(u *usm.Usm) containerInfo {
	return containerInfo{
		Filename: u.Filename(),
		Version:  u.Version(),
		Encoding: u.Encoding(),
		MaxFrame: u.MaxFrame(),
		HasKey:   u.HasKey(),
		Videos:   describeElements(u.Videos()),
		Audios:   describeElements(u.Audios()),
		Alphas:   describeElements(u.Alphas()),
	}
}

func probeCmd() *cli.Command {
	var key string

	return &cli.Command{
		Name:      "probe",
		Usage:     "Print the pages and channels of a container as JSON",
		ArgsUsage: "<file.usm>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "stream key", Destination: &key},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyKeyConfig(c, cfg, &key)
			input, err := inputArg(c)
			if err != nil {
				return err
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

			data, err := json.MarshalIndent(describe(u), "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			_, err = c.Root().Writer.Write(data)
			return err
		},
	}
}
