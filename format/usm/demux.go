package usm

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/utils"
	"github.com/ugparu/gousm/utils/logger"
)

type demuxOptions struct {
	video    bool
	audio    bool
	alpha    bool
	pages    bool
	folder   string
	parallel int
}

// DemuxOption selects what Demux writes.
type DemuxOption func(*demuxOptions)

// DemuxVideo enables or disables writing videos. Enabled by default.
func DemuxVideo(enabled bool) DemuxOption {
	return func(o *demuxOptions) { o.video = enabled }
}

// DemuxAudio enables or disables writing audios. Enabled by default.
func DemuxAudio(enabled bool) DemuxOption {
	return func(o *demuxOptions) { o.audio = enabled }
}

// DemuxAlpha enables or disables writing alpha videos. Enabled by default.
func DemuxAlpha(enabled bool) DemuxOption {
	return func(o *demuxOptions) { o.alpha = enabled }
}

// DemuxPages requests the pages of the container. Not supported yet.
func DemuxPages(enabled bool) DemuxOption {
	return func(o *demuxOptions) { o.pages = enabled }
}

// DemuxFolder overrides the output folder name, the container filename by default.
func DemuxFolder(name string) DemuxOption {
	return func(o *demuxOptions) { o.folder = name }
}

// DemuxParallel writes up to n elements at once.
func DemuxParallel(n int) DemuxOption {
	return func(o *demuxOptions) { o.parallel = n }
}

// DemuxResult lists the written files per element kind, in element order.
type DemuxResult struct {
	Videos []string
	Audios []string
	Alphas []string
}

type demuxJob struct {
	element gousm.Element
	path    string
	key     []byte
}

// Demux writes every selected element to <dir>/<folder>/{videos,audios,alphas}. Packets
// are decrypted when the container has a key.
func (u *Usm) Demux(dir string, opts ...DemuxOption) (res DemuxResult, err error) {
	o := demuxOptions{video: true, audio: true, alpha: true, parallel: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pages {
		err = utils.UnimplementedError{Feature: "saving pages"}
		return
	}
	if o.folder == "" {
		o.folder = u.Filename()
	}

	output := filepath.Join(dir, utils.Slugify(o.folder, true))
	if info, statErr := os.Stat(output); statErr == nil && !info.IsDir() {
		err = &os.PathError{Op: "demux", Path: output, Err: ErrOutputIsFile}
		return
	}
	if err = os.MkdirAll(output, 0o755); err != nil {
		return
	}

	var jobs []demuxJob
	plan := func(name string, elements []gousm.Element, key []byte) ([]string, error) {
		if len(elements) == 0 {
			return nil, nil
		}
		logger.Infof(u, "saving %s", name)
		sub := filepath.Join(output, name)
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(elements))
		for _, e := range elements {
			p := filepath.Join(sub, e.Filename())
			jobs = append(jobs, demuxJob{element: e, path: p, key: key})
			paths = append(paths, p)
		}
		return paths, nil
	}

	if o.video {
		if res.Videos, err = plan("videos", asElements(u.videos), u.videoKey); err != nil {
			return
		}
	}
	if o.audio {
		if res.Audios, err = plan("audios", asElements(u.audios), u.audioKey); err != nil {
			return
		}
	}
	if o.alpha {
		if res.Alphas, err = plan("alphas", asElements(u.alphas), u.videoKey); err != nil {
			return
		}
	}

	var g errgroup.Group
	g.SetLimit(max(o.parallel, 1))
	for _, job := range jobs {
		g.Go(func() error {
			return writeElement(job)
		})
	}
	err = g.Wait()
	return
}

func asElements[T gousm.Element](elements []T) []gousm.Element {
	out := make([]gousm.Element, len(elements))
	for i, e := range elements {
		out[i] = e
	}
	return out
}

func writeElement(job demuxJob) (err error) {
	f, err := os.Create(job.path)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = copyPackets(f, job.element, job.key)
	return
}

// WriteElement writes the packets of one of the container's elements to w, decrypted
// when the container has a key.
func (u *Usm) WriteElement(w io.Writer, e gousm.Element) (int64, error) {
	key := u.videoKey
	if _, ok := e.(gousm.AudioElement); ok {
		key = u.audioKey
	}
	return copyPackets(w, e, key)
}

func copyPackets(w io.Writer, e gousm.Element, key []byte) (n int64, err error) {
	mode := gousm.OpNone
	if key != nil {
		mode = gousm.OpDecrypt
	}
	src, err := e.Packets(mode, key)
	if err != nil {
		return
	}
	defer src.Close()

	for {
		data, _, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		} else if err != nil {
			return n, err
		}
		written, err := w.Write(data)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
}
