package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/format/usm"
	"github.com/ugparu/gousm/utils/logger"
)

const shutdownTimeout = 5 * time.Second

var errNoChannel = errors.New("no such channel")

// Server exposes an opened container over HTTP.
type Server struct {
	usm    *usm.Usm
	server *http.Server
}

func (s *Server) String() string {
	return fmt.Sprintf("SERVER %s", s.server.Addr)
}

func newServer(u *usm.Usm, addr string) *Server {
	s := &Server{usm: u}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	pprof.Register(router)

	router.GET("/info", s.getInfo)
	router.GET("/container", s.getContainer)
	router.GET("/videos/:ch", s.getElement(func() []gousm.Element { return elements(u.Videos()) }))
	router.GET("/audios/:ch", s.getElement(func() []gousm.Element { return elements(u.Audios()) }))
	router.GET("/alphas/:ch", s.getElement(func() []gousm.Element { return elements(u.Alphas()) }))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func elements[T gousm.Element](in []T) []gousm.Element {
	out := make([]gousm.Element, len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		logger.Infof(s, "listening")
		errs <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Warning(s, "Stopping and closing")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getInfo(c *gin.Context) {
	data, err := json.Marshal(describe(s.usm))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func parseMode(name string) (gousm.OpMode, error) {
	switch name {
	case "", "none":
		return gousm.OpNone, nil
	case "encrypt":
		return gousm.OpEncrypt, nil
	case "decrypt":
		return gousm.OpDecrypt, nil
	}
	return gousm.OpNone, fmt.Errorf("unknown mode %q", name)
}

func (s *Server) getContainer(c *gin.Context) {
	mode, err := parseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := s.usm.Stream(mode)
	if errors.Is(err, usm.ErrKeyRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer stream.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.usm.Filename()))
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	if _, err = io.Copy(c.Writer, stream); err != nil {
		logger.Errorf(s, "streaming container: %v", err)
	}
}

func (s *Server) getElement(list func() []gousm.Element) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, err := strconv.Atoi(c.Param("ch"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var element gousm.Element
		for _, e := range list() {
			if e.ChannelNumber() == ch {
				element = e
				break
			}
		}
		if element == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%v: %d", errNoChannel, ch)})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", element.Filename()))
		c.Header("Content-Type", "application/octet-stream")
		c.Status(http.StatusOK)
		if _, err = s.usm.WriteElement(c.Writer, element); err != nil {
			logger.Errorf(s, "streaming %s: %v", element.Filename(), err)
		}
	}
}

func serveCmd() *cli.Command {
	var (
		key    string
		listen string
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve the elements of a container over HTTP",
		ArgsUsage: "<file.usm>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "stream key", Destination: &key},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen address", Value: ":8080", Destination: &listen},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, cfg, &key, &listen)
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

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return newServer(u, listen).Run(ctx)
		},
	}
}
