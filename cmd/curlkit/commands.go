package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/curlkit/internal/app"
	"github.com/samvad-hq/curlkit/internal/config"
	"github.com/samvad-hq/curlkit/internal/logger"
	"github.com/samvad-hq/curlkit/pkg/curl"
)

// errNoResponse reports an absent transfer result. The cause has already
// been logged by the transfer layer.
var errNoResponse = errors.New("no response")

// Globals are flags shared by every command.
type Globals struct {
	Timeout int  `help:"Transfer timeout in whole seconds (0 disables)." default:"3"`
	Verbose bool `short:"v" help:"Trace the transfer to stderr."`

	out io.Writer `kong:"-"`
}

// TransferFlags are the per-request arguments of the transfer commands.
type TransferFlags struct {
	URL    string   `arg:"" help:"Target URL."`
	Header []string `short:"H" sep:"none" help:"Request header as 'Name: value'. Repeatable."`
	Data   string   `short:"d" help:"Request body."`
}

func (g *Globals) transfer(method curl.Method, f TransferFlags) error {
	headers, err := curl.ParseHeaders(f.Header)
	if err != nil {
		return err
	}

	var body []byte
	if f.Data != "" {
		body = []byte(f.Data)
	}

	c := curl.New(curl.WithTimeout(g.Timeout), curl.WithVerbose(g.Verbose))
	resp, ok := c.Execute(method, f.URL, headers, body)
	if !ok {
		return errNoResponse
	}

	out := g.out
	if out == nil {
		out = os.Stdout
	}
	if _, err := out.Write(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

type GetCmd struct {
	TransferFlags `embed:""`
}

func (c *GetCmd) Run(g *Globals) error { return g.transfer(curl.MethodGet, c.TransferFlags) }

type HeadCmd struct {
	TransferFlags `embed:""`
}

func (c *HeadCmd) Run(g *Globals) error { return g.transfer(curl.MethodHead, c.TransferFlags) }

type PostCmd struct {
	TransferFlags `embed:""`
}

func (c *PostCmd) Run(g *Globals) error { return g.transfer(curl.MethodPost, c.TransferFlags) }

type PutCmd struct {
	TransferFlags `embed:""`
}

func (c *PutCmd) Run(g *Globals) error { return g.transfer(curl.MethodPut, c.TransferFlags) }

type DeleteCmd struct {
	TransferFlags `embed:""`
}

func (c *DeleteCmd) Run(g *Globals) error { return g.transfer(curl.MethodDelete, c.TransferFlags) }

// RequestCmd forwards any verb, including ones outside the known set.
type RequestCmd struct {
	Method string `short:"X" required:"" help:"Request verb, forwarded verbatim."`

	TransferFlags `embed:""`
}

func (c *RequestCmd) Run(g *Globals) error {
	return g.transfer(curl.ParseMethod(c.Method), c.TransferFlags)
}

// RunCmd drives the request catalog from configuration until interrupted.
type RunCmd struct{}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if g.Verbose {
		cfg.Verbose = true
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.InfoObj("curlkit starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, logger.Zap{L: log})
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err)
		return err
	}
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	return nil
}
