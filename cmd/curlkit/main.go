package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/samvad-hq/curlkit/internal/logger"
)

// CLI is the curlkit command tree.
type CLI struct {
	Globals

	Get     GetCmd     `cmd:"" help:"Fetch a URL with GET."`
	Head    HeadCmd    `cmd:"" help:"Send a HEAD request; prints nothing on success."`
	Post    PostCmd    `cmd:"" help:"POST a body to a URL."`
	Put     PutCmd     `cmd:"" help:"PUT a body to a URL."`
	Delete  DeleteCmd  `cmd:"" help:"Send a DELETE request."`
	Request RequestCmd `cmd:"" help:"Send a request with an arbitrary verb."`
	Run     RunCmd     `cmd:"" help:"Execute the configured request catalog and deliver results to sinks."`
}

func main() {
	cli := &CLI{}
	cliCtx := kong.Parse(cli,
		kong.Name("curlkit"),
		kong.Description("Perform HTTP transfers and run request catalogs."),
		kong.UsageOnError(),
	)

	cli.Globals.out = os.Stdout
	if cliCtx.Command() != "run" {
		logger.InitConsole(os.Stderr, "error")
	}

	err := cliCtx.Run(&cli.Globals)
	_ = logger.Close()
	cliCtx.FatalIfErrorf(err)
}
