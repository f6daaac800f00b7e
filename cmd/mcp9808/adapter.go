package main

import (
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/gaerbox/adapter"
	"github.com/mklimuk/gaerbox/cmd/mcp9808/console"
	"github.com/mklimuk/gaerbox/snsctx"
)

var indexFlag = &cli.IntFlag{
	Name:  "index",
	Value: -1,
	Usage: "bridge to use when several are connected",
}

var adapterCmd = cli.Command{
	Name:  "adapter",
	Usage: "MCP2221 USB bridge maintenance",
	Subcommands: cli.Commands{
		&adapterStatusCmd,
		&adapterReleaseCmd,
	},
}

func newBridge(c *cli.Context) *adapter.MCP2221 {
	if c.Int("index") >= 0 {
		return adapter.NewMCP2221(adapter.WithIndex(c.Int("index")))
	}
	return adapter.NewMCP2221()
}

func printStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(console.Writer())
	defer func() { _ = enc.Close() }()
	err := enc.Encode(status)
	if err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}

var adapterStatusCmd = cli.Command{
	Name:  "status",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := newBridge(c).Status(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printStatus(status)
	},
}

var adapterReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a hanging transfer and release the bus",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		status, err := newBridge(c).ReleaseBus(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printStatus(status)
	},
}
