package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/gaerbox/config"
	"github.com/mklimuk/gaerbox/mcp9808"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run(os.Args))
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "mcp9808"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "MCP9808 temperature sensor tool"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "periph",
			Usage:   fmt.Sprintf("bus transport, one of %v", config.Adapters),
		},
		&cli.StringFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Value:   mcp9808.DefaultBus,
			Usage:   "i2c bus device or periph bus name",
		},
		&cli.StringFlag{
			Name:  "addr",
			Value: fmt.Sprintf("%x", mcp9808.DefaultAddress),
			Usage: "7-bit slave address in hex",
		},
		&cli.UintFlag{
			Name:  "speed",
			Usage: "bus clock in kHz for the periph adapter, 0 keeps the driver default",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	// exit codes are handled by run
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = cli.Commands{
		&infoCmd,
		&setCmd,
		&windowCmd,
		&lockCmd,
		&clearCmd,
		&logCmd,
		&adapterCmd,
		&usbCmd,
	}
	return app
}

func run(args []string) int {
	err := newApp().Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		log.Printf("unexpected error: %v", err)
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}
