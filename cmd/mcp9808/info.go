package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/gaerbox/cmd/mcp9808/console"
	"github.com/mklimuk/gaerbox/mcp9808"
)

type infoReport struct {
	Address       string             `yaml:"address"`
	Revision      byte               `yaml:"revision"`
	Ambient       mcp9808.Reading    `yaml:"ambient"`
	Critical      float32            `yaml:"critical"`
	Upper         float32            `yaml:"upper"`
	Lower         float32            `yaml:"lower"`
	Resolution    mcp9808.Resolution `yaml:"resolution"`
	Config        mcp9808.Config     `yaml:"config"`
	AlertAsserted bool               `yaml:"alert_asserted"`
}

func collectInfo(ctx context.Context, dev *mcp9808.Dev) (infoReport, error) {
	r := infoReport{
		Address:  fmt.Sprintf("%#x", dev.Address()),
		Revision: dev.Revision(),
	}
	var err error
	if r.Ambient, err = dev.Read(ctx); err != nil {
		return r, fmt.Errorf("could not read temperature: %w", err)
	}
	if r.Critical, err = dev.CriticalTemperature(ctx); err != nil {
		return r, fmt.Errorf("could not read critical temperature: %w", err)
	}
	if r.Upper, err = dev.UpperAlertTemperature(ctx); err != nil {
		return r, fmt.Errorf("could not read upper limit: %w", err)
	}
	if r.Lower, err = dev.LowerAlertTemperature(ctx); err != nil {
		return r, fmt.Errorf("could not read lower limit: %w", err)
	}
	if r.Resolution, err = dev.Resolution(ctx); err != nil {
		return r, fmt.Errorf("could not read resolution: %w", err)
	}
	if r.Config, err = dev.GetConfig(ctx); err != nil {
		return r, fmt.Errorf("could not read configuration: %w", err)
	}
	if r.AlertAsserted, err = dev.AlertAsserted(ctx); err != nil {
		return r, fmt.Errorf("could not read alert status: %w", err)
	}
	return r, nil
}

func printInfo(out io.Writer, r infoReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(name string, value any) {
		_, _ = fmt.Fprintf(w, "%s\t%v\n", name, value)
	}
	row("address", r.Address)
	row("revision", r.Revision)
	row("temperature", fmt.Sprintf("%s %.4f °C", console.PictoThermometer, r.Ambient.Celsius))
	row("above critical", console.Bool(r.Ambient.AboveCritical))
	row("above upper", console.Bool(r.Ambient.AboveUpper))
	row("below lower", console.Bool(r.Ambient.BelowLower))
	row("critical temperature", fmt.Sprintf("%.2f °C", r.Critical))
	row("upper limit", fmt.Sprintf("%.2f °C", r.Upper))
	row("lower limit", fmt.Sprintf("%.2f °C", r.Lower))
	row("resolution", r.Resolution)
	row("alert mode", r.Config.AlertMode)
	row("alert polarity", r.Config.AlertPolarity)
	row("alert select", r.Config.AlertSelect)
	row("alert enabled", r.Config.AlertEnabled)
	row("window locked", console.Bool(r.Config.WindowLocked))
	row("critical locked", console.Bool(r.Config.CriticalLocked))
	row("shutdown mode", r.Config.ShutdownMode)
	row("hysteresis", r.Config.Hysteresis)
	row("alert asserted", console.Bool(r.AlertAsserted))
	_ = w.Flush()
}

var infoCmd = cli.Command{
	Name:  "info",
	Usage: "print every readable register",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Value: "text",
			Usage: "output format, text or yaml",
		},
	},
	Action: func(c *cli.Context) error {
		format := c.String("format")
		if format != "text" && format != "yaml" {
			return console.Exit(1, "unknown format %q", format)
		}
		ctx, dev, err := openDev(c)
		if err != nil {
			return err
		}
		defer closeDev(dev)
		report, err := collectInfo(ctx, dev)
		if err != nil {
			return console.Fail("sensor communication error", err)
		}
		if format == "text" {
			printInfo(console.Writer(), report)
			return nil
		}
		enc := yaml.NewEncoder(console.Writer())
		defer func() { _ = enc.Close() }()
		err = enc.Encode(report)
		if err != nil {
			return console.Fail("encoding error", err)
		}
		return nil
	},
}
