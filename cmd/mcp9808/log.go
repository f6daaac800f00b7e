package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/gaerbox/cmd/mcp9808/console"
	"github.com/mklimuk/gaerbox/config"
	"github.com/mklimuk/gaerbox/influx"
	"github.com/mklimuk/gaerbox/mcp9808"
	"github.com/mklimuk/gaerbox/sampler"
	"github.com/mklimuk/gaerbox/snsctx"
)

var logCmd = cli.Command{
	Name:  "log",
	Usage: "sample the temperature into InfluxDB until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file, defaults apply when empty",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return console.Fail("configuration error", err)
		}
		s, err := newSampler(cfg)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		ctx, stop := signal.NotifyContext(snsctx.SetVerbose(c.Context, c.Bool("verbose")), os.Interrupt, syscall.SIGTERM)
		defer stop()
		console.Infof("logging %s@%#x every %s to %s", cfg.Bus, cfg.Address, cfg.Interval, cfg.Influx.URL)
		err = s.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Fail("sampler stopped", err)
		}
		return nil
	},
}

func newSampler(cfg config.Config) (*sampler.Sampler, error) {
	opener, err := busOpener(cfg.Adapter, cfg.Address, 0)
	if err != nil {
		return nil, err
	}
	// fail early on a bad url, the sampler creates its own clients
	if _, err := newSink(cfg); err != nil {
		return nil, err
	}
	open := func(ctx context.Context) (sampler.Sensor, error) {
		dev, err := mcp9808.Open(ctx, cfg.Bus, cfg.Address, mcp9808.WithOpener(opener))
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	sinks := func() (sampler.Sink, error) {
		return newSink(cfg)
	}
	return sampler.New(open, sinks,
		sampler.WithInterval(cfg.Interval),
		sampler.WithRetryDelay(cfg.RetryDelay),
	), nil
}

func newSink(cfg config.Config) (*influx.Sink, error) {
	return influx.NewSink(cfg.Influx.URL, cfg.Influx.Database, influx.WithMeasurement(cfg.Influx.Measurement))
}
