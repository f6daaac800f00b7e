package main

import (
	"errors"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/gaerbox/cmd/mcp9808/console"
	"github.com/mklimuk/gaerbox/thermostat"
)

var setCmd = cli.Command{
	Name:      "set",
	Usage:     "set the thermostat temperature of the alert output",
	ArgsUsage: "<temperature|off>",
	Description: "Configures a comparator, active-low, critical-only alert switching at the given\n" +
		"temperature in [-40, 125] °C. 'off' is short for -40.",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		setpoint, err := thermostat.ParseSetpoint(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ctx, dev, err := openDev(c)
		if err != nil {
			return err
		}
		defer closeDev(dev)
		err = thermostat.Apply(ctx, dev, setpoint)
		if err != nil {
			return lockedOrFail(err)
		}
		console.PInfof(console.PictoThermometer, "setpoint: %s", console.White(formatCelsius(setpoint)))
		return nil
	},
}

var windowCmd = cli.Command{
	Name:      "window",
	Usage:     "set the lower and upper alert limits",
	ArgsUsage: "<lower> <upper>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		lower, err := strconv.ParseFloat(c.Args().Get(0), 32)
		if err != nil {
			return console.Exit(1, "invalid lower limit: %s", console.Red(err))
		}
		upper, err := strconv.ParseFloat(c.Args().Get(1), 32)
		if err != nil {
			return console.Exit(1, "invalid upper limit: %s", console.Red(err))
		}
		ctx, dev, err := openDev(c)
		if err != nil {
			return err
		}
		defer closeDev(dev)
		err = thermostat.SetWindow(ctx, dev, float32(lower), float32(upper))
		if err != nil {
			return lockedOrFail(err)
		}
		console.PInfof(console.PictoPin, "window: %s .. %s",
			console.White(formatCelsius(float32(lower))), console.White(formatCelsius(float32(upper))))
		return nil
	},
}

var confirm = console.Confirm

var lockCmd = cli.Command{
	Name:  "lock",
	Usage: "lock the alert limits until the next power cycle",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "window", Usage: "lock the upper and lower limits"},
		&cli.BoolFlag{Name: "critical", Usage: "lock the critical temperature"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		window, critical := c.Bool("window"), c.Bool("critical")
		if !window && !critical {
			return console.Exit(1, "nothing to lock, use --window and/or --critical")
		}
		if !c.Bool("yes") {
			ok, err := confirm("locks can only be released by a power cycle, continue?")
			if err != nil {
				return console.Fail("prompt error", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		ctx, dev, err := openDev(c)
		if err != nil {
			return err
		}
		defer closeDev(dev)
		err = thermostat.Lock(ctx, dev, window, critical)
		if err != nil {
			return console.Fail("sensor communication error", err)
		}
		console.PInfof(console.PictoKey, "locked window=%s critical=%s", console.Bool(window), console.Bool(critical))
		return nil
	},
}

var clearCmd = cli.Command{
	Name:  "clear",
	Usage: "clear a latched interrupt",
	Action: func(c *cli.Context) error {
		ctx, dev, err := openDev(c)
		if err != nil {
			return err
		}
		defer closeDev(dev)
		err = dev.ClearInterrupt(ctx)
		if err != nil {
			return console.Fail("sensor communication error", err)
		}
		console.Infof("interrupt cleared")
		return nil
	},
}

func lockedOrFail(err error) error {
	if errors.Is(err, thermostat.ErrCriticalLocked) || errors.Is(err, thermostat.ErrWindowLocked) {
		return console.Exit(2, "%s %s", console.PictoStop, console.Red(err))
	}
	return console.Fail("could not configure sensor", err)
}

func formatCelsius(t float32) string {
	return strconv.FormatFloat(float64(t), 'f', 2, 32) + " °C"
}
