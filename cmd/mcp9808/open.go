package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/gaerbox"
	"github.com/mklimuk/gaerbox/adapter"
	"github.com/mklimuk/gaerbox/cmd/mcp9808/console"
	"github.com/mklimuk/gaerbox/i2c"
	"github.com/mklimuk/gaerbox/mcp9808"
	"github.com/mklimuk/gaerbox/snsctx"
)

// ambient temperature reported by --adapter sim
const simTemperature float32 = 21.5

func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	addr, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(addr), nil
}

// busOpener returns the opener of the named transport. The simulator answers
// at addr. A non-zero speed is applied to periph buses.
func busOpener(name string, addr uint16, speed physic.Frequency) (mcp9808.Opener, error) {
	switch name {
	case "periph":
		if speed == 0 {
			return i2c.OpenBus, nil
		}
		return func(path string) (gaerbox.I2CBusCloser, error) {
			bus, err := i2c.Open(path)
			if err != nil {
				return nil, err
			}
			if err := bus.SetSpeed(speed); err != nil {
				slog.Warn("could not set bus speed, using driver default", "speed", speed, "error", err)
			}
			return bus, nil
		}, nil
	case "nanopi":
		return openNanoPi, nil
	case "mcp2221":
		return func(string) (gaerbox.I2CBusCloser, error) {
			return adapter.NewMCP2221(), nil
		}, nil
	case "sim":
		return mcp9808.NewSimulator(addr, mcp9808.StaticTemperature(simTemperature)).Opener(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}

// gobot bus that also owns the NanoPi adaptor
type nanoPiBus struct {
	*i2c.GobotBus
	adaptor *nanopi.Adaptor
}

func (b *nanoPiBus) Close() error {
	return errors.Join(b.GobotBus.Close(), b.adaptor.I2cBusAdaptor.Finalize())
}

func openNanoPi(path string) (gaerbox.I2CBusCloser, error) {
	npi := nanopi.NewNeoAdaptor()
	err := npi.I2cBusAdaptor.Connect()
	if err != nil {
		return nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	return &nanoPiBus{GobotBus: i2c.NewGobotBus(npi, busNumber(path)), adaptor: npi}, nil
}

// busNumber extracts N from "/dev/i2c-N" or "N", -1 selects the default bus.
func busNumber(path string) int {
	nr, err := strconv.Atoi(strings.TrimPrefix(path, "/dev/i2c-"))
	if err != nil || nr < 0 {
		return -1
	}
	return nr
}

// openDev opens the sensor selected by the global flags.
func openDev(c *cli.Context) (context.Context, *mcp9808.Dev, error) {
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	addr, err := parseAddr(c.String("addr"))
	if err != nil {
		return nil, nil, console.Exit(1, "%s", console.Red(err))
	}
	opener, err := busOpener(c.String("adapter"), addr, physic.Frequency(c.Uint("speed"))*physic.KiloHertz)
	if err != nil {
		return nil, nil, console.Exit(1, "%s", console.Red(err))
	}
	dev, err := mcp9808.Open(ctx, c.String("bus"), addr, mcp9808.WithOpener(opener))
	if err != nil {
		return nil, nil, console.Fail("could not open sensor", err)
	}
	return ctx, dev, nil
}

func closeDev(dev *mcp9808.Dev) {
	if err := dev.Close(); err != nil {
		console.Errorf("error closing sensor: %s", console.Red(err))
	}
}
