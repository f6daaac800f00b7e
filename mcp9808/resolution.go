package mcp9808

import (
	"context"
	"fmt"
)

// Resolution selects the conversion precision. Finer steps cost conversion
// time (30 ms at 0.5°C up to 250 ms at 0.0625°C).
type Resolution byte

const (
	Res0_5 Resolution = iota
	Res0_25
	Res0_125
	Res0_0625
)

func (r Resolution) Valid() bool {
	return r <= Res0_0625
}

// Step returns the temperature step in Celsius, 0 for invalid values.
func (r Resolution) Step() float32 {
	switch r {
	case Res0_5:
		return 0.5
	case Res0_25:
		return 0.25
	case Res0_125:
		return 0.125
	case Res0_0625:
		return 0.0625
	default:
		return 0
	}
}

func (r Resolution) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Resolution(%d)", byte(r))
	}
	return fmt.Sprintf("%g°C", r.Step())
}

func (r Resolution) MarshalYAML() (interface{}, error) { return r.Step(), nil }

// Resolution reads the resolution register as is.
func (d *Dev) Resolution(ctx context.Context) (Resolution, error) {
	b, err := d.readByte(ctx, RegResolution)
	if err != nil {
		return 0, err
	}
	return Resolution(b), nil
}

func (d *Dev) SetResolution(ctx context.Context, res Resolution) error {
	if !res.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidResolution, res)
	}
	return d.writeByte(ctx, RegResolution, byte(res))
}
