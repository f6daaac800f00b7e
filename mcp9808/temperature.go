package mcp9808

import (
	"context"
	"fmt"
	"math"
)

const (
	MinTemperature float32 = -40.0
	MaxTemperature float32 = 125.0
)

const (
	tempFlagCritical = 0x80 // T_A >= T_CRIT
	tempFlagUpper    = 0x40 // T_A > T_UPPER
	tempFlagLower    = 0x20 // T_A < T_LOWER
	tempFlagMask     = 0x1F
	tempSignBit      = 0x10
	tempWordSignBit  = 1 << 12
)

// Reading is an ambient temperature sample together with the window
// comparison flags reported in the same register.
type Reading struct {
	Celsius       float32 `yaml:"celsius"`
	AboveCritical bool    `yaml:"above_critical"`
	AboveUpper    bool    `yaml:"above_upper"`
	BelowLower    bool    `yaml:"below_lower"`
}

// DecodeTemperature converts a temperature register word to degrees Celsius.
// The three flag bits of the high byte are discarded.
func DecodeTemperature(word uint16) float32 {
	upper := byte(word>>8) & tempFlagMask
	lower := byte(word)
	temp := float32(upper&0x0F)*16 + float32(lower)/16
	if upper&tempSignBit != 0 {
		temp -= 256
	}
	return temp
}

// EncodeTemperature converts a threshold in [-40, 125] to its register word.
// Values are truncated to 1/16 °C steps, never rounded.
func EncodeTemperature(temp float32) (uint16, error) {
	if !(temp >= MinTemperature && temp <= MaxTemperature) {
		return 0, fmt.Errorf("%w: %v", ErrTemperatureRange, temp)
	}
	var word uint16
	if temp < 0 {
		temp += 256
		word = tempWordSignBit
	}
	word += uint16(math.Floor(float64(temp * 16)))
	return word, nil
}

func decodeReading(word uint16) Reading {
	flags := byte(word >> 8)
	return Reading{
		Celsius:       DecodeTemperature(word),
		AboveCritical: flags&tempFlagCritical != 0,
		AboveUpper:    flags&tempFlagUpper != 0,
		BelowLower:    flags&tempFlagLower != 0,
	}
}

func (d *Dev) readTemperature(ctx context.Context, reg Register) (float32, error) {
	word, err := d.ReadWord(ctx, reg)
	if err != nil {
		return 0, err
	}
	return DecodeTemperature(word), nil
}

func (d *Dev) writeTemperature(ctx context.Context, reg Register, temp float32) error {
	word, err := EncodeTemperature(temp)
	if err != nil {
		return err
	}
	return d.WriteWord(ctx, reg, word)
}

// Temperature reads the ambient temperature in Celsius.
func (d *Dev) Temperature(ctx context.Context) (float32, error) {
	return d.readTemperature(ctx, RegAmbient)
}

// GetTemperature implements gaerbox.Thermometer.
func (d *Dev) GetTemperature(ctx context.Context) (float32, error) {
	return d.Temperature(ctx)
}

// Read reads the ambient temperature and keeps the comparison flags.
func (d *Dev) Read(ctx context.Context) (Reading, error) {
	word, err := d.ReadWord(ctx, RegAmbient)
	if err != nil {
		return Reading{}, err
	}
	return decodeReading(word), nil
}

func (d *Dev) CriticalTemperature(ctx context.Context) (float32, error) {
	return d.readTemperature(ctx, RegCritical)
}

func (d *Dev) SetCriticalTemperature(ctx context.Context, temp float32) error {
	return d.writeTemperature(ctx, RegCritical, temp)
}

func (d *Dev) UpperAlertTemperature(ctx context.Context) (float32, error) {
	return d.readTemperature(ctx, RegUpperAlert)
}

func (d *Dev) SetUpperAlertTemperature(ctx context.Context, temp float32) error {
	return d.writeTemperature(ctx, RegUpperAlert, temp)
}

func (d *Dev) LowerAlertTemperature(ctx context.Context) (float32, error) {
	return d.readTemperature(ctx, RegLowerAlert)
}

func (d *Dev) SetLowerAlertTemperature(ctx context.Context, temp float32) error {
	return d.writeTemperature(ctx, RegLowerAlert, temp)
}
