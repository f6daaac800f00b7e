// Package thermostat holds the caller-side policies built on the MCP9808
// driver: the gärbox setpoint, alert window updates and limit locking. Lock
// bits are checked here with GetConfig before any mutation, the driver itself
// writes unconditionally.
package thermostat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mklimuk/gaerbox/mcp9808"
)

// Off is the setpoint used by "off": the lowest writable temperature keeps
// the critical alert asserted at any operating temperature.
const Off = mcp9808.MinTemperature

var (
	ErrCriticalLocked  = errors.New("thermostat: critical temperature is locked")
	ErrWindowLocked    = errors.New("thermostat: alert window is locked")
	ErrInvalidSetpoint = errors.New("thermostat: invalid setpoint")
	ErrInvalidWindow   = errors.New("thermostat: lower limit above upper limit")
)

// Sensor is the part of *mcp9808.Dev the policies use.
type Sensor interface {
	GetConfig(ctx context.Context) (mcp9808.Config, error)
	SetConfig(ctx context.Context, c mcp9808.Config) error
	SetCriticalTemperature(ctx context.Context, temp float32) error
	SetUpperAlertTemperature(ctx context.Context, temp float32) error
	SetLowerAlertTemperature(ctx context.Context, temp float32) error
	SetResolution(ctx context.Context, res mcp9808.Resolution) error
}

var _ Sensor = &mcp9808.Dev{}

// ParseSetpoint accepts "off" (or "aus") or a temperature in Celsius within
// the writable range.
func ParseSetpoint(arg string) (float32, error) {
	arg = strings.TrimSpace(arg)
	if strings.EqualFold(arg, "off") || strings.EqualFold(arg, "aus") {
		return Off, nil
	}
	val, err := strconv.ParseFloat(arg, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a temperature", ErrInvalidSetpoint, arg)
	}
	temp := float32(val)
	if !(temp >= mcp9808.MinTemperature && temp <= mcp9808.MaxTemperature) {
		return 0, fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidSetpoint, temp, mcp9808.MinTemperature, mcp9808.MaxTemperature)
	}
	return temp, nil
}

func checkUnlocked(cfg mcp9808.Config) error {
	if cfg.CriticalLocked {
		return ErrCriticalLocked
	}
	if cfg.WindowLocked {
		return ErrWindowLocked
	}
	return nil
}

// checkRange rejects any temperature the registers cannot hold so that a
// policy fails before its first write.
func checkRange(temps ...float32) error {
	for _, t := range temps {
		if _, err := mcp9808.EncodeTemperature(t); err != nil {
			return fmt.Errorf("thermostat: %w", err)
		}
	}
	return nil
}

// Apply turns the alert output into a thermostat switching at setpoint: a
// comparator, active-low, critical-only alert with full resolution
// conversions.
func Apply(ctx context.Context, dev Sensor, setpoint float32) error {
	if err := checkRange(setpoint); err != nil {
		return err
	}
	cfg, err := dev.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("thermostat: could not read configuration: %w", err)
	}
	if err := checkUnlocked(cfg); err != nil {
		return err
	}
	err = dev.SetConfig(ctx, mcp9808.Config{
		AlertMode:      mcp9808.AlertComparator,
		AlertPolarity:  mcp9808.ActiveLow,
		AlertSelect:    mcp9808.AlertCritical,
		AlertEnabled:   true,
		WindowLocked:   cfg.WindowLocked,
		CriticalLocked: cfg.CriticalLocked,
		ShutdownMode:   mcp9808.ContinuousConversion,
		Hysteresis:     mcp9808.Hyst0,
	})
	if err != nil {
		return fmt.Errorf("thermostat: could not write configuration: %w", err)
	}
	err = dev.SetCriticalTemperature(ctx, setpoint)
	if err != nil {
		return fmt.Errorf("thermostat: could not set critical temperature: %w", err)
	}
	err = dev.SetResolution(ctx, mcp9808.Res0_0625)
	if err != nil {
		return fmt.Errorf("thermostat: could not set resolution: %w", err)
	}
	slog.Debug("thermostat applied", "setpoint", setpoint)
	return nil
}

// SetWindow writes the alert window limits unless the window is locked.
func SetWindow(ctx context.Context, dev Sensor, lower, upper float32) error {
	if lower > upper {
		return fmt.Errorf("%w: %v > %v", ErrInvalidWindow, lower, upper)
	}
	if err := checkRange(lower, upper); err != nil {
		return err
	}
	cfg, err := dev.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("thermostat: could not read configuration: %w", err)
	}
	if cfg.WindowLocked {
		return ErrWindowLocked
	}
	err = dev.SetLowerAlertTemperature(ctx, lower)
	if err != nil {
		return fmt.Errorf("thermostat: could not set lower limit: %w", err)
	}
	err = dev.SetUpperAlertTemperature(ctx, upper)
	if err != nil {
		return fmt.Errorf("thermostat: could not set upper limit: %w", err)
	}
	return nil
}

// Lock sets the requested lock bits and keeps the rest of the configuration.
// The bits stay set until the device is power cycled.
func Lock(ctx context.Context, dev Sensor, window, critical bool) error {
	if !window && !critical {
		return nil
	}
	cfg, err := dev.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("thermostat: could not read configuration: %w", err)
	}
	cfg.WindowLocked = cfg.WindowLocked || window
	cfg.CriticalLocked = cfg.CriticalLocked || critical
	err = dev.SetConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("thermostat: could not write lock bits: %w", err)
	}
	slog.Info("limits locked until power cycle", "window", cfg.WindowLocked, "critical", cfg.CriticalLocked)
	return nil
}
