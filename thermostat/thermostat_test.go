package thermostat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/gaerbox/mcp9808"
)

func openSim(t *testing.T, temp float32) (*mcp9808.Dev, *mcp9808.Simulator) {
	t.Helper()
	sim := mcp9808.NewSimulator(mcp9808.DefaultAddress, mcp9808.StaticTemperature(temp))
	dev, err := mcp9808.Open(context.Background(), "sim", mcp9808.DefaultAddress, mcp9808.WithOpener(sim.Opener()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev, sim
}

func TestParseSetpoint(t *testing.T) {
	tests := []struct {
		given    string
		expected float32
		err      bool
	}{
		{"off", -40, false},
		{"OFF", -40, false},
		{"aus", -40, false},
		{"18", 18, false},
		{" 20.5 ", 20.5, false},
		{"-40", -40, false},
		{"125", 125, false},
		{"125.5", 0, true},
		{"-41", 0, true},
		{"warm", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
	}
	for _, test := range tests {
		t.Run(test.given, func(t *testing.T) {
			temp, err := ParseSetpoint(test.given)
			if test.err {
				assert.ErrorIs(t, err, ErrInvalidSetpoint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, temp)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	dev, sim := openSim(t, 17)
	require.NoError(t, dev.SetResolution(ctx, mcp9808.Res0_5))
	require.NoError(t, dev.SetConfig(ctx, mcp9808.Config{AlertMode: mcp9808.AlertInterrupt, Hysteresis: mcp9808.Hyst3}))

	require.NoError(t, Apply(ctx, dev, 18))

	cfg, err := dev.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, mcp9808.Config{AlertSelect: mcp9808.AlertCritical, AlertEnabled: true}, cfg)
	crit, err := dev.CriticalTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(18), crit)
	assert.Equal(t, uint16(mcp9808.Res0_0625), sim.Peek(mcp9808.RegResolution))

	asserted, err := dev.AlertAsserted(ctx)
	require.NoError(t, err)
	assert.False(t, asserted, "17°C is below the setpoint")
}

func TestApply_Off(t *testing.T) {
	ctx := context.Background()
	dev, _ := openSim(t, 20)
	require.NoError(t, Apply(ctx, dev, Off))

	asserted, err := dev.AlertAsserted(ctx)
	require.NoError(t, err)
	assert.True(t, asserted)
}

func TestApply_Locked(t *testing.T) {
	tests := []struct {
		name     string
		lock     mcp9808.Config
		expected error
	}{
		{"critical", mcp9808.Config{CriticalLocked: true}, ErrCriticalLocked},
		{"window", mcp9808.Config{WindowLocked: true}, ErrWindowLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dev, sim := openSim(t, 20)
			require.NoError(t, dev.SetConfig(ctx, tt.lock))
			writes := sim.Writes()

			err := Apply(ctx, dev, 18)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, writes, sim.Writes(), "nothing written after the lock check")
		})
	}
}

func TestSetWindow(t *testing.T) {
	ctx := context.Background()
	dev, _ := openSim(t, 20)

	require.NoError(t, SetWindow(ctx, dev, 10, 30))
	lower, err := dev.LowerAlertTemperature(ctx)
	require.NoError(t, err)
	upper, err := dev.UpperAlertTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(10), lower)
	assert.Equal(t, float32(30), upper)
}

func TestSetWindow_Rejected(t *testing.T) {
	ctx := context.Background()
	dev, sim := openSim(t, 20)

	writes := sim.Writes()
	assert.ErrorIs(t, SetWindow(ctx, dev, 30, 10), ErrInvalidWindow)
	assert.Equal(t, writes, sim.Writes())

	require.NoError(t, dev.SetConfig(ctx, mcp9808.Config{WindowLocked: true}))
	writes = sim.Writes()
	assert.ErrorIs(t, SetWindow(ctx, dev, 10, 30), ErrWindowLocked)
	assert.Equal(t, writes, sim.Writes(), "locked window rejected before any write")
}

func TestSetWindow_OutOfRange(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float32
	}{
		{"lower", -50, 30},
		{"upper", 10, 130},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dev, sim := openSim(t, 20)
			writes := sim.Writes()
			assert.ErrorIs(t, SetWindow(ctx, dev, tt.lower, tt.upper), mcp9808.ErrTemperatureRange)
			assert.Equal(t, writes, sim.Writes(), "no limit written")
			lower, err := dev.LowerAlertTemperature(ctx)
			require.NoError(t, err)
			assert.Equal(t, float32(0), lower)
		})
	}
}

func TestApply_OutOfRange(t *testing.T) {
	ctx := context.Background()
	dev, sim := openSim(t, 20)
	require.NoError(t, dev.SetConfig(ctx, mcp9808.Config{AlertMode: mcp9808.AlertInterrupt}))
	writes := sim.Writes()

	assert.ErrorIs(t, Apply(ctx, dev, 200), mcp9808.ErrTemperatureRange)
	assert.Equal(t, writes, sim.Writes(), "configuration left untouched")
	cfg, err := dev.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, mcp9808.Config{AlertMode: mcp9808.AlertInterrupt}, cfg)
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	dev, sim := openSim(t, 20)
	require.NoError(t, dev.SetConfig(ctx, mcp9808.Config{AlertEnabled: true, Hysteresis: mcp9808.Hyst1_5}))

	writes := sim.Writes()
	require.NoError(t, Lock(ctx, dev, false, false))
	assert.Equal(t, writes, sim.Writes())

	require.NoError(t, Lock(ctx, dev, true, false))
	cfg, err := dev.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, mcp9808.Config{AlertEnabled: true, Hysteresis: mcp9808.Hyst1_5, WindowLocked: true}, cfg)

	require.NoError(t, Lock(ctx, dev, false, true))
	cfg, err = dev.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.WindowLocked)
	assert.True(t, cfg.CriticalLocked)

	sim.PowerCycle()
	cfg, err = dev.GetConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.WindowLocked || cfg.CriticalLocked)
}
