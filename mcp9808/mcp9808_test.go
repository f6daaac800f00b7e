package mcp9808

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/gaerbox"
	"github.com/mklimuk/gaerbox/i2c"
)

const addr = 0x18

// MockI2CBus is a mock implementation of gaerbox.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if args.Get(0) != nil {
		if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
			copy(buffer, data)
		}
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func expectIdentity(bus *MockI2CBus) {
	bus.On("WriteToAddr", mock.Anything, byte(addr), []byte{0x06}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(addr), mock.Anything).Return([]byte{0x00, 0x54}, nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(addr), []byte{0x07}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(addr), mock.Anything).Return([]byte{0x04, 0x01}, nil).Once()
}

func TestNew_Identity(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)

	dev, err := New(context.Background(), bus, addr)
	require.NoError(t, err)
	assert.Equal(t, byte(1), dev.Revision())
	assert.Equal(t, uint16(addr), dev.Address())
	assert.Equal(t, "MCP9808{addr=0x18, rev=1}", dev.String())
	assert.NoError(t, dev.Close())
	bus.AssertExpectations(t)
}

func TestOpen_IdentityMismatch(t *testing.T) {
	tests := []struct {
		name         string
		manufacturer uint16
		device       uint16
	}{
		{"manufacturer", 0x0055, 0x0400},
		{"device", 0x0054, 0x0500},
		{"device id in low byte", 0x0054, 0x0004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulator(addr, StaticTemperature(20))
			sim.SetIdentity(tt.manufacturer, tt.device)

			dev, err := Open(context.Background(), "sim", addr, WithOpener(sim.Opener()))
			assert.Nil(t, dev)
			assert.ErrorIs(t, err, ErrIdentityMismatch)
			assert.True(t, sim.Closed(), "bus must be released on failed open")
		})
	}
}

func TestOpen_RevisionIsNotChecked(t *testing.T) {
	sim := NewSimulator(addr, StaticTemperature(20))
	sim.SetIdentity(0x0054, 0x04FF)
	dev, err := Open(context.Background(), "sim", addr, WithOpener(sim.Opener()))
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), dev.Revision())
	require.NoError(t, dev.Close())
	assert.True(t, sim.Closed())
}

func TestOpen_WrongAddress(t *testing.T) {
	sim := NewSimulator(0x19, StaticTemperature(20))
	_, err := Open(context.Background(), "sim", addr, WithOpener(sim.Opener()))
	assert.ErrorIs(t, err, ErrNoAck)
	assert.True(t, sim.Closed())
}

func TestOpen_InvalidAddress(t *testing.T) {
	opened := false
	opener := func(path string) (gaerbox.I2CBusCloser, error) {
		opened = true
		return nil, nil
	}
	_, err := Open(context.Background(), "sim", 0x80, WithOpener(opener))
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.False(t, opened)
}

func TestOpen_OpenerError(t *testing.T) {
	busErr := errors.New("no such file or directory")
	opener := func(path string) (gaerbox.I2CBusCloser, error) { return nil, busErr }
	_, err := Open(context.Background(), "/dev/i2c-9", addr, WithOpener(opener))
	assert.ErrorIs(t, err, busErr)
	assert.Contains(t, err.Error(), "/dev/i2c-9")
}

func TestReadWord_ShortTransfer(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)
	ctx := context.Background()
	dev, err := New(ctx, bus, addr)
	require.NoError(t, err)

	short := fmt.Errorf("got 1 of 2 bytes: %w", gaerbox.ErrShortTransfer)
	bus.On("WriteToAddr", mock.Anything, byte(addr), []byte{0x05}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(addr), mock.Anything).Return(nil, short).Once()

	_, err = dev.ReadWord(ctx, RegAmbient)
	assert.ErrorIs(t, err, gaerbox.ErrShortTransfer)
	assert.Equal(t, byte(1), dev.Revision(), "a failed read leaves the handle untouched")
	bus.AssertExpectations(t)
}

func TestWriteWord_ShortTransfer(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)
	ctx := context.Background()
	dev, err := New(ctx, bus, addr)
	require.NoError(t, err)

	bus.On("WriteToAddr", mock.Anything, byte(addr), []byte{0x02, 0x05, 0x00}).
		Return(fmt.Errorf("sent 2 of 3 bytes: %w", gaerbox.ErrShortTransfer)).Once()

	err = dev.SetUpperAlertTemperature(ctx, 80)
	assert.ErrorIs(t, err, gaerbox.ErrShortTransfer)
	bus.AssertExpectations(t)
}

func TestReadWord_SelectError(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)
	ctx := context.Background()
	dev, err := New(ctx, bus, addr)
	require.NoError(t, err)

	busErr := errors.New("remote I/O error")
	bus.On("WriteToAddr", mock.Anything, byte(addr), []byte{0x01}).Return(busErr).Once()

	_, err = dev.GetConfig(ctx)
	assert.ErrorIs(t, err, busErr)
	// only the two identity reads made by New
	bus.AssertNumberOfCalls(t, "ReadFromAddr", 2)
}

func TestWordOps_InvalidRegister(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)
	ctx := context.Background()
	dev, err := New(ctx, bus, addr)
	require.NoError(t, err)

	_, err = dev.ReadWord(ctx, Register(0x00))
	assert.ErrorIs(t, err, ErrInvalidRegister)
	err = dev.WriteWord(ctx, Register(0x09), 0)
	assert.ErrorIs(t, err, ErrInvalidRegister)
	bus.AssertExpectations(t)
}

func TestSetTemperature_OutOfRangeNeverWrites(t *testing.T) {
	bus := new(MockI2CBus)
	expectIdentity(bus)
	ctx := context.Background()
	dev, err := New(ctx, bus, addr)
	require.NoError(t, err)

	assert.ErrorIs(t, dev.SetCriticalTemperature(ctx, 130), ErrTemperatureRange)
	assert.ErrorIs(t, dev.SetUpperAlertTemperature(ctx, -41), ErrTemperatureRange)
	assert.ErrorIs(t, dev.SetLowerAlertTemperature(ctx, 200), ErrTemperatureRange)
	bus.AssertExpectations(t)
}

// TestPlayback checks the exact byte sequences on a periph playback bus.
func TestPlayback(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: addr, W: []byte{0x06}},
			{Addr: addr, R: []byte{0x00, 0x54}},
			{Addr: addr, W: []byte{0x07}},
			{Addr: addr, R: []byte{0x04, 0x00}},
			// ambient with T_A >= T_CRIT flag
			{Addr: addr, W: []byte{0x05}},
			{Addr: addr, R: []byte{0x81, 0x90}},
			{Addr: addr, W: []byte{0x04, 0x1F, 0x10}},
			{Addr: addr, W: []byte{0x01, 0x00, 0x0C}},
			{Addr: addr, W: []byte{0x08, 0x03}},
			{Addr: addr, W: []byte{0x08}},
			{Addr: addr, R: []byte{0x03}},
			{Addr: addr, W: []byte{0x01}},
			{Addr: addr, R: []byte{0x00, 0x19}},
			{Addr: addr, W: []byte{0x01, 0x00, 0x29}},
		},
		DontPanic: true,
	}
	opener := func(path string) (gaerbox.I2CBusCloser, error) { return i2c.Wrap(pb), nil }
	ctx := context.Background()

	dev, err := Open(ctx, "1", addr, WithOpener(opener))
	require.NoError(t, err)

	r, err := dev.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reading{Celsius: 25, AboveCritical: true}, r)

	require.NoError(t, dev.SetCriticalTemperature(ctx, -15))
	require.NoError(t, dev.SetConfig(ctx, Config{AlertSelect: AlertCritical, AlertEnabled: true}))
	require.NoError(t, dev.SetResolution(ctx, Res0_0625))
	res, err := dev.Resolution(ctx)
	require.NoError(t, err)
	assert.Equal(t, Res0_0625, res)

	// interrupt mode, enabled, status asserted: clear sets bit 5 and drops bit 4
	require.NoError(t, dev.ClearInterrupt(ctx))

	// Close fails if the playback still holds operations
	assert.NoError(t, dev.Close())
}
