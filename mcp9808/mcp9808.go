package mcp9808

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/gaerbox"
	"github.com/mklimuk/gaerbox/i2c"
)

// Defaults used by the command line tools.
const (
	DefaultBus            = "/dev/i2c-1"
	DefaultAddress uint16 = 0x18
)

// Register is one of the eight MCP9808 register pointers.
type Register byte

const (
	RegConfig         Register = 0x01
	RegUpperAlert     Register = 0x02
	RegLowerAlert     Register = 0x03
	RegCritical       Register = 0x04
	RegAmbient        Register = 0x05
	RegManufacturerID Register = 0x06
	RegDeviceID       Register = 0x07
	RegResolution     Register = 0x08
)

func (r Register) Valid() bool {
	return r >= RegConfig && r <= RegResolution
}

func (r Register) String() string {
	switch r {
	case RegConfig:
		return "CONFIG"
	case RegUpperAlert:
		return "T_UPPER"
	case RegLowerAlert:
		return "T_LOWER"
	case RegCritical:
		return "T_CRIT"
	case RegAmbient:
		return "T_A"
	case RegManufacturerID:
		return "MANUFACTURER_ID"
	case RegDeviceID:
		return "DEVICE_ID"
	case RegResolution:
		return "RESOLUTION"
	default:
		return fmt.Sprintf("REG(%#x)", byte(r))
	}
}

const (
	manufacturerID = 0x0054
	deviceID       = 0x04
)

var (
	ErrIdentityMismatch  = errors.New("mcp9808: device identity mismatch")
	ErrInvalidRegister   = errors.New("mcp9808: invalid register")
	ErrInvalidAddress    = errors.New("mcp9808: invalid 7-bit address")
	ErrTemperatureRange  = errors.New("mcp9808: temperature out of range [-40, 125]")
	ErrInvalidResolution = errors.New("mcp9808: invalid resolution")
	ErrInvalidConfig     = errors.New("mcp9808: invalid configuration")
)

// Opener opens the bus named by path.
type Opener func(path string) (gaerbox.I2CBusCloser, error)

type Opts struct {
	Opener Opener
}

type Opt func(*Opts)

// WithOpener replaces the default periph opener.
func WithOpener(opener Opener) Opt {
	return func(o *Opts) {
		o.Opener = opener
	}
}

// Dev is an open, identity-checked MCP9808 bound to one address.
type Dev struct {
	mx       sync.Mutex
	bus      gaerbox.I2CBus
	closer   func() error
	addr     byte
	revision byte
}

var _ gaerbox.Thermometer = &Dev{}

// Open opens the bus at path, binds addr and verifies the device identity.
// Whatever was opened is closed again if any step fails.
func Open(ctx context.Context, path string, addr uint16, opts ...Opt) (*Dev, error) {
	config := Opts{Opener: i2c.OpenBus}
	for _, opt := range opts {
		opt(&config)
	}
	if addr > 0x7F {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidAddress, addr)
	}
	bus, err := config.Opener(path)
	if err != nil {
		return nil, fmt.Errorf("mcp9808: could not open bus %s: %w", path, err)
	}
	dev, err := New(ctx, bus, addr)
	if err != nil {
		if cerr := bus.Close(); cerr != nil {
			slog.Warn("could not close bus after failed open", "bus", path, "error", cerr)
		}
		return nil, err
	}
	dev.closer = bus.Close
	return dev, nil
}

// New verifies the identity of the device at addr on a bus owned by the
// caller. Close on the returned Dev leaves the bus open.
func New(ctx context.Context, bus gaerbox.I2CBus, addr uint16) (*Dev, error) {
	if addr > 0x7F {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidAddress, addr)
	}
	dev := &Dev{bus: bus, addr: byte(addr)}
	if err := dev.identify(ctx); err != nil {
		return nil, err
	}
	slog.Debug("mcp9808 found", "addr", fmt.Sprintf("%#x", addr), "revision", dev.revision)
	return dev, nil
}

func (d *Dev) identify(ctx context.Context) error {
	mid, err := d.ReadWord(ctx, RegManufacturerID)
	if err != nil {
		return fmt.Errorf("mcp9808: could not read manufacturer id: %w", err)
	}
	if mid != manufacturerID {
		return fmt.Errorf("%w: manufacturer id %#04x, expected %#04x", ErrIdentityMismatch, mid, manufacturerID)
	}
	did, err := d.ReadWord(ctx, RegDeviceID)
	if err != nil {
		return fmt.Errorf("mcp9808: could not read device id: %w", err)
	}
	if byte(did>>8) != deviceID {
		return fmt.Errorf("%w: device id %#02x, expected %#02x", ErrIdentityMismatch, byte(did>>8), deviceID)
	}
	d.revision = byte(did)
	return nil
}

// Close releases the bus if it was opened by Open. Call it once.
func (d *Dev) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer()
	d.closer = nil
	if err != nil {
		return fmt.Errorf("mcp9808: could not close bus: %w", err)
	}
	return nil
}

// Address returns the 7-bit slave address.
func (d *Dev) Address() uint16 {
	return uint16(d.addr)
}

// Revision returns the silicon revision read from the low byte of the device
// id register.
func (d *Dev) Revision() byte {
	return d.revision
}

func (d *Dev) String() string {
	return fmt.Sprintf("MCP9808{addr=%#x, rev=%d}", d.addr, d.revision)
}

// ReadWord points the device at reg and reads its 16-bit big-endian value.
func (d *Dev) ReadWord(ctx context.Context, reg Register) (uint16, error) {
	if !reg.Valid() {
		return 0, fmt.Errorf("%w: %#x", ErrInvalidRegister, byte(reg))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.bus.WriteToAddr(ctx, d.addr, []byte{byte(reg)})
	if err != nil {
		return 0, fmt.Errorf("mcp9808: could not select register %s: %w", reg, err)
	}
	resp := make([]byte, 2)
	err = d.bus.ReadFromAddr(ctx, d.addr, resp)
	if err != nil {
		return 0, fmt.Errorf("mcp9808: could not read register %s: %w", reg, err)
	}
	return binary.BigEndian.Uint16(resp), nil
}

// WriteWord writes value to reg as a single [reg, msb, lsb] transaction.
func (d *Dev) WriteWord(ctx context.Context, reg Register, value uint16) error {
	if !reg.Valid() {
		return fmt.Errorf("%w: %#x", ErrInvalidRegister, byte(reg))
	}
	var out [3]byte
	out[0] = byte(reg)
	binary.BigEndian.PutUint16(out[1:], value)
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.bus.WriteToAddr(ctx, d.addr, out[:])
	if err != nil {
		return fmt.Errorf("mcp9808: could not write register %s: %w", reg, err)
	}
	return nil
}

func (d *Dev) readByte(ctx context.Context, reg Register) (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.bus.WriteToAddr(ctx, d.addr, []byte{byte(reg)})
	if err != nil {
		return 0, fmt.Errorf("mcp9808: could not select register %s: %w", reg, err)
	}
	resp := make([]byte, 1)
	err = d.bus.ReadFromAddr(ctx, d.addr, resp)
	if err != nil {
		return 0, fmt.Errorf("mcp9808: could not read register %s: %w", reg, err)
	}
	return resp[0], nil
}

func (d *Dev) writeByte(ctx context.Context, reg Register, value byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.bus.WriteToAddr(ctx, d.addr, []byte{byte(reg), value})
	if err != nil {
		return fmt.Errorf("mcp9808: could not write register %s: %w", reg, err)
	}
	return nil
}
