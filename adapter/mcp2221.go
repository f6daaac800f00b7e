package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/gaerbox"
	"github.com/mklimuk/gaerbox/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// HID report commands
const (
	cmdStatus      = 0x10
	cmdWriteData   = 0x90
	cmdReadData    = 0x91
	cmdGetReadData = 0x40
)

// cancel current transfer, sent in the status command
const cancelTransfer = 0x10

const (
	respBusy      = 0x01
	respReadError = 0x41
	// data size byte set by the bridge when the slave did not answer
	readSizeError = 127
)

var ErrDeviceNotFound = errors.New("MCP2221 device not found")
var ErrAmbiguousDevice = errors.New("ambiguous device identification")

var _ gaerbox.I2CBusCloser = &MCP2221{}

// HIDDevice is the part of *hid.Device the bridge uses. Every command opens
// the device, writes one report and reads one response.
type HIDDevice interface {
	io.ReadWriteCloser
}

// DeviceOpener opens the HID interface of the bridge.
type DeviceOpener func() (HIDDevice, error)

type MCP2221 struct {
	mx           sync.Mutex
	open         DeviceOpener
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type Opt func(*MCP2221)

// WithIndex selects one of several connected bridges by enumeration order.
func WithIndex(index int) Opt {
	return func(d *MCP2221) {
		d.open = enumerated(index)
	}
}

func WithDeviceOpener(open DeviceOpener) Opt {
	return func(d *MCP2221) {
		d.open = open
	}
}

// WithResponseWait sets the delay between a request and reading its response.
func WithResponseWait(wait time.Duration) Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(opts ...Opt) *MCP2221 {
	d := &MCP2221{
		open:         enumerated(-1),
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// enumerated opens the bridge at index in the HID enumeration. A negative
// index requires exactly one bridge to be connected.
func enumerated(index int) DeviceOpener {
	return func() (HIDDevice, error) {
		devs := hid.Enumerate(VendorID, ProductID)
		if len(devs) == 0 {
			return nil, ErrDeviceNotFound
		}
		i := index
		if i < 0 {
			if len(devs) > 1 {
				return nil, fmt.Errorf("%w: %d bridges connected", ErrAmbiguousDevice, len(devs))
			}
			i = 0
		}
		if i >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", i)
		}
		dev, err := devs[i].Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > reportSize-4 {
		return fmt.Errorf("write of %d bytes exceeds a single report", len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == respBusy {
		slog.Debug("adapter busy", "addr", fmt.Sprintf("%#x", address))
		return gaerbox.ErrBusBusy
	}
	// the write response carries no byte count, the status report does
	d.resetBuffers()
	d.request[0] = cmdStatus
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("write status from %x failed: %w", address, err)
	}
	status := bufferToStatus(d.response)
	if int(status.LastWriteSentSize) != len(buffer) {
		return fmt.Errorf("sent %d of %d bytes to %x: %w", status.LastWriteSentSize, len(buffer), address, gaerbox.ErrShortTransfer)
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > reportSize-4 {
		return fmt.Errorf("read of %d bytes exceeds a single report", len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == respBusy {
		return gaerbox.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetReadData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == respReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	size := int(d.response[3])
	if size == readSizeError {
		return fmt.Errorf("slave %x did not answer: %w", address, gaerbox.ErrShortTransfer)
	}
	if size != len(buffer) {
		return fmt.Errorf("got %d of %d bytes: %w", size, len(buffer), gaerbox.ErrShortTransfer)
	}
	copy(buffer, d.response[4:4+size])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
		25: I2C read pending
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels a transfer left hanging on the bridge.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = cancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// Close is a no-op, the HID device is only held for the duration of a command.
func (d *MCP2221) Close() error {
	return nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("could not close adapter", "error", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "report", "\n"+hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("wrote %d of %d report bytes: %w", n, reportSize, gaerbox.ErrShortTransfer)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.responseWait):
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("read %d of %d report bytes: %w", n, reportSize, gaerbox.ErrShortTransfer)
	}
	if verbose {
		slog.Debug("read message from adapter", "report", "\n"+hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
