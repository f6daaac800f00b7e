package gaerbox

import (
	"context"
	"fmt"
	"io"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrShortTransfer is returned by transports when fewer bytes than requested
// were moved over the bus in either direction.
var ErrShortTransfer = fmt.Errorf("short i2c transfer")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// I2CBusCloser is a bus owned by whoever opened it.
type I2CBusCloser interface {
	I2CBus
	io.Closer
}

// Thermometer is implemented by every temperature sensor in this module.
type Thermometer interface {
	GetTemperature(ctx context.Context) (float32, error)
}
