package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mklimuk/gaerbox"
	"github.com/mklimuk/gaerbox/snsctx"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ gaerbox.I2CBusCloser = &GobotBus{}

type dialer func(address int) (io.ReadWriteCloser, error)

// GobotBus exposes a gobot I2C connector (NanoPi, Raspberry Pi, ...) as a
// module bus. One gobot connection is kept per slave address.
type GobotBus struct {
	mx    sync.Mutex
	dial  dialer
	conns map[byte]io.ReadWriteCloser
}

// NewGobotBus uses the given bus number of the connector; a negative number
// selects the connector's default bus.
func NewGobotBus(conn gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = conn.DefaultI2cBus()
	}
	return newGobotBus(func(address int) (io.ReadWriteCloser, error) {
		c, err := conn.GetI2cConnection(address, busNr)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func newGobotBus(dial dialer) *GobotBus {
	return &GobotBus{dial: dial, conns: make(map[byte]io.ReadWriteCloser)}
}

func (b *GobotBus) connection(address byte) (io.ReadWriteCloser, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.dial(int(address))
	if err != nil {
		return nil, fmt.Errorf("could not get i2c connection for %x: %w", address, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("read from %x: got %d of %d bytes: %w", address, n, len(buffer), gaerbox.ErrShortTransfer)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c read", "addr", fmt.Sprintf("%#x", address), "data", hex.EncodeToString(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.connection(address)
	if err != nil {
		return err
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c write", "addr", fmt.Sprintf("%#x", address), "data", hex.EncodeToString(buffer))
	}
	n, err := c.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("write to %x: sent %d of %d bytes: %w", address, n, len(buffer), gaerbox.ErrShortTransfer)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened so far. The connector itself stays
// with the caller.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var first error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("could not close i2c connection %x: %w", addr, err)
		}
		delete(b.conns, addr)
	}
	return first
}
