package mcp9808

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/mklimuk/gaerbox"
)

// TemperatureBehaviorFunc produces the ambient temperature seen by a
// Simulator.
type TemperatureBehaviorFunc func(ctx context.Context) (float32, error)

var ErrNoAck = errors.New("sim: address not acknowledged")

const (
	// limit registers implement bits 12..2 only (0.25°C steps)
	limitMask  uint16 = 0x1FFC
	powerUpRes        = Res0_0625
)

var _ gaerbox.I2CBusCloser = &Simulator{}

// Simulator emulates the register file of one MCP9808 so the driver and its
// callers can run without hardware. Lock bits are sticky until PowerCycle and,
// once set, make the matching limit registers read-only.
type Simulator struct {
	mx        sync.Mutex
	addr      byte
	behavior  TemperatureBehaviorFunc
	pointer   Register
	config    uint16
	upper     uint16
	lower     uint16
	critical  uint16
	res       byte
	latched   bool
	open      bool
	writes    int
	mfrID     uint16
	deviceID  uint16
	readFault error
}

// NewSimulator returns a powered-up device answering at addr.
func NewSimulator(addr uint16, behavior TemperatureBehaviorFunc) *Simulator {
	s := &Simulator{
		addr:     byte(addr),
		behavior: behavior,
		mfrID:    manufacturerID,
		deviceID: uint16(deviceID) << 8,
		open:     true,
	}
	s.PowerCycle()
	return s
}

// StaticTemperature is a behavior that always reports temp.
func StaticTemperature(temp float32) TemperatureBehaviorFunc {
	return func(ctx context.Context) (float32, error) { return temp, nil }
}

// Opener returns an opener handing out this simulator, reopening it if it was
// closed.
func (s *Simulator) Opener() Opener {
	return func(path string) (gaerbox.I2CBusCloser, error) {
		s.mx.Lock()
		defer s.mx.Unlock()
		s.open = true
		return s, nil
	}
}

// PowerCycle restores the power-on register values.
func (s *Simulator) PowerCycle() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.config = 0
	s.upper = 0
	s.lower = 0
	s.critical = 0
	s.res = byte(powerUpRes)
	s.latched = false
	s.pointer = RegAmbient
}

// SetIdentity overrides the identification registers.
func (s *Simulator) SetIdentity(manufacturer, device uint16) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.mfrID = manufacturer
	s.deviceID = device
}

// FailReads makes every data read fail with err until called with nil.
func (s *Simulator) FailReads(err error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.readFault = err
}

// Peek returns the raw value of a register without bus traffic.
func (s *Simulator) Peek(reg Register) uint16 {
	s.mx.Lock()
	defer s.mx.Unlock()
	switch reg {
	case RegResolution:
		return uint16(s.res)
	case RegConfig:
		return s.config
	}
	return s.word(context.Background(), reg)
}

// Writes returns how many register writes (pointer plus data) were received.
func (s *Simulator) Writes() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.writes
}

// Closed reports whether the simulator was closed since it was last opened.
func (s *Simulator) Closed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return !s.open
}

func (s *Simulator) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.check(address); err != nil {
		return err
	}
	if len(buffer) == 0 {
		return nil
	}
	reg := Register(buffer[0])
	if !reg.Valid() {
		return fmt.Errorf("sim: invalid register pointer %#x", buffer[0])
	}
	s.pointer = reg
	if len(buffer) == 1 {
		return nil
	}
	s.writes++
	if reg == RegResolution {
		if len(buffer) != 2 {
			return fmt.Errorf("sim: resolution write of %d bytes", len(buffer))
		}
		s.res = buffer[1] & 0x03
		return nil
	}
	if len(buffer) != 3 {
		return fmt.Errorf("sim: word write of %d bytes", len(buffer))
	}
	s.writeWord(reg, uint16(buffer[1])<<8|uint16(buffer[2]))
	return nil
}

func (s *Simulator) writeWord(reg Register, value uint16) {
	windowLocked := s.config&cfgWindowLocked != 0
	criticalLocked := s.config&cfgCriticalLocked != 0
	switch reg {
	case RegConfig:
		if value&cfgInterruptClear != 0 {
			s.latched = false
		}
		locks := s.config & (cfgWindowLocked | cfgCriticalLocked)
		value &^= cfgAlertStatus | cfgInterruptClear
		if locks != 0 {
			// mode and output control are frozen while locked
			frozen := cfgAlertMode | cfgAlertEnabled
			value = value&^frozen | s.config&frozen
		}
		s.config = value | locks
	case RegUpperAlert:
		if !windowLocked {
			s.upper = value & limitMask
		}
	case RegLowerAlert:
		if !windowLocked {
			s.lower = value & limitMask
		}
	case RegCritical:
		if !criticalLocked {
			s.critical = value & limitMask
		}
	}
	// T_A and the identification registers ignore writes
}

func (s *Simulator) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.check(address); err != nil {
		return err
	}
	if s.readFault != nil {
		return s.readFault
	}
	if s.pointer == RegResolution {
		for i := range buffer {
			buffer[i] = s.res
		}
		return nil
	}
	if len(buffer) != 2 {
		return fmt.Errorf("sim: read of %d bytes from %s: %w", len(buffer), s.pointer, gaerbox.ErrShortTransfer)
	}
	var word uint16
	if s.pointer == RegConfig {
		word = s.configWord(ctx)
	} else {
		word = s.word(ctx, s.pointer)
	}
	buffer[0] = byte(word >> 8)
	buffer[1] = byte(word)
	return nil
}

func (s *Simulator) check(address byte) error {
	if !s.open {
		return fmt.Errorf("sim: bus closed")
	}
	if address != s.addr {
		return fmt.Errorf("%w: %#x", ErrNoAck, address)
	}
	return nil
}

func (s *Simulator) word(ctx context.Context, reg Register) uint16 {
	switch reg {
	case RegUpperAlert:
		return s.upper
	case RegLowerAlert:
		return s.lower
	case RegCritical:
		return s.critical
	case RegAmbient:
		return s.ambient(ctx)
	case RegManufacturerID:
		return s.mfrID
	case RegDeviceID:
		return s.deviceID
	}
	return 0
}

func (s *Simulator) ambientCelsius(ctx context.Context) float32 {
	if s.behavior == nil {
		return 0
	}
	t, err := s.behavior(ctx)
	if err != nil {
		return 0
	}
	return t
}

func (s *Simulator) ambient(ctx context.Context) uint16 {
	t := s.ambientCelsius(ctx)
	word := encodeAmbient(t, Resolution(s.res))
	var flags uint16
	if t >= DecodeTemperature(s.critical) {
		flags |= uint16(tempFlagCritical) << 8
	}
	if t > DecodeTemperature(s.upper) {
		flags |= uint16(tempFlagUpper) << 8
	}
	if t < DecodeTemperature(s.lower) {
		flags |= uint16(tempFlagLower) << 8
	}
	return word | flags
}

func (s *Simulator) configWord(ctx context.Context) uint16 {
	word := s.config
	if word&cfgAlertEnabled == 0 {
		s.latched = false
		return word
	}
	t := s.ambientCelsius(ctx)
	crit := t >= DecodeTemperature(s.critical)
	cond := crit
	if word&cfgAlertSelect == 0 {
		cond = cond || t > DecodeTemperature(s.upper) || t < DecodeTemperature(s.lower)
	}
	asserted := cond
	if word&cfgAlertMode != 0 {
		// interrupt mode latches window events, T_CRIT stays comparator-like
		if cond && !crit {
			s.latched = true
		}
		asserted = s.latched || crit
	}
	if asserted {
		word |= cfgAlertStatus
	}
	return word
}

func encodeAmbient(t float32, res Resolution) uint16 {
	step := res.Step()
	if step == 0 {
		step = Res0_0625.Step()
	}
	t = float32(math.Floor(float64(t/step))) * step
	if t > 255.9375 {
		t = 255.9375
	}
	if t < -255.9375 {
		t = -255.9375
	}
	var word uint16
	if t < 0 {
		t += 256
		word = tempWordSignBit
	}
	return word + uint16(t*16)&0x0FFF
}

func (s *Simulator) Release(ctx context.Context) error {
	return nil
}

func (s *Simulator) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.open = false
	return nil
}
