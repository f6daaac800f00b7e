package mcp9808

import (
	"context"
	"fmt"
)

// Configuration register bits.
const (
	cfgAlertMode      uint16 = 1 << 0
	cfgAlertPolarity  uint16 = 1 << 1
	cfgAlertSelect    uint16 = 1 << 2
	cfgAlertEnabled   uint16 = 1 << 3
	cfgAlertStatus    uint16 = 1 << 4
	cfgInterruptClear uint16 = 1 << 5
	cfgWindowLocked   uint16 = 1 << 6
	cfgCriticalLocked uint16 = 1 << 7
	cfgShutdown       uint16 = 1 << 8
	cfgHystMask       uint16 = 0x0600
	cfgHystPos               = 9
)

type AlertMode byte

const (
	// AlertComparator keeps the alert output asserted while the condition
	// holds (power-up default).
	AlertComparator AlertMode = iota
	// AlertInterrupt latches the alert output until ClearInterrupt.
	AlertInterrupt
)

func (m AlertMode) String() string {
	switch m {
	case AlertComparator:
		return "comparator"
	case AlertInterrupt:
		return "interrupt"
	default:
		return fmt.Sprintf("AlertMode(%d)", byte(m))
	}
}

func (m AlertMode) MarshalYAML() (interface{}, error) { return m.String(), nil }

type AlertPolarity byte

const (
	// ActiveLow requires a pull-up resistor (power-up default).
	ActiveLow AlertPolarity = iota
	ActiveHigh
)

func (p AlertPolarity) String() string {
	switch p {
	case ActiveLow:
		return "active-low"
	case ActiveHigh:
		return "active-high"
	default:
		return fmt.Sprintf("AlertPolarity(%d)", byte(p))
	}
}

func (p AlertPolarity) MarshalYAML() (interface{}, error) { return p.String(), nil }

type AlertSelect byte

const (
	// AlertAll asserts the output for T_UPPER, T_LOWER and T_CRIT
	// (power-up default).
	AlertAll AlertSelect = iota
	// AlertCritical asserts the output only for T_A > T_CRIT.
	AlertCritical
)

func (s AlertSelect) String() string {
	switch s {
	case AlertAll:
		return "all"
	case AlertCritical:
		return "critical-only"
	default:
		return fmt.Sprintf("AlertSelect(%d)", byte(s))
	}
}

func (s AlertSelect) MarshalYAML() (interface{}, error) { return s.String(), nil }

type ShutdownMode byte

const (
	ContinuousConversion ShutdownMode = iota
	Shutdown
)

func (m ShutdownMode) String() string {
	switch m {
	case ContinuousConversion:
		return "continuous"
	case Shutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("ShutdownMode(%d)", byte(m))
	}
}

func (m ShutdownMode) MarshalYAML() (interface{}, error) { return m.String(), nil }

type Hysteresis byte

const (
	Hyst0 Hysteresis = iota
	Hyst1_5
	Hyst3
	Hyst6
)

// Celsius returns the hysteresis margin.
func (h Hysteresis) Celsius() float32 {
	switch h {
	case Hyst1_5:
		return 1.5
	case Hyst3:
		return 3.0
	case Hyst6:
		return 6.0
	default:
		return 0
	}
}

func (h Hysteresis) String() string {
	if h > Hyst6 {
		return fmt.Sprintf("Hysteresis(%d)", byte(h))
	}
	return fmt.Sprintf("+%.1f°C", h.Celsius())
}

func (h Hysteresis) MarshalYAML() (interface{}, error) { return h.Celsius(), nil }

// Config mirrors the settable fields of the configuration register. It is
// always read and written as a whole word.
type Config struct {
	AlertMode      AlertMode     `yaml:"alert_mode"`
	AlertPolarity  AlertPolarity `yaml:"alert_polarity"`
	AlertSelect    AlertSelect   `yaml:"alert_select"`
	AlertEnabled   bool          `yaml:"alert_enabled"`
	WindowLocked   bool          `yaml:"window_locked"`
	CriticalLocked bool          `yaml:"critical_locked"`
	ShutdownMode   ShutdownMode  `yaml:"shutdown_mode"`
	Hysteresis     Hysteresis    `yaml:"hysteresis"`
}

// Validate reports enum fields holding values the register cannot express.
func (c Config) Validate() error {
	switch {
	case c.AlertMode > AlertInterrupt:
		return fmt.Errorf("%w: alert mode %d", ErrInvalidConfig, c.AlertMode)
	case c.AlertPolarity > ActiveHigh:
		return fmt.Errorf("%w: alert polarity %d", ErrInvalidConfig, c.AlertPolarity)
	case c.AlertSelect > AlertCritical:
		return fmt.Errorf("%w: alert select %d", ErrInvalidConfig, c.AlertSelect)
	case c.ShutdownMode > Shutdown:
		return fmt.Errorf("%w: shutdown mode %d", ErrInvalidConfig, c.ShutdownMode)
	case c.Hysteresis > Hyst6:
		return fmt.Errorf("%w: hysteresis %d", ErrInvalidConfig, c.Hysteresis)
	}
	return nil
}

// DecodeConfig unpacks a configuration word. The alert status and interrupt
// clear bits are not part of Config.
func DecodeConfig(word uint16) Config {
	c := Config{
		AlertEnabled:   word&cfgAlertEnabled != 0,
		WindowLocked:   word&cfgWindowLocked != 0,
		CriticalLocked: word&cfgCriticalLocked != 0,
		Hysteresis:     Hysteresis((word & cfgHystMask) >> cfgHystPos),
	}
	if word&cfgAlertMode != 0 {
		c.AlertMode = AlertInterrupt
	}
	if word&cfgAlertPolarity != 0 {
		c.AlertPolarity = ActiveHigh
	}
	if word&cfgAlertSelect != 0 {
		c.AlertSelect = AlertCritical
	}
	if word&cfgShutdown != 0 {
		c.ShutdownMode = Shutdown
	}
	return c
}

// EncodeConfig packs c into a configuration word with the status and
// interrupt clear bits cleared.
func EncodeConfig(c Config) uint16 {
	var word uint16
	if c.AlertMode == AlertInterrupt {
		word |= cfgAlertMode
	}
	if c.AlertPolarity == ActiveHigh {
		word |= cfgAlertPolarity
	}
	if c.AlertSelect == AlertCritical {
		word |= cfgAlertSelect
	}
	if c.AlertEnabled {
		word |= cfgAlertEnabled
	}
	if c.WindowLocked {
		word |= cfgWindowLocked
	}
	if c.CriticalLocked {
		word |= cfgCriticalLocked
	}
	if c.ShutdownMode == Shutdown {
		word |= cfgShutdown
	}
	word |= (uint16(c.Hysteresis) << cfgHystPos) & cfgHystMask
	return word
}

func (d *Dev) GetConfig(ctx context.Context) (Config, error) {
	word, err := d.ReadWord(ctx, RegConfig)
	if err != nil {
		return Config{}, err
	}
	return DecodeConfig(word), nil
}

// SetConfig overwrites the whole configuration register.
func (d *Dev) SetConfig(ctx context.Context, c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return d.WriteWord(ctx, RegConfig, EncodeConfig(c))
}

// AlertAsserted reports the alert output status bit.
func (d *Dev) AlertAsserted(ctx context.Context) (bool, error) {
	word, err := d.ReadWord(ctx, RegConfig)
	if err != nil {
		return false, err
	}
	return word&cfgAlertStatus != 0, nil
}

// ClearInterrupt releases a latched interrupt-mode alert.
func (d *Dev) ClearInterrupt(ctx context.Context) error {
	word, err := d.ReadWord(ctx, RegConfig)
	if err != nil {
		return err
	}
	word &^= cfgAlertStatus
	word |= cfgInterruptClear
	return d.WriteWord(ctx, RegConfig, word)
}
