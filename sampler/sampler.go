// Package sampler periodically reads a thermometer and ships the readings to
// a sink, reconnecting both from scratch after any failure.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/gaerbox"
)

type State int

const (
	Disconnected State = iota
	Connected
	Sampling
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultInterval   = 5 * time.Second
	DefaultRetryDelay = 5 * time.Second
)

// Sensor is an open thermometer owned by the sampler until Close.
type Sensor interface {
	gaerbox.Thermometer
	Close() error
}

// SensorOpener opens a fresh sensor for every connection attempt.
type SensorOpener func(ctx context.Context) (Sensor, error)

// Sample is one reading with the time it was requested at.
type Sample struct {
	Celsius float32
	Time    time.Time
}

type Sink interface {
	Write(ctx context.Context, sample Sample) error
}

// SinkFactory creates a new sink client for every connection.
type SinkFactory func() (Sink, error)

type TransitionFunc func(from, to State)

type Sampler struct {
	mx         sync.Mutex
	state      State
	open       SensorOpener
	newSink    SinkFactory
	interval   time.Duration
	retryDelay time.Duration
	onChange   TransitionFunc
	now        func() time.Time
}

type Opt func(*Sampler)

func WithInterval(interval time.Duration) Opt {
	return func(s *Sampler) {
		s.interval = interval
	}
}

func WithRetryDelay(delay time.Duration) Opt {
	return func(s *Sampler) {
		s.retryDelay = delay
	}
}

// WithTransitionHook registers fn to be called on every state change. It
// runs on the sampling goroutine and must not block.
func WithTransitionHook(fn TransitionFunc) Opt {
	return func(s *Sampler) {
		s.onChange = fn
	}
}

func WithClock(now func() time.Time) Opt {
	return func(s *Sampler) {
		s.now = now
	}
}

func New(open SensorOpener, newSink SinkFactory, opts ...Opt) *Sampler {
	s := &Sampler{
		open:       open,
		newSink:    newSink,
		interval:   DefaultInterval,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sampler) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *Sampler) transition(to State) {
	s.mx.Lock()
	from := s.state
	s.state = to
	s.mx.Unlock()
	if from == to {
		return
	}
	slog.Debug("sampler state changed", "from", from, "to", to)
	if s.onChange != nil {
		s.onChange(from, to)
	}
}

// Run samples until ctx is done and returns ctx.Err(). Failures are logged
// and followed by the retry delay and a new connection.
func (s *Sampler) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("sampling interrupted", "error", err, "retry", s.retryDelay)
		if !wait(ctx, s.retryDelay) {
			return ctx.Err()
		}
	}
}

func (s *Sampler) session(ctx context.Context) error {
	sink, err := s.newSink()
	if err != nil {
		return fmt.Errorf("could not create sink: %w", err)
	}
	sensor, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("could not open sensor: %w", err)
	}
	s.transition(Connected)
	defer func() {
		if err := sensor.Close(); err != nil {
			slog.Warn("could not close sensor", "error", err)
		}
		s.transition(Disconnected)
	}()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		ts := s.now()
		temp, err := sensor.GetTemperature(ctx)
		if err != nil {
			return fmt.Errorf("could not read temperature: %w", err)
		}
		s.transition(Sampling)
		err = sink.Write(ctx, Sample{Celsius: temp, Time: ts})
		if err != nil {
			return fmt.Errorf("could not store sample: %w", err)
		}
		slog.Debug("sample stored", "celsius", temp)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
