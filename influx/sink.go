// Package influx writes samples to the InfluxDB 1.x HTTP write endpoint
// using the line protocol with millisecond timestamps.
package influx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mklimuk/gaerbox/sampler"
)

const (
	DefaultURL         = "http://localhost:8086"
	DefaultDatabase    = "pi1"
	DefaultMeasurement = "temp"
)

var ErrWriteRejected = errors.New("influx: write rejected")

var _ sampler.Sink = &Sink{}

type Sink struct {
	client      *http.Client
	endpoint    string
	measurement string
}

type Opts struct {
	Client      *http.Client
	Measurement string
}

type Opt func(*Opts)

func WithHTTPClient(client *http.Client) Opt {
	return func(o *Opts) {
		o.Client = client
	}
}

func WithMeasurement(name string) Opt {
	return func(o *Opts) {
		o.Measurement = name
	}
}

// NewSink returns a sink posting to <baseURL>/write?db=<database>&precision=ms.
func NewSink(baseURL, database string, opts ...Opt) (*Sink, error) {
	config := Opts{
		Client:      &http.Client{Timeout: 10 * time.Second},
		Measurement: DefaultMeasurement,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if database == "" {
		return nil, fmt.Errorf("influx: database name is required")
	}
	if config.Measurement == "" || strings.ContainsAny(config.Measurement, " ,\n") {
		return nil, fmt.Errorf("influx: invalid measurement name %q", config.Measurement)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("influx: invalid url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("influx: unsupported url scheme %q", u.Scheme)
	}
	u = u.JoinPath("write")
	q := url.Values{}
	q.Set("db", database)
	q.Set("precision", "ms")
	u.RawQuery = q.Encode()
	return &Sink{
		client:      config.Client,
		endpoint:    u.String(),
		measurement: config.Measurement,
	}, nil
}

// Endpoint returns the write url.
func (s *Sink) Endpoint() string {
	return s.endpoint
}

// Line formats one sample, e.g. "temp value=21.500000 1700000000000".
func (s *Sink) Line(sample sampler.Sample) string {
	return s.measurement + " value=" + strconv.FormatFloat(float64(sample.Celsius), 'f', 6, 32) +
		" " + strconv.FormatInt(sample.Time.UnixMilli(), 10)
}

// Write posts a single sample. Every call builds its own request body.
func (s *Sink) Write(ctx context.Context, sample sampler.Sample) error {
	body := bytes.NewBufferString(s.Line(sample))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return fmt.Errorf("influx: could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("influx: could not send sample: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: %s", ErrWriteRejected, resp.Status, strings.TrimSpace(string(msg)))
	}
	slog.Debug("sample written", "endpoint", s.endpoint, "status", resp.StatusCode)
	return nil
}
