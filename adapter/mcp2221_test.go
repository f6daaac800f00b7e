package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/gaerbox"
)

// fakeBridge answers reports from a queue and records every request.
type fakeBridge struct {
	requests  [][]byte
	responses [][]byte
	opened    int
	closed    int
	shortRead bool
}

func (f *fakeBridge) Write(p []byte) (int, error) {
	f.requests = append(f.requests, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeBridge) Read(p []byte) (int, error) {
	if len(f.responses) == 0 {
		return 0, errors.New("no response queued")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	copy(p, resp)
	if f.shortRead {
		return 10, nil
	}
	return len(p), nil
}

func (f *fakeBridge) Close() error {
	f.closed++
	return nil
}

func (f *fakeBridge) queue(resp ...byte) {
	report := make([]byte, reportSize)
	copy(report, resp)
	f.responses = append(f.responses, report)
}

func newTestBridge(f *fakeBridge) *MCP2221 {
	return NewMCP2221(
		WithResponseWait(0),
		WithDeviceOpener(func() (HIDDevice, error) {
			f.opened++
			return f, nil
		}),
	)
}

// queueWriteStatus queues a status report for a write of requested bytes of
// which sent went out on the bus.
func (f *fakeBridge) queueWriteStatus(requested, sent byte) {
	report := make([]byte, reportSize)
	report[0] = cmdStatus
	report[9] = requested
	report[11] = sent
	f.responses = append(f.responses, report)
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdWriteData, 0x00)
	f.queueWriteStatus(3, 3)
	d := newTestBridge(f)

	err := d.WriteToAddr(context.Background(), 0x18, []byte{0x04, 0x1F, 0x10})
	require.NoError(t, err)
	require.Len(t, f.requests, 2)
	assert.Equal(t, []byte{cmdWriteData, 0x03, 0x00, 0x30, 0x04, 0x1F, 0x10, 0x00}, f.requests[0][:8])
	assert.Equal(t, []byte{cmdStatus, 0x00, 0x00}, f.requests[1][:3], "status poll cancels nothing")
	assert.Equal(t, 2, f.opened)
	assert.Equal(t, 2, f.closed)
}

func TestMCP2221_WriteShortTransfer(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdWriteData, 0x00)
	f.queueWriteStatus(3, 1)
	d := newTestBridge(f)

	err := d.WriteToAddr(context.Background(), 0x18, []byte{0x04, 0x1F, 0x10})
	assert.ErrorIs(t, err, gaerbox.ErrShortTransfer)
	assert.ErrorContains(t, err, "sent 1 of 3")
}

func TestMCP2221_WriteBusy(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdWriteData, respBusy)
	d := newTestBridge(f)

	err := d.WriteToAddr(context.Background(), 0x18, []byte{0x05})
	assert.ErrorIs(t, err, gaerbox.ErrBusBusy)
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdReadData, 0x00)
	f.queue(cmdGetReadData, 0x00, 0x00, 0x02, 0xC1, 0x90)
	d := newTestBridge(f)

	buf := make([]byte, 2)
	err := d.ReadFromAddr(context.Background(), 0x18, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC1, 0x90}, buf)
	require.Len(t, f.requests, 2)
	assert.Equal(t, []byte{cmdReadData, 0x02, 0x00, 0x31}, f.requests[0][:4])
	assert.Equal(t, byte(cmdGetReadData), f.requests[1][0])
	assert.Zero(t, f.requests[1][3], "buffers are reset between reports")
}

func TestMCP2221_ReadShortTransfer(t *testing.T) {
	tests := []struct {
		name string
		size byte
	}{
		{"partial", 0x01},
		{"no answer", readSizeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBridge{}
			f.queue(cmdReadData, 0x00)
			f.queue(cmdGetReadData, 0x00, 0x00, tt.size, 0xAA)
			d := newTestBridge(f)

			buf := []byte{0x11, 0x22}
			err := d.ReadFromAddr(context.Background(), 0x18, buf)
			assert.ErrorIs(t, err, gaerbox.ErrShortTransfer)
			assert.Equal(t, []byte{0x11, 0x22}, buf, "buffer untouched on failure")
		})
	}
}

func TestMCP2221_ReadEngineError(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdReadData, 0x00)
	f.queue(cmdGetReadData, respReadError)
	d := newTestBridge(f)

	err := d.ReadFromAddr(context.Background(), 0x18, make([]byte, 2))
	assert.ErrorContains(t, err, "I2C engine")
}

func TestMCP2221_ShortReport(t *testing.T) {
	f := &fakeBridge{shortRead: true}
	f.queue(cmdStatus)
	d := newTestBridge(f)

	_, err := d.Status(context.Background())
	assert.ErrorIs(t, err, gaerbox.ErrShortTransfer)
}

func TestMCP2221_StatusAndRelease(t *testing.T) {
	f := &fakeBridge{}
	status := make([]byte, reportSize)
	status[0] = cmdStatus
	status[9], status[10] = 0x03, 0x00
	status[11], status[12] = 0x02, 0x00
	status[13] = 1
	status[14] = 0x76
	status[15] = 0x20
	status[16], status[17] = 0x30, 0x00
	status[25] = 1
	f.responses = append(f.responses, status, status)
	d := newTestBridge(f)

	s, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   1,
		I2CSpeedDivider:        0x76,
		I2CTimeout:             0x20,
		CurrentAddress:         "3000",
		LastWriteRequestedSize: 3,
		LastWriteSentSize:      2,
		ReadPending:            1,
	}, s)
	assert.Zero(t, f.requests[0][2])

	require.NoError(t, d.Release(context.Background()))
	assert.Equal(t, []byte{cmdStatus, 0x00, cancelTransfer}, f.requests[1][:3])
}

func TestMCP2221_OpenError(t *testing.T) {
	d := NewMCP2221(WithDeviceOpener(func() (HIDDevice, error) { return nil, ErrDeviceNotFound }))
	err := d.WriteToAddr(context.Background(), 0x18, []byte{0x05})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestMCP2221_CancelledContext(t *testing.T) {
	f := &fakeBridge{}
	f.queue(cmdStatus)
	d := NewMCP2221(WithDeviceOpener(func() (HIDDevice, error) { return f, nil }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Status(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.closed)
}

func TestMCP2221_OversizedTransfer(t *testing.T) {
	f := &fakeBridge{}
	d := newTestBridge(f)
	err := d.WriteToAddr(context.Background(), 0x18, make([]byte, reportSize))
	assert.Error(t, err)
	assert.Empty(t, f.requests)
}
