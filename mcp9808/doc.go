// Package mcp9808 drives a Microchip MCP9808 digital temperature sensor over
// I2C.
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/25095A.pdf
//
// Range: -40°C - 125°C, resolution down to 0.0625°C.
//
// Usage:
//
//	dev, err := mcp9808.Open(ctx, mcp9808.DefaultBus, mcp9808.DefaultAddress)
//	if err != nil { ... }
//	defer dev.Close()
//	t, err := dev.Temperature(ctx)
//
// The driver performs no lock checking: writes to the threshold registers are
// issued whenever asked. Callers that must honour the window and critical
// locks read them with GetConfig first (see package thermostat).
package mcp9808
