package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/seorin-dev/syruplink-core/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestNilClientSafety(t *testing.T) {
	var c *Client

	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	c.Flush() // must not panic
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteSkippedWhenDisconnected(t *testing.T) {
	// A zero client has no writeAPI; the guards must drop writes instead
	// of panicking.
	c := &Client{}
	c.WriteDispenseResult("AABBCCDDEE01", "P1", "accepted", 30, 1)
	c.WriteDeviceStatus("AABBCCDDEE01", "connected")
	c.WriteScanStats("192.168.0.", 3, 0)
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
}
