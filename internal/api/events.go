package api

import (
	"encoding/json"

	"github.com/seorin-dev/syruplink-core/internal/dispense"
	"github.com/seorin-dev/syruplink-core/internal/dispenser"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/influxdb"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/logging"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/mqtt"
)

// WebSocket event channels. Clients subscribe to these by name.
const (
	ChannelDeviceDiscovered    = "device.discovered"
	ChannelDeviceConnected     = "device.connected"
	ChannelDeviceDisconnected  = "device.disconnected"
	ChannelDeviceStatusChanged = "device.status_changed"
	ChannelDeviceSnapshot      = "device.snapshot"
	ChannelDispenseLog         = "dispense.log"
	ChannelDispenseLineResult  = "dispense.line_result"
	ChannelDispenseComplete    = "dispense.request_complete"
)

// EventBridge fans device and dispense events out to WebSocket clients
// and the optional MQTT and InfluxDB sinks. It implements
// connection.Notifier and dispense.Events.
//
// All methods are fire-and-forget: sinks that are nil or disconnected
// are skipped, never waited on.
type EventBridge struct {
	hub    *Hub
	mqtt   *mqtt.Client
	influx *influxdb.Client
	logger *logging.Logger
	topics mqtt.Topics
}

// NewEventBridge creates an EventBridge. mqttClient and influx may be nil.
func NewEventBridge(hub *Hub, mqttClient *mqtt.Client, influx *influxdb.Client, logger *logging.Logger) *EventBridge {
	return &EventBridge{
		hub:    hub,
		mqtt:   mqttClient,
		influx: influx,
		logger: logger,
	}
}

// DeviceConnected broadcasts a device entering the connected set.
func (b *EventBridge) DeviceConnected(device dispenser.Connected) {
	b.hub.Broadcast(ChannelDeviceConnected, device)

	if b.mqtt != nil {
		payload, err := json.Marshal(device)
		if err == nil {
			err = b.mqtt.PublishRetained(b.topics.DeviceState(device.Identity), payload)
		}
		if err != nil {
			b.logger.Debug("mqtt device state publish failed", "identity", device.Identity, "error", err)
		}
	}
	if b.influx != nil {
		b.influx.WriteDeviceStatus(device.Identity, string(device.Status))
	}
}

// DeviceDisconnected broadcasts a device leaving the connected set.
func (b *EventBridge) DeviceDisconnected(identity string) {
	b.hub.Broadcast(ChannelDeviceDisconnected, map[string]string{"identity": identity})

	if b.mqtt != nil {
		if err := b.mqtt.PublishJSON(b.topics.DeviceEvent(identity, "disconnected"), map[string]string{"identity": identity}); err != nil {
			b.logger.Debug("mqtt device event publish failed", "identity", identity, "error", err)
		}
	}
	if b.influx != nil {
		b.influx.WriteDeviceStatus(identity, string(dispenser.StatusDisconnected))
	}
}

// DeviceStatusChanged broadcasts a status transition of a connected device.
func (b *EventBridge) DeviceStatusChanged(identity string, status dispenser.Status) {
	b.hub.Broadcast(ChannelDeviceStatusChanged, map[string]any{
		"identity": identity,
		"status":   status,
	})

	if b.influx != nil {
		b.influx.WriteDeviceStatus(identity, string(status))
	}
}

// ConnectivityRefresh broadcasts the full connected set so clients can
// recompute drug availability.
func (b *EventBridge) ConnectivityRefresh(devices []dispenser.Connected) {
	b.hub.Broadcast(ChannelDeviceSnapshot, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// DispenseLog broadcasts a progress message from a running dispense request.
func (b *EventBridge) DispenseLog(requestID, message string) {
	b.hub.Broadcast(ChannelDispenseLog, map[string]string{
		"request_id": requestID,
		"message":    message,
	})
}

// LineResolved broadcasts the outcome of one drug line and records it
// to the telemetry sinks.
func (b *EventBridge) LineResolved(requestID string, result dispense.LineResult) {
	b.hub.Broadcast(ChannelDispenseLineResult, map[string]any{
		"request_id": requestID,
		"result":     result,
	})

	if b.mqtt != nil {
		if err := b.mqtt.PublishJSON(b.topics.DispenseResult(requestID), result); err != nil {
			b.logger.Debug("mqtt line result publish failed", "request_id", requestID, "error", err)
		}
	}
	if b.influx != nil {
		b.influx.WriteDispenseResult(result.Identity, result.Line.DrugCode, string(result.Outcome), result.Line.VolumeML, result.Attempts)
	}
}

// RequestComplete broadcasts the rollup of a finished dispense request.
func (b *EventBridge) RequestComplete(summary dispense.Summary) {
	b.hub.Broadcast(ChannelDispenseComplete, summary)

	if b.mqtt != nil {
		if err := b.mqtt.PublishJSON(b.topics.DispenseComplete(summary.RequestID), summary); err != nil {
			b.logger.Debug("mqtt request complete publish failed", "request_id", summary.RequestID, "error", err)
		}
	}
}
