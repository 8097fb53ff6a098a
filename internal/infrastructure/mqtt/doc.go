// Package mqtt publishes SyrupLink telemetry to an MQTT broker.
//
// The client is publish-only: device lifecycle events, dispense results
// and the service's own online status go out to the syruplink/* topic
// tree for ward dashboards and building systems to consume. Inbound
// control stays on the REST API; nothing is subscribed here.
//
// The broker connection is optional (mqtt.enabled in config.yaml) and
// resilient: auto-reconnect with backoff, a Last Will message so
// consumers can detect an unexpected crash, and a retained status topic
// for graceful starts and stops.
package mqtt
