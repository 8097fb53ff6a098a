package mqtt

import "fmt"

// Topic prefixes for the SyrupLink topic tree.
const (
	// TopicPrefix is the base for all SyrupLink topics.
	TopicPrefix = "syruplink"

	// TopicPrefixSystem is the base for service-level topics.
	TopicPrefixSystem = "syruplink/system"
)

// Topics provides builders for SyrupLink MQTT topics. Using these
// helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceState returns the retained per-device state topic.
//
// Example: syruplink/device/AABBCCDDEE01/state
func (Topics) DeviceState(identity string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, identity)
}

// DeviceEvent returns the topic for device lifecycle events.
//
// Example: syruplink/device/AABBCCDDEE01/event/connected
func (Topics) DeviceEvent(identity, event string) string {
	return fmt.Sprintf("%s/device/%s/event/%s", TopicPrefix, identity, event)
}

// DispenseResult returns the topic for per-line dispense results.
//
// Example: syruplink/dispense/0b0f.../line
func (Topics) DispenseResult(requestID string) string {
	return fmt.Sprintf("%s/dispense/%s/line", TopicPrefix, requestID)
}

// DispenseComplete returns the topic for request completion events.
//
// Example: syruplink/dispense/0b0f.../complete
func (Topics) DispenseComplete(requestID string) string {
	return fmt.Sprintf("%s/dispense/%s/complete", TopicPrefix, requestID)
}

// SystemStatus returns the retained service status topic, also used as
// the Last Will topic.
//
// Example: syruplink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
