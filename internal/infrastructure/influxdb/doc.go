// Package influxdb records SyrupLink operational metrics.
//
// It wraps the InfluxDB v2 client's non-blocking write API: dispense
// outcomes, device reachability transitions and scan statistics are
// batched and shipped asynchronously, so a slow or absent metrics
// backend never stalls the dispensing path. The whole integration is
// optional (influxdb.enabled in config.yaml).
package influxdb
