// Package network discovers syrup dispensers on the local network.
//
// It has three parts:
//
//   - Resolver: derives candidate /24 address prefixes ("192.168.0.")
//     from the host's non-loopback IPv4 interfaces.
//   - Prober: issues a single HTTP identification probe against one
//     address and reports whether a ready dispenser answered.
//   - Scanner: fans a probe out across every host suffix in a prefix
//     (1-254) through a bounded worker pool and collects the devices
//     that responded.
//
// The scanner is stateless: it reports what is reachable right now and
// leaves connection tracking to the connection package.
package network
