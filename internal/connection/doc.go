// Package connection tracks which catalogued dispensers are currently
// reachable and keeps that set honest over time.
//
// The Manager owns the connected-device map exclusively. It reconciles
// scan snapshots against the catalog (auto-connecting known devices at
// most once per session), serves explicit connect/disconnect/save/delete
// requests, and runs the periodic scan loop. Other components ask the
// Manager for status transitions; nothing else mutates a Connected
// record.
//
// The Monitor sweeps the connected set on a fixed interval and verifies
// each device still answers with the expected identity, demoting
// unreachable devices without removing them. Devices mid-dispense are
// skipped: the dispense protocol is authoritative while a job is in
// flight.
package connection
