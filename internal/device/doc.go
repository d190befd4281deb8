// Package device correlates asynchronous GATT operations on a single BLE
// peripheral with the completion events raised by its transport.
//
// A Device accepts requests (connect, discovery, read, write, descriptor
// access, notification toggles, RSSI), issues the matching Transport commands
// and completes each request exactly once: with the event that answers it,
// with a timeout, or with an immediate failure. Requests are correlated by Key,
// a canonical (operation, service, characteristic, descriptor) tuple.
// Losing the link fails every outstanding request and then calls
// Options.OnDisconnect.
//
// Supporting pieces:
//   - PendingTable: keyed completions with deadlines and notification handlers
//   - Sequencer: full and targeted service/characteristic/descriptor discovery
//   - SubscriptionGuard: one outstanding notification toggle per characteristic
package device
