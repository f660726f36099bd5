// Package split implements the payload layer of the split keyboard
// control plane: reassembly of run-behavior commands from
// offset-addressed partial writes, and the latest-value state mirror
// (key positions, sensor events, HID indicators) pushed to the peer.
//
// The transport underneath is only assumed to deliver writes as
// (offset, bytes) pairs with no message framing; see package gatt for
// the BLE binding.
package split
