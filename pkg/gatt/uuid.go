// Package gatt binds the split control plane to BLE: a peripheral-side
// GATT service whose characteristics bridge ATT requests into package
// split, and a central-side client that invokes behaviors and follows
// position state.
package gatt

import "github.com/go-ble/ble"

// Split service UUIDs. The 32-bit prefix selects the attribute within
// the shared 128-bit base.
var (
	SplitServiceUUID      = ble.MustParse("00000000-0096-7107-c967-c5cfb1c2482a")
	PositionStateCharUUID = ble.MustParse("00000001-0096-7107-c967-c5cfb1c2482a")
	RunBehaviorCharUUID   = ble.MustParse("00000002-0096-7107-c967-c5cfb1c2482a")
	SensorStateCharUUID   = ble.MustParse("00000003-0096-7107-c967-c5cfb1c2482a")
	HIDIndicatorsCharUUID = ble.MustParse("00000004-0096-7107-c967-c5cfb1c2482a")

	// NumPositionsDescUUID is the standard Number of Digitals
	// descriptor, used to expose the position bitset width.
	NumPositionsDescUUID = ble.UUID16(0x2909)
)
