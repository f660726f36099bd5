package behavior

import (
	"github.com/sirupsen/logrus"
)

// ResetType selects what a Reset behavior reboots into.
type ResetType int

const (
	// ResetWarm restarts the firmware normally.
	ResetWarm ResetType = iota
	// ResetBootloader restarts into the bootloader for flashing.
	ResetBootloader
)

// Reset reboots the half it runs on. It fires on press only; release is
// a no-op because the device is expected to be gone by then.
type Reset struct {
	Type   ResetType
	Reboot func(t ResetType) error
	Logger *logrus.Logger
}

// Pressed triggers the reboot.
func (r *Reset) Pressed(binding Binding, event Event) error {
	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"position": event.Position,
			"type":     r.Type,
		}).Info("Reset behavior triggered")
	}
	if r.Reboot == nil {
		return nil
	}
	return r.Reboot(r.Type)
}

// Released does nothing.
func (r *Reset) Released(binding Binding, event Event) error {
	return nil
}
