package model

import (
	"fmt"

	"github.com/ayusman/gestureview/internal/logger"
)

// BindingKind tells whether inference runs on an accelerator or the generic path.
type BindingKind int

const (
	// KindBound means the model is mapped to an acceleration device.
	KindBound BindingKind = iota
	// KindFallback means the model runs on the generic compute path.
	KindFallback
)

// CPU is the device name reported for the generic compute path.
const CPU = "CPU"

// Binding is the one-time result of trying to map the model to hardware.
type Binding struct {
	Kind   BindingKind
	Device string // Set when Kind == KindBound
	Reason string // Set when Kind == KindFallback
}

// Bound returns a binding to device.
func Bound(device string) Binding {
	return Binding{Kind: KindBound, Device: device}
}

// Fallback returns a generic-compute binding with the reason acceleration was not used.
func Fallback(reason string) Binding {
	return Binding{Kind: KindFallback, Reason: reason}
}

// IsBound reports whether an accelerator is in use.
func (b Binding) IsBound() bool {
	return b.Kind == KindBound
}

// DeviceName returns the device running inference.
func (b Binding) DeviceName() string {
	if b.IsBound() {
		return b.Device
	}
	return CPU
}

func (b Binding) String() string {
	if b.IsBound() {
		return "bound to " + b.Device
	}
	return fmt.Sprintf("fallback to %s (%s)", CPU, b.Reason)
}

// Bind tries each candidate device in order and returns the first that
// attaches. It runs once at startup; there is no retry and no later
// re-negotiation. Failures are not fatal.
func Bind(devices []string, attach func(device string) error, log *logger.Logger) Binding {
	if len(devices) == 0 {
		log.Info("No acceleration devices found, running on %s", CPU)
		return Fallback("no acceleration devices found")
	}

	log.Info("Available devices: %v", devices)

	var lastErr error
	for _, device := range devices {
		if err := attach(device); err != nil {
			log.Warning("Model not compatible with %s: %v", device, err)
			lastErr = err
			continue
		}
		log.Info("Mapping model to device %s", device)
		return Bound(device)
	}

	log.Warning("No compatible acceleration device, running on %s", CPU)
	return Fallback(fmt.Sprintf("no compatible device: %v", lastErr))
}
