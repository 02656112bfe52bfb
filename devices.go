package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bt-bridge/agent-playground/shared"
	"go.uber.org/zap"
)

// DeviceTarget is everything one reconcile pass acts on.
type DeviceTarget struct {
	Local LocalParticipant
	State ConnectionState
	// Entry counts the session's transitions into Connected.
	Entry  uint64
	Inputs shared.InputSettings
}

// DeviceReconciler applies the configured camera and microphone intents to
// the local participant each time the session enters Connected, and again
// whenever the intents change while connected. Manual toggles in between are
// left alone.
type DeviceReconciler struct {
	logger shared.LoggerAdapter

	mu         sync.Mutex
	applied    bool
	lastInputs shared.InputSettings
	lastEntry  uint64
}

func NewDeviceReconciler(logger shared.LoggerAdapter) *DeviceReconciler {
	return &DeviceReconciler{logger: logger.With(zap.String("component", "devices"))}
}

// Reconcile reads the target under its lock, so concurrent passes apply
// settings in the order they were read. It reports whether it touched the
// devices. Device failures are returned joined; they are never fatal to the
// session, and a failed pass is retried on the next call.
func (r *DeviceReconciler) Reconcile(ctx context.Context, read func() DeviceTarget) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := read()
	if target.State != StateConnected || target.Local == nil {
		return false, nil
	}
	inputs := target.Inputs
	if r.applied && r.lastEntry == target.Entry && r.lastInputs == inputs {
		return false, nil
	}

	var errs []error
	if err := target.Local.SetCameraEnabled(ctx, inputs.Camera); err != nil {
		r.logger.Error("applying camera setting", err, zap.Bool("enabled", inputs.Camera))
		errs = append(errs, fmt.Errorf("setting camera enabled=%t: %w", inputs.Camera, err))
	}
	if err := target.Local.SetMicrophoneEnabled(ctx, inputs.Mic); err != nil {
		r.logger.Error("applying microphone setting", err, zap.Bool("enabled", inputs.Mic))
		errs = append(errs, fmt.Errorf("setting microphone enabled=%t: %w", inputs.Mic, err))
	}
	if len(errs) > 0 {
		r.applied = false
		return true, errors.Join(errs...)
	}
	r.applied = true
	r.lastInputs = inputs
	r.lastEntry = target.Entry
	r.logger.Debug("device settings applied",
		zap.Bool("camera", inputs.Camera),
		zap.Bool("mic", inputs.Mic),
		zap.Uint64("entry", target.Entry),
	)
	return true, nil
}
