package capture

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// Device error classes. Each maps to a distinct operator message.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceNotFound   = errors.New("camera not found")
	ErrDeviceBusy       = errors.New("camera already in use")
	ErrDeviceUnknown    = errors.New("camera error")
	ErrOpenTimeout      = errors.New("camera open timed out")
)

var taxonomy = []error{
	ErrPermissionDenied,
	ErrDeviceNotFound,
	ErrDeviceBusy,
	ErrOpenTimeout,
	ErrDeviceUnknown,
}

// Classify maps an open failure onto one of the device error sentinels.
// nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range taxonomy {
		if errors.Is(err, class) {
			return class
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrOpenTimeout
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return ErrDeviceNotFound
	case errors.Is(err, syscall.EBUSY):
		return ErrDeviceBusy
	}

	// Drivers that only report text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"):
		return ErrPermissionDenied
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no such"):
		return ErrDeviceNotFound
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"):
		return ErrDeviceBusy
	}
	return ErrDeviceUnknown
}

// Class returns a short label for metrics and logs.
func Class(err error) string {
	switch Classify(err) {
	case nil:
		return "ok"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrDeviceNotFound:
		return "not_found"
	case ErrDeviceBusy:
		return "busy"
	case ErrOpenTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message returns the operator-facing text for a device error.
func Message(err error) string {
	switch Classify(err) {
	case nil:
		return ""
	case ErrPermissionDenied:
		return "Error: Could not access webcam. Please grant camera permission."
	case ErrDeviceNotFound:
		return "Error: No camera found. Check that the camera is connected."
	case ErrDeviceBusy:
		return "Error: Camera is in use by another application."
	case ErrOpenTimeout:
		return "Error: Camera did not respond. Try again."
	default:
		return "Error: Could not start the camera."
	}
}
