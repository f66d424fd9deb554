package core

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Concrete errors carry one or more of these as marks, so callers
// classify with errors.Is and never by message.
var (
	// ErrFatal aborts resource construction or the run loop.
	ErrFatal = errors.New("fatal")
	// ErrTransient is recovered locally by the frame cycle.
	ErrTransient = errors.New("transient")

	ErrSwapchainOutOfDate          = errors.New("swapchain out of date")
	ErrDeviceLost                  = errors.New("device lost")
	ErrNoSuitableMemoryType        = errors.New("no suitable memory type")
	ErrPoolExhausted               = errors.New("descriptor pool exhausted")
	ErrDuplicateBinding            = errors.New("duplicate descriptor binding")
	ErrUnsupportedLayoutTransition = errors.New("unsupported layout transition")
	ErrTextureDecode               = errors.New("texture decode failed")
	ErrCapabilityMissing           = errors.New("device capability missing")
)

// Fatalf builds a fatal error carrying the given kind.
func Fatalf(kind error, format string, args ...interface{}) error {
	err := errors.Mark(errors.Newf(format, args...), kind)
	return errors.Mark(err, ErrFatal)
}

// AsFatal marks err as fatal and, when kind is not nil, as kind.
func AsFatal(err error, kind error) error {
	if err == nil {
		return nil
	}
	if kind != nil {
		err = errors.Mark(err, kind)
	}
	return errors.Mark(err, ErrFatal)
}

// AsTransient marks err as a recoverable swap chain condition.
func AsTransient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Mark(err, ErrSwapchainOutOfDate), ErrTransient)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || IsInvariantViolation(err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsInvariantViolation reports a programming defect raised with errors.AssertionFailedf.
func IsInvariantViolation(err error) bool {
	return err != nil && errors.HasAssertionFailure(err)
}
