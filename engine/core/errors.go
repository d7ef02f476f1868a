package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting       = errors.New("swapchain resized or recreated, booting")
	ErrNoCompatibleMemoryType = errors.New("no memory type satisfies every buffer in the batch")
	ErrNoBuffers              = errors.New("allocation requested for an empty buffer list")
	ErrTooManyInstances       = errors.New("dynamic instance count exceeds the configured maximum")
	ErrInvalidModelIndex      = errors.New("instance references an unknown model")
	ErrZeroExtent             = errors.New("surface extent has zero area")
	ErrAcquireFailed          = errors.New("failed to acquire a presentable image")
	ErrFenceTimeout           = errors.New("timed out waiting on a fence")
	ErrDeviceLost             = errors.New("device lost")
	ErrSubmitFailed           = errors.New("queue submission failed")
	ErrUnknown                = errors.New("unknown")
)

// ErrorKind classifies how a rendering failure propagates.
type ErrorKind uint8

const (
	// KindConfiguration covers missing hardware support or an unusable setup. Fatal.
	KindConfiguration ErrorKind = iota
	// KindTransient covers out-of-date or suboptimal surfaces. Logged and swallowed.
	KindTransient
	// KindCallerMisuse is returned to the caller, GPU state is untouched.
	KindCallerMisuse
	// KindDeviceLost is an unrecoverable GPU failure. Fatal.
	KindDeviceLost
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransient:
		return "transient"
	case KindCallerMisuse:
		return "caller-misuse"
	case KindDeviceLost:
		return "device-lost"
	}
	return "unknown"
}

type RenderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func ConfigurationError(op string, err error) error {
	return &RenderError{Kind: KindConfiguration, Op: op, Err: err}
}

func TransientError(op string, err error) error {
	return &RenderError{Kind: KindTransient, Op: op, Err: err}
}

func MisuseError(op string, err error) error {
	return &RenderError{Kind: KindCallerMisuse, Op: op, Err: err}
}

func DeviceLostError(op string, err error) error {
	return &RenderError{Kind: KindDeviceLost, Op: op, Err: err}
}

// KindOf reports the kind of the first RenderError in err's chain.
// Errors outside the taxonomy are treated as configuration failures.
func KindOf(err error) ErrorKind {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindConfiguration
}

func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	return k == KindConfiguration || k == KindDeviceLost
}

func IsMisuse(err error) bool {
	return err != nil && KindOf(err) == KindCallerMisuse
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}
