// Package gfxerr defines the closed set of failure kinds the renderer reports.
//
// Every driver call site wraps its error with one of the kinds below, so a
// caller can classify any failure with errors.Is without parsing messages.
package gfxerr

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

var (
	ErrNoGPU            = errors.New("failed to find GPUs with Vulkan support")
	ErrDeviceNotFound   = errors.New("failed to find a suitable GPU")
	ErrMissingLayer     = errors.New("required instance layer not available")
	ErrMissingExtension = errors.New("required extension not available")
	ErrSurfaceCreation  = errors.New("failed to create window surface")
	ErrDeviceCreation   = errors.New("failed to create logical device")
	ErrChainCreation    = errors.New("failed to create swap chain")
	ErrPipelineCreation = errors.New("failed to create graphics pipeline")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrResourceCreation = errors.New("failed to create GPU resource")
	ErrTextureDecode    = errors.New("failed to decode texture image")
	ErrAcquire          = errors.New("failed to acquire swap chain image")
	ErrSubmit           = errors.New("failed to submit draw command buffer")
	ErrPresent          = errors.New("failed to present swap chain image")
	ErrConfig           = errors.New("invalid configuration")
)

// kinds is ordered so that the more specific classification wins in KindOf.
var kinds = []error{
	ErrOutOfMemory,
	ErrNoGPU,
	ErrDeviceNotFound,
	ErrMissingLayer,
	ErrMissingExtension,
	ErrSurfaceCreation,
	ErrDeviceCreation,
	ErrChainCreation,
	ErrPipelineCreation,
	ErrResourceCreation,
	ErrTextureDecode,
	ErrAcquire,
	ErrSubmit,
	ErrPresent,
	ErrConfig,
}

// New creates an error of the given kind.
func New(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// Wrap annotates err and marks it with kind. A nil err stays nil.
func Wrap(err error, kind error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), kind)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}

// Result wraps the error returned alongside a Vulkan result code. Allocation
// failures reported by the driver are additionally marked ErrOutOfMemory.
func Result(res common.VkResult, err error, kind error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, kind, msg)
	if IsOutOfMemory(res) {
		wrapped = errors.Mark(wrapped, ErrOutOfMemory)
	}
	return wrapped
}

// IsOutOfMemory reports whether res is a host or device allocation failure.
func IsOutOfMemory(res common.VkResult) bool {
	return res == core1_0.VKErrorOutOfHostMemory || res == core1_0.VKErrorOutOfDeviceMemory
}

// KindOf returns the kind err was marked with, or nil when err is not one of
// ours.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
