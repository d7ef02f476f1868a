package swapchain

import (
	gomath "math"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Preferences steer the choices made from the surface support.
type Preferences struct {
	VSync  bool
	Format metadata.SurfaceFormat
}

func DefaultPreferences() Preferences {
	return Preferences{
		VSync: true,
		Format: metadata.SurfaceFormat{
			Format:     metadata.FormatB8G8R8A8Srgb,
			ColorSpace: metadata.ColorSpaceSrgbNonlinear,
		},
	}
}

// ChooseSurfaceFormat returns the preferred format when the surface offers
// it, the first reported format otherwise.
func ChooseSurfaceFormat(formats []metadata.SurfaceFormat, preferred metadata.SurfaceFormat) metadata.SurfaceFormat {
	if len(formats) == 0 || (len(formats) == 1 && formats[0].Format == metadata.FormatUndefined) {
		// The surface has no preference.
		return preferred
	}
	for _, f := range formats {
		if f == preferred {
			return f
		}
	}
	return formats[0]
}

func contains(modes []metadata.PresentMode, mode metadata.PresentMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

/**
 * @brief With vsync, FIFO_RELAXED if available, else FIFO. Without vsync,
 * MAILBOX, else IMMEDIATE, else FIFO which every surface supports.
 */
func ChoosePresentMode(modes []metadata.PresentMode, vsync bool) metadata.PresentMode {
	if vsync {
		if contains(modes, metadata.PresentModeFifoRelaxed) {
			return metadata.PresentModeFifoRelaxed
		}
		return metadata.PresentModeFifo
	}
	if contains(modes, metadata.PresentModeMailbox) {
		return metadata.PresentModeMailbox
	}
	if contains(modes, metadata.PresentModeImmediate) {
		return metadata.PresentModeImmediate
	}
	return metadata.PresentModeFifo
}

// ChooseExtent uses the surface extent unless the surface lets the window
// decide, then clamps the window size to what the GPU allows.
func ChooseExtent(caps metadata.SurfaceCapabilities, window metadata.Extent2D) metadata.Extent2D {
	if caps.CurrentExtent.Width != gomath.MaxUint32 {
		return caps.CurrentExtent
	}
	return metadata.Extent2D{
		Width:  math.Clamp(window.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(window.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func ChooseImageCount(caps metadata.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// CreateInfo turns the surface support into creation parameters.
func CreateInfo(support metadata.SurfaceSupport, prefs Preferences, window metadata.Extent2D, old metadata.Swapchain) *metadata.SwapchainCreateInfo {
	return &metadata.SwapchainCreateInfo{
		Format:       ChooseSurfaceFormat(support.Formats, prefs.Format),
		Extent:       ChooseExtent(support.Capabilities, window),
		PresentMode:  ChoosePresentMode(support.PresentModes, prefs.VSync),
		ImageCount:   ChooseImageCount(support.Capabilities),
		OldSwapchain: old,
	}
}
