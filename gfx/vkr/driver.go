// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/koructx/gfx"
	vk "github.com/devblok/vulkan"
)

// Handles are opaque identifiers issued by a Driver. The zero value of
// every handle means "none".
type (
	Image         uint64
	Memory        uint64
	ImageView     uint64
	Swapchain     uint64
	RenderPass    uint64
	DebugCallback uint64
)

// MemoryRequirements mirrors what the driver reports for an image.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// ImageSpec parameterises the single image creation procedure shared
// by every attachment.
type ImageSpec struct {
	Extent     gfx.Extent2D
	MipLevels  uint32
	Samples    vk.SampleCountFlagBits
	Format     vk.Format
	Tiling     vk.ImageTiling
	Usage      vk.ImageUsageFlags
	Properties vk.MemoryPropertyFlags
	Aspect     vk.ImageAspectFlags
}

// ViewSpec describes a 2D view over an image.
type ViewSpec struct {
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	MipLevels uint32
}

// Driver is a logical device as seen by the context core. Every create
// call is paired with a destroy call that must run before the device
// itself is destroyed.
type Driver interface {
	gfx.Releasable

	SurfaceCapabilities() (SurfaceCapabilities, error)
	FormatProperties(format vk.Format) FormatProperties
	MemoryTypes() []MemoryType

	CreateImage(spec ImageSpec) (Image, MemoryRequirements, error)
	DestroyImage(image Image)

	AllocateMemory(size uint64, typeIndex uint32) (Memory, error)
	FreeMemory(memory Memory)
	BindImageMemory(image Image, memory Memory) error

	CreateImageView(image Image, spec ViewSpec) (ImageView, error)
	DestroyImageView(view ImageView)

	// CreateSwapchain builds a chain for cfg and returns the images it
	// owns. The count may exceed cfg.ImageCount.
	CreateSwapchain(cfg ChainConfig) (Swapchain, []Image, error)
	DestroySwapchain(chain Swapchain)

	CreateRenderPass(layout RenderTargetLayout) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)

	// WaitIdle blocks until the device finished all submitted work.
	WaitIdle()
}

// DiagnosticsRegistrar installs and removes driver message callbacks.
type DiagnosticsRegistrar interface {
	RegisterDiagnostics(flags vk.DebugReportFlags, deliver DeliverFunc) (DebugCallback, error)
	UnregisterDiagnostics(cb DebugCallback)
}

// DeliverFunc receives raw driver messages. Its return value tells the
// driver whether to abort the triggering call.
type DeliverFunc func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, layer string, code int32, text string) bool

// Platform is an API instance bound to a window surface.
type Platform interface {
	DiagnosticsRegistrar

	// Candidates snapshots every physical device against the surface,
	// in enumeration order.
	Candidates() ([]DeviceCandidate, error)

	// Procs exposes the instance level entry points.
	Procs() ProcTable

	// OpenDevice creates a logical device on the chosen candidate.
	OpenDevice(c DeviceCandidate, queues QueueAssignment, req Requirements) (Driver, error)
}

// FramebufferSizer reports the live drawable size of a window.
type FramebufferSizer interface {
	FramebufferSize() gfx.Extent2D
}

// FramebufferSizeFunc adapts a function into a FramebufferSizer.
type FramebufferSizeFunc func() gfx.Extent2D

// FramebufferSize implements FramebufferSizer.
func (f FramebufferSizeFunc) FramebufferSize() gfx.Extent2D {
	return f()
}
