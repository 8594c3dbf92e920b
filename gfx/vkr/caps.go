// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"

	"github.com/devblok/koructx/gfx"
	vk "github.com/devblok/vulkan"
)

// DeviceFeatures lists the optional device features the context cares about.
type DeviceFeatures struct {
	TessellationShader bool `json:"tessellationShader"`
	SamplerAnisotropy  bool `json:"samplerAnisotropy"`
	SampleRateShading  bool `json:"sampleRateShading"`
}

// Covers reports whether every feature required by req is present in f.
func (f DeviceFeatures) Covers(req DeviceFeatures) bool {
	return (!req.TessellationShader || f.TessellationShader) &&
		(!req.SamplerAnisotropy || f.SamplerAnisotropy) &&
		(!req.SampleRateShading || f.SampleRateShading)
}

// QueueFamily is one queue family of a device, with its presentation
// support against the target surface.
type QueueFamily struct {
	Index   uint32        `json:"index"`
	Flags   vk.QueueFlags `json:"flags"`
	Count   uint32        `json:"count"`
	Present bool          `json:"present"`
}

// SurfaceFormat pairs a pixel format with its colour space.
type SurfaceFormat struct {
	Format     vk.Format     `json:"format"`
	ColorSpace vk.ColorSpace `json:"colorSpace"`
}

// SurfaceCapabilities is a snapshot of what a device/surface pair
// supports. It goes stale on any extent-affecting event.
type SurfaceCapabilities struct {
	MinImageCount  uint32       `json:"minImageCount"`
	MaxImageCount  uint32       `json:"maxImageCount"`
	CurrentExtent  gfx.Extent2D `json:"currentExtent"`
	MinImageExtent gfx.Extent2D `json:"minImageExtent"`
	MaxImageExtent gfx.Extent2D `json:"maxImageExtent"`

	CurrentTransform        vk.SurfaceTransformFlagBits `json:"currentTransform"`
	SupportedCompositeAlpha vk.CompositeAlphaFlags      `json:"supportedCompositeAlpha"`

	Formats      []SurfaceFormat  `json:"formats"`
	PresentModes []vk.PresentMode `json:"presentModes"`
}

// UndefinedExtent reports whether the surface leaves the extent to
// the swapchain.
func (s SurfaceCapabilities) UndefinedExtent() bool {
	return s.CurrentExtent.Width == math.MaxUint32
}

// Adequate reports whether the surface offers at least one format and
// one present mode.
func (s SurfaceCapabilities) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// MemoryType is one entry of a device memory type table.
type MemoryType struct {
	PropertyFlags vk.MemoryPropertyFlags `json:"propertyFlags"`
	HeapIndex     uint32                 `json:"heapIndex"`
}

// FormatProperties lists the features a format supports per tiling.
type FormatProperties struct {
	LinearTilingFeatures  vk.FormatFeatureFlags `json:"linearTilingFeatures"`
	OptimalTilingFeatures vk.FormatFeatureFlags `json:"optimalTilingFeatures"`
}

// FormatQuerier answers format support questions for one device.
type FormatQuerier interface {
	FormatProperties(format vk.Format) FormatProperties
}

// DeviceCandidate is a snapshot of a physical device taken against
// the target surface.
type DeviceCandidate struct {
	Index         int                   `json:"index"`
	Name          string                `json:"name"`
	Type          vk.PhysicalDeviceType `json:"type"`
	VendorID      uint32                `json:"vendorId"`
	DeviceID      uint32                `json:"deviceId"`
	DriverVersion uint32                `json:"driverVersion"`
	APIVersion    uint32                `json:"apiVersion"`

	Features      DeviceFeatures      `json:"features"`
	Extensions    []string            `json:"extensions"`
	QueueFamilies []QueueFamily       `json:"queueFamilies"`
	Surface       SurfaceCapabilities `json:"surface"`

	ColorSampleCounts vk.SampleCountFlags `json:"colorSampleCounts"`
	DepthSampleCounts vk.SampleCountFlags `json:"depthSampleCounts"`

	MemoryTypes []MemoryType                   `json:"memoryTypes"`
	MemoryHeaps []uint64                       `json:"memoryHeaps"`
	Formats     map[vk.Format]FormatProperties `json:"formats"`
}

// FormatProperties implements FormatQuerier from the snapshot. Formats
// that were not captured report no features.
func (c DeviceCandidate) FormatProperties(format vk.Format) FormatProperties {
	return c.Formats[format]
}

// Memory returns the total size of all memory heaps.
func (c DeviceCandidate) Memory() uint64 {
	var total uint64
	for _, h := range c.MemoryHeaps {
		total += h
	}
	return total
}

// DeviceTypeName returns a readable name for a physical device type.
func DeviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	default:
		return "other"
	}
}
