// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/koructx/gfx"
	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// snapshotFormats are the formats whose properties go into a candidate.
var snapshotFormats = append([]vk.Format{
	vk.FormatB8g8r8a8Srgb,
	vk.FormatB8g8r8a8Unorm,
	vk.FormatR8g8b8a8Unorm,
}, vkr.DepthFormatCandidates...)

// snapshot captures everything negotiation needs to know about pd.
func snapshot(pd vk.PhysicalDevice, index int, surface vk.Surface) (vkr.DeviceCandidate, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	properties.Limits.Deref()

	c := vkr.DeviceCandidate{
		Index:             index,
		Name:              vk.ToString(properties.DeviceName[:]),
		Type:              properties.DeviceType,
		VendorID:          properties.VendorID,
		DeviceID:          properties.DeviceID,
		DriverVersion:     properties.DriverVersion,
		APIVersion:        properties.ApiVersion,
		ColorSampleCounts: properties.Limits.FramebufferColorSampleCounts,
		DepthSampleCounts: properties.Limits.FramebufferDepthSampleCounts,
		Formats:           make(map[vk.Format]vkr.FormatProperties, len(snapshotFormats)),
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	c.Features = vkr.DeviceFeatures{
		TessellationShader: features.TessellationShader.B(),
		SamplerAnisotropy:  features.SamplerAnisotropy.B(),
		SampleRateShading:  features.SampleRateShading.B(),
	}

	extensions, err := deviceExtensions(pd)
	if err != nil {
		return c, err
	}
	c.Extensions = extensions

	c.QueueFamilies = queueFamilies(pd, surface)
	c.MemoryTypes, c.MemoryHeaps = memoryTable(pd)
	for _, format := range snapshotFormats {
		c.Formats[format] = formatProperties(pd, format)
	}

	if surface != vk.NullSurface {
		caps, err := surfaceCapabilities(pd, surface)
		if err != nil {
			return c, err
		}
		if !caps.Adequate() {
			log.WithField("device", c.Name).Warn("surface reports no formats or present modes")
		}
		c.Surface = caps
	}
	return c, nil
}

func deviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceExtensionProperties(): %s", err)
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceExtensionProperties(): %s", err)
	}
	return extensionNames(props[:count]), nil
}

func deviceLayers(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceLayerProperties(): %s", err)
	}
	props := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceLayerProperties(): %s", err)
	}
	return layerNames(props[:count]), nil
}

func queueFamilies(pd vk.PhysicalDevice, surface vk.Surface) []vkr.QueueFamily {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	families := make([]vkr.QueueFamily, 0, count)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		family := vkr.QueueFamily{
			Index: i,
			Flags: props[i].QueueFlags,
			Count: props[i].QueueCount,
		}
		if surface != vk.NullSurface {
			var supportsPresent vk.Bool32
			if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(pd, i, surface, &supportsPresent)); err == nil {
				family.Present = supportsPresent.B()
			}
		}
		families = append(families, family)
	}
	return families
}

func memoryTable(pd vk.PhysicalDevice) ([]vkr.MemoryType, []uint64) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memoryProperties)
	memoryProperties.Deref()

	types := make([]vkr.MemoryType, 0, memoryProperties.MemoryTypeCount)
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		types = append(types, vkr.MemoryType{
			PropertyFlags: memoryProperties.MemoryTypes[i].PropertyFlags,
			HeapIndex:     memoryProperties.MemoryTypes[i].HeapIndex,
		})
	}
	heaps := make([]uint64, 0, memoryProperties.MemoryHeapCount)
	for i := uint32(0); i < memoryProperties.MemoryHeapCount; i++ {
		memoryProperties.MemoryHeaps[i].Deref()
		heaps = append(heaps, uint64(memoryProperties.MemoryHeaps[i].Size))
	}
	return types, heaps
}

func formatProperties(pd vk.PhysicalDevice, format vk.Format) vkr.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(pd, format, &props)
	props.Deref()
	return vkr.FormatProperties{
		LinearTilingFeatures:  props.LinearTilingFeatures,
		OptimalTilingFeatures: props.OptimalTilingFeatures,
	}
}

func surfaceCapabilities(pd vk.PhysicalDevice, surface vk.Surface) (vkr.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &caps)); err != nil {
		return vkr.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfaceCapabilities(): %s", err)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var formatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)); err != nil {
		return vkr.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfaceFormats(): %s", err)
	}
	surfaceFormats := make([]vk.SurfaceFormat, formatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, surfaceFormats)); err != nil {
		return vkr.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfaceFormats(): %s", err)
	}

	var modeCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)); err != nil {
		return vkr.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfacePresentModes(): %s", err)
	}
	modes := make([]vk.PresentMode, modeCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, modes)); err != nil {
		return vkr.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfacePresentModes(): %s", err)
	}

	result := vkr.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		CurrentTransform:        caps.CurrentTransform,
		SupportedCompositeAlpha: caps.SupportedCompositeAlpha,
		PresentModes:            modes[:modeCount],
	}
	for i := uint32(0); i < formatCount; i++ {
		surfaceFormats[i].Deref()
		result.Formats = append(result.Formats, vkr.SurfaceFormat{
			Format:     surfaceFormats[i].Format,
			ColorSpace: surfaceFormats[i].ColorSpace,
		})
	}
	return result, nil
}

func extent(e vk.Extent2D) gfx.Extent2D {
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}
