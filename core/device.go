// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewVulkanDevice creates a logical device on pd with one queue per
// distinct family of queues, the required features enabled and the
// given layers enabled on the device.
func NewVulkanDevice(pd vk.PhysicalDevice, surface vk.Surface, c vkr.DeviceCandidate, queues vkr.QueueAssignment, req vkr.Requirements, layers []string) (*VulkanDevice, error) {
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, family := range queues.Families() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(req.DeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(req.DeviceExtensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			TessellationShader: vkBool(req.Features.TessellationShader),
			SamplerAnisotropy:  vkBool(req.Features.SamplerAnisotropy),
			SampleRateShading:  vkBool(req.Features.SampleRateShading),
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device, queues.Graphics, 0, &graphicsQueue)
	vk.GetDeviceQueue(device, queues.Present, 0, &presentQueue)

	log.WithFields(log.Fields{
		"device": c.Name,
		"family": queues.Families(),
	}).Debug("logical device created")

	return &VulkanDevice{
		physicalDevice: pd,
		device:         device,
		surface:        surface,
		graphicsQueue:  graphicsQueue,
		presentQueue:   presentQueue,
		memoryTypes:    c.MemoryTypes,
		formats:        make(map[vk.Format]vkr.FormatProperties),
		images:         make(map[vkr.Image]vk.Image),
		memory:         make(map[vkr.Memory]vk.DeviceMemory),
		views:          make(map[vkr.ImageView]vk.ImageView),
		swapchains:     make(map[vkr.Swapchain]vk.Swapchain),
		chainImages:    make(map[vkr.Swapchain][]vkr.Image),
		renderPasses:   make(map[vkr.RenderPass]vk.RenderPass),
	}, nil
}

// VulkanDevice is a logical device. It implements vkr.Driver by
// issuing its own handles for the native objects it creates.
type VulkanDevice struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	surface        vk.Surface

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	memoryTypes []vkr.MemoryType
	formats     map[vk.Format]vkr.FormatProperties

	next         uint64
	images       map[vkr.Image]vk.Image
	memory       map[vkr.Memory]vk.DeviceMemory
	views        map[vkr.ImageView]vk.ImageView
	swapchains   map[vkr.Swapchain]vk.Swapchain
	chainImages  map[vkr.Swapchain][]vkr.Image
	renderPasses map[vkr.RenderPass]vk.RenderPass
}

func (v *VulkanDevice) handle() uint64 {
	v.next++
	return v.next
}

// Device returns the native logical device.
func (v *VulkanDevice) Device() vk.Device {
	return v.device
}

// GraphicsQueue returns the queue of the graphics family.
func (v *VulkanDevice) GraphicsQueue() vk.Queue {
	return v.graphicsQueue
}

// PresentQueue returns the queue of the present family.
func (v *VulkanDevice) PresentQueue() vk.Queue {
	return v.presentQueue
}

// NativeImageView returns the native view behind a handle.
func (v *VulkanDevice) NativeImageView(view vkr.ImageView) vk.ImageView {
	return v.views[view]
}

// NativeRenderPass returns the native render pass behind a handle.
func (v *VulkanDevice) NativeRenderPass(pass vkr.RenderPass) vk.RenderPass {
	return v.renderPasses[pass]
}

// NativeSwapchain returns the native chain behind a handle.
func (v *VulkanDevice) NativeSwapchain(chain vkr.Swapchain) vk.Swapchain {
	return v.swapchains[chain]
}

// SurfaceCapabilities implements vkr.Driver.
func (v *VulkanDevice) SurfaceCapabilities() (vkr.SurfaceCapabilities, error) {
	return surfaceCapabilities(v.physicalDevice, v.surface)
}

// FormatProperties implements vkr.Driver.
func (v *VulkanDevice) FormatProperties(format vk.Format) vkr.FormatProperties {
	if props, ok := v.formats[format]; ok {
		return props
	}
	props := formatProperties(v.physicalDevice, format)
	v.formats[format] = props
	return props
}

// MemoryTypes implements vkr.Driver.
func (v *VulkanDevice) MemoryTypes() []vkr.MemoryType {
	return v.memoryTypes
}

// CreateImage implements vkr.Driver.
func (v *VulkanDevice) CreateImage(spec vkr.ImageSpec) (vkr.Image, vkr.MemoryRequirements, error) {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    spec.Format,
		Extent: vk.Extent3D{
			Width:  spec.Extent.Width,
			Height: spec.Extent.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   1,
		Samples:       spec.Samples,
		Tiling:        spec.Tiling,
		Usage:         spec.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(v.device, &ici, nil, &image)); err != nil {
		return 0, vkr.MemoryRequirements{}, errors.Wrap(err, "vk.CreateImage()")
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.device, image, &memoryRequirements)
	memoryRequirements.Deref()

	h := vkr.Image(v.handle())
	v.images[h] = image
	return h, vkr.MemoryRequirements{
		Size:           uint64(memoryRequirements.Size),
		Alignment:      uint64(memoryRequirements.Alignment),
		MemoryTypeBits: memoryRequirements.MemoryTypeBits,
	}, nil
}

// DestroyImage implements vkr.Driver.
func (v *VulkanDevice) DestroyImage(image vkr.Image) {
	if native, ok := v.images[image]; ok {
		vk.DestroyImage(v.device, native, nil)
		delete(v.images, image)
	}
}

// AllocateMemory implements vkr.Driver.
func (v *VulkanDevice) AllocateMemory(size uint64, typeIndex uint32) (vkr.Memory, error) {
	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(v.device, &mai, nil, &memory)); err != nil {
		return 0, errors.Wrap(err, "vk.AllocateMemory()")
	}
	h := vkr.Memory(v.handle())
	v.memory[h] = memory
	return h, nil
}

// FreeMemory implements vkr.Driver.
func (v *VulkanDevice) FreeMemory(memory vkr.Memory) {
	if native, ok := v.memory[memory]; ok {
		vk.FreeMemory(v.device, native, nil)
		delete(v.memory, memory)
	}
}

// BindImageMemory implements vkr.Driver.
func (v *VulkanDevice) BindImageMemory(image vkr.Image, memory vkr.Memory) error {
	if err := vk.Error(vk.BindImageMemory(v.device, v.images[image], v.memory[memory], 0)); err != nil {
		return errors.Wrap(err, "vk.BindImageMemory()")
	}
	return nil
}

// CreateImageView implements vkr.Driver.
func (v *VulkanDevice) CreateImageView(image vkr.Image, spec vkr.ViewSpec) (vkr.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    v.images[image],
		ViewType: vk.ImageViewType2d,
		Format:   spec.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     spec.Aspect,
			BaseMipLevel:   0,
			LevelCount:     spec.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.device, &ivci, nil, &view)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateImageView()")
	}
	h := vkr.ImageView(v.handle())
	v.views[h] = view
	return h, nil
}

// DestroyImageView implements vkr.Driver.
func (v *VulkanDevice) DestroyImageView(view vkr.ImageView) {
	if native, ok := v.views[view]; ok {
		vk.DestroyImageView(v.device, native, nil)
		delete(v.views, view)
	}
}

// CreateSwapchain implements vkr.Driver.
func (v *VulkanDevice) CreateSwapchain(cfg vkr.ChainConfig) (vkr.Swapchain, []vkr.Image, error) {
	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         v.surface,
		MinImageCount:   cfg.ImageCount,
		ImageFormat:     cfg.Format.Format,
		ImageColorSpace: cfg.Format.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  cfg.Extent.Width,
			Height: cfg.Extent.Height,
		},
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:          cfg.Transform,
		CompositeAlpha:        cfg.CompositeAlpha,
		PresentMode:           cfg.PresentMode,
		Clipped:               vk.True,
		ImageArrayLayers:      1,
		ImageSharingMode:      cfg.Sharing,
		QueueFamilyIndexCount: uint32(len(cfg.QueueFamilies)),
		PQueueFamilyIndices:   cfg.QueueFamilies,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(v.device, &scci, nil, &swapchain)); err != nil {
		return 0, nil, errors.Wrap(err, "vk.CreateSwapchain()")
	}

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(v.device, swapchain, &numImages, nil)); err != nil {
		vk.DestroySwapchain(v.device, swapchain, nil)
		return 0, nil, errors.Wrap(err, "vk.GetSwapchainImages(num)")
	}
	images := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(v.device, swapchain, &numImages, images)); err != nil {
		vk.DestroySwapchain(v.device, swapchain, nil)
		return 0, nil, errors.Wrap(err, "vk.GetSwapchainImages(images)")
	}

	h := vkr.Swapchain(v.handle())
	v.swapchains[h] = swapchain
	handles := make([]vkr.Image, 0, numImages)
	for _, image := range images[:numImages] {
		ih := vkr.Image(v.handle())
		v.images[ih] = image
		handles = append(handles, ih)
	}
	v.chainImages[h] = handles
	return h, handles, nil
}

// DestroySwapchain implements vkr.Driver. The chain images go with it.
func (v *VulkanDevice) DestroySwapchain(chain vkr.Swapchain) {
	native, ok := v.swapchains[chain]
	if !ok {
		return
	}
	for _, image := range v.chainImages[chain] {
		delete(v.images, image)
	}
	delete(v.chainImages, chain)
	vk.DestroySwapchain(v.device, native, nil)
	delete(v.swapchains, chain)
}

// CreateRenderPass implements vkr.Driver.
func (v *VulkanDevice) CreateRenderPass(layout vkr.RenderTargetLayout) (vkr.RenderPass, error) {
	rpci := layout.CreateInfo()

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(v.device, &rpci, nil, &renderPass)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateRenderPass()")
	}
	h := vkr.RenderPass(v.handle())
	v.renderPasses[h] = renderPass
	return h, nil
}

// DestroyRenderPass implements vkr.Driver.
func (v *VulkanDevice) DestroyRenderPass(pass vkr.RenderPass) {
	if native, ok := v.renderPasses[pass]; ok {
		vk.DestroyRenderPass(v.device, native, nil)
		delete(v.renderPasses, pass)
	}
}

// WaitIdle implements vkr.Driver.
func (v *VulkanDevice) WaitIdle() {
	if err := vk.Error(vk.DeviceWaitIdle(v.device)); err != nil {
		log.WithError(err).Warn("vk.DeviceWaitIdle() failed")
	}
}

// Release destroys the logical device. Objects still alive at this
// point were leaked by their owner.
func (v *VulkanDevice) Release() {
	if v.device == nil {
		return
	}
	if leaked := len(v.images) + len(v.memory) + len(v.views) + len(v.swapchains) + len(v.renderPasses); leaked > 0 {
		log.WithField("objects", leaked).Warn("device destroyed with live objects")
	}
	vk.DestroyDevice(v.device, nil)
	v.device = nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
