// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"errors"
	"fmt"

	"github.com/devblok/koructx/gfx"
	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
)

var errInjected = errors.New("injected failure")

// fakeDriver hands out sequential handles and records every create and
// destroy so tests can check ordering and leaks.
type fakeDriver struct {
	next   uint64
	events []string
	kinds  map[uint64]string
	freed  map[uint64]int

	caps        vkr.SurfaceCapabilities
	formats     map[vk.Format]vkr.FormatProperties
	memoryTypes []vkr.MemoryType
	typeBits    uint32
	extraImages int

	failImageAt int
	failViewAt  int
	failChain   bool
	imageCalls  int
	viewCalls   int

	waits    int
	released int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		kinds: make(map[uint64]string),
		freed: make(map[uint64]int),
		caps:  testSurface(),
		formats: map[vk.Format]vkr.FormatProperties{
			vk.FormatD32Sfloat: {
				OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
			},
		},
		memoryTypes: []vkr.MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
		},
		typeBits: 0x3,
	}
}

func (d *fakeDriver) create(kind string) uint64 {
	d.next++
	d.kinds[d.next] = kind
	d.events = append(d.events, fmt.Sprintf("create %s %d", kind, d.next))
	return d.next
}

func (d *fakeDriver) destroy(kind string, h uint64) {
	d.freed[h]++
	d.events = append(d.events, fmt.Sprintf("destroy %s %d", kind, h))
}

// live returns handles created but never destroyed, by kind.
func (d *fakeDriver) live(kind string) []uint64 {
	var hs []uint64
	for h, k := range d.kinds {
		if k == kind && d.freed[h] == 0 {
			hs = append(hs, h)
		}
	}
	return hs
}

func (d *fakeDriver) Release() {
	d.released++
	d.events = append(d.events, "destroy device")
}

func (d *fakeDriver) SurfaceCapabilities() (vkr.SurfaceCapabilities, error) {
	return d.caps, nil
}

func (d *fakeDriver) FormatProperties(format vk.Format) vkr.FormatProperties {
	return d.formats[format]
}

func (d *fakeDriver) MemoryTypes() []vkr.MemoryType {
	return d.memoryTypes
}

func (d *fakeDriver) CreateImage(spec vkr.ImageSpec) (vkr.Image, vkr.MemoryRequirements, error) {
	d.imageCalls++
	if d.failImageAt == d.imageCalls {
		return 0, vkr.MemoryRequirements{}, errInjected
	}
	h := d.create("image")
	return vkr.Image(h), vkr.MemoryRequirements{
		Size:           uint64(spec.Extent.Width) * uint64(spec.Extent.Height) * 4,
		Alignment:      256,
		MemoryTypeBits: d.typeBits,
	}, nil
}

func (d *fakeDriver) DestroyImage(image vkr.Image) {
	d.destroy("image", uint64(image))
}

func (d *fakeDriver) AllocateMemory(size uint64, typeIndex uint32) (vkr.Memory, error) {
	return vkr.Memory(d.create("memory")), nil
}

func (d *fakeDriver) FreeMemory(memory vkr.Memory) {
	d.destroy("memory", uint64(memory))
}

func (d *fakeDriver) BindImageMemory(image vkr.Image, memory vkr.Memory) error {
	return nil
}

func (d *fakeDriver) CreateImageView(image vkr.Image, spec vkr.ViewSpec) (vkr.ImageView, error) {
	d.viewCalls++
	if d.failViewAt == d.viewCalls {
		return 0, errInjected
	}
	return vkr.ImageView(d.create("view")), nil
}

func (d *fakeDriver) DestroyImageView(view vkr.ImageView) {
	d.destroy("view", uint64(view))
}

func (d *fakeDriver) CreateSwapchain(cfg vkr.ChainConfig) (vkr.Swapchain, []vkr.Image, error) {
	if d.failChain {
		return 0, nil, errInjected
	}
	h := d.create("swapchain")
	images := make([]vkr.Image, int(cfg.ImageCount)+d.extraImages)
	for i := range images {
		// Chain images belong to the chain and are never destroyed
		// individually, so they are not tracked as live objects.
		d.next++
		images[i] = vkr.Image(d.next)
	}
	return vkr.Swapchain(h), images, nil
}

func (d *fakeDriver) DestroySwapchain(chain vkr.Swapchain) {
	d.destroy("swapchain", uint64(chain))
}

func (d *fakeDriver) CreateRenderPass(layout vkr.RenderTargetLayout) (vkr.RenderPass, error) {
	return vkr.RenderPass(d.create("renderpass")), nil
}

func (d *fakeDriver) DestroyRenderPass(pass vkr.RenderPass) {
	d.destroy("renderpass", uint64(pass))
}

func (d *fakeDriver) WaitIdle() {
	d.waits++
}

// fakePlatform serves fixed candidates and a fakeDriver.
type fakePlatform struct {
	candidates []vkr.DeviceCandidate
	procs      vkr.StaticProcs
	driver     *fakeDriver

	registerErr  error
	registered   vkr.DeliverFunc
	flags        vk.DebugReportFlags
	unregistered int
	opened       int
	events       *[]string
}

func newFakePlatform(candidates ...vkr.DeviceCandidate) *fakePlatform {
	driver := newFakeDriver()
	return &fakePlatform{
		candidates: candidates,
		procs:      vkr.StaticProcs{},
		driver:     driver,
		events:     &driver.events,
	}
}

func (p *fakePlatform) withDebugReport() *fakePlatform {
	p.procs[vkr.CreateDebugReportProc] = 0x1000
	p.procs[vkr.DestroyDebugReportProc] = 0x2000
	return p
}

func (p *fakePlatform) RegisterDiagnostics(flags vk.DebugReportFlags, deliver vkr.DeliverFunc) (vkr.DebugCallback, error) {
	if p.registerErr != nil {
		return 0, p.registerErr
	}
	p.registered = deliver
	p.flags = flags
	*p.events = append(*p.events, "create diagnostics")
	return 77, nil
}

func (p *fakePlatform) UnregisterDiagnostics(cb vkr.DebugCallback) {
	p.unregistered++
	*p.events = append(*p.events, "destroy diagnostics")
}

func (p *fakePlatform) Candidates() ([]vkr.DeviceCandidate, error) {
	return p.candidates, nil
}

func (p *fakePlatform) Procs() vkr.ProcTable {
	return p.procs
}

func (p *fakePlatform) OpenDevice(c vkr.DeviceCandidate, queues vkr.QueueAssignment, req vkr.Requirements) (vkr.Driver, error) {
	p.opened++
	p.driver.events = append(p.driver.events, "create device")
	return p.driver, nil
}

type fixedWindow gfx.Extent2D

func (w *fixedWindow) FramebufferSize() gfx.Extent2D {
	return gfx.Extent2D(*w)
}

func testSurface() vkr.SurfaceCapabilities {
	return vkr.SurfaceCapabilities{
		MinImageCount:           2,
		MaxImageCount:           8,
		CurrentExtent:           gfx.Extent2D{Width: 800, Height: 600},
		MinImageExtent:          gfx.Extent2D{Width: 1, Height: 1},
		MaxImageExtent:          gfx.Extent2D{Width: 4096, Height: 4096},
		CurrentTransform:        vk.SurfaceTransformIdentityBit,
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		Formats: []vkr.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

func sampleCounts(bits ...vk.SampleCountFlagBits) vk.SampleCountFlags {
	var flags vk.SampleCountFlags
	for _, b := range bits {
		flags |= vk.SampleCountFlags(b)
	}
	return flags
}

func suitableCandidate(index int, name string) vkr.DeviceCandidate {
	return vkr.DeviceCandidate{
		Index: index,
		Name:  name,
		Type:  vk.PhysicalDeviceTypeDiscreteGpu,
		Features: vkr.DeviceFeatures{
			TessellationShader: true,
			SamplerAnisotropy:  true,
			SampleRateShading:  true,
		},
		Extensions: []string{"VK_KHR_maintenance1", vk.KhrSwapchainExtensionName},
		QueueFamilies: []vkr.QueueFamily{
			{Index: 0, Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), Count: 16, Present: true},
		},
		Surface:           testSurface(),
		ColorSampleCounts: sampleCounts(vk.SampleCount1Bit, vk.SampleCount2Bit, vk.SampleCount4Bit, vk.SampleCount8Bit),
		DepthSampleCounts: sampleCounts(vk.SampleCount1Bit, vk.SampleCount2Bit, vk.SampleCount4Bit),
	}
}
