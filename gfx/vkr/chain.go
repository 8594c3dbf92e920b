// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/koructx/gfx"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ChainState is the lifecycle state of a presentable chain.
type ChainState int

// Chain states.
const (
	ChainUninitialized ChainState = iota
	ChainReady
	ChainStale
	ChainDestroyed
)

func (s ChainState) String() string {
	switch s {
	case ChainUninitialized:
		return "uninitialized"
	case ChainReady:
		return "ready"
	case ChainStale:
		return "stale"
	case ChainDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("ChainState(%d)", int(s))
	}
}

var errChainDestroyed = errors.New("chain already destroyed")

// ChainConfig is the selection policy applied to surface capabilities.
type ChainConfig struct {
	Format         SurfaceFormat
	PresentMode    vk.PresentMode
	Extent         gfx.Extent2D
	ImageCount     uint32
	Transform      vk.SurfaceTransformFlagBits
	CompositeAlpha vk.CompositeAlphaFlagBits
	Sharing        vk.SharingMode
	QueueFamilies  []uint32
}

// ChooseSurfaceFormat prefers 8 bit BGRA in nonlinear sRGB, else the
// first format reported.
func ChooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return SurfaceFormat{}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, the one
// mode every implementation must offer.
func ChoosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent, unless the surface
// leaves it undefined, in which case the framebuffer size is clamped
// into the supported bounds.
func ChooseExtent(caps SurfaceCapabilities, framebuffer gfx.Extent2D) gfx.Extent2D {
	if !caps.UndefinedExtent() {
		return caps.CurrentExtent
	}
	return framebuffer.Clamp(caps.MinImageExtent, caps.MaxImageExtent)
}

// ChooseImageCount asks for one image above the minimum, capped by the
// maximum when the surface has one.
func ChooseImageCount(caps SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

var compositeAlphaByPriority = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
	vk.CompositeAlphaInheritBit,
}

// ChooseCompositeAlpha returns the first supported mode, opaque first.
func ChooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, flag := range compositeAlphaByPriority {
		if supported&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// SharingFor returns exclusive sharing when one family serves both
// roles, and concurrent sharing across both families otherwise.
func SharingFor(queues QueueAssignment) (vk.SharingMode, []uint32) {
	if queues.SameFamily() {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, queues.Families()
}

// NewChainConfig applies the selection policy.
func NewChainConfig(caps SurfaceCapabilities, framebuffer gfx.Extent2D, queues QueueAssignment) ChainConfig {
	sharing, families := SharingFor(queues)
	return ChainConfig{
		Format:         ChooseSurfaceFormat(caps.Formats),
		PresentMode:    ChoosePresentMode(caps.PresentModes),
		Extent:         ChooseExtent(caps, framebuffer),
		ImageCount:     ChooseImageCount(caps),
		Transform:      caps.CurrentTransform,
		CompositeAlpha: ChooseCompositeAlpha(caps.SupportedCompositeAlpha),
		Sharing:        sharing,
		QueueFamilies:  families,
	}
}

// Chain is the presentable image chain of a surface, together with
// the per-image views and the attachments sized to it.
type Chain struct {
	driver      Driver
	window      FramebufferSizer
	queues      QueueAssignment
	builder     *AttachmentBuilder
	depthFormat vk.Format
	samples     vk.SampleCountFlagBits

	state       ChainState
	config      ChainConfig
	handle      Swapchain
	images      []Image
	views       []ImageView
	attachments *Attachments
}

// NewChain creates an uninitialised chain.
func NewChain(driver Driver, window FramebufferSizer, queues QueueAssignment, depthFormat vk.Format, samples vk.SampleCountFlagBits) *Chain {
	return &Chain{
		driver:      driver,
		window:      window,
		queues:      queues,
		builder:     NewAttachmentBuilder(driver),
		depthFormat: depthFormat,
		samples:     samples,
	}
}

// State returns the lifecycle state.
func (c *Chain) State() ChainState {
	return c.state
}

// Config returns the configuration the chain was last built with.
func (c *Chain) Config() ChainConfig {
	return c.config
}

// Images returns the chain images. They belong to the chain.
func (c *Chain) Images() []Image {
	return c.images
}

// Views returns one view per chain image.
func (c *Chain) Views() []ImageView {
	return c.views
}

// Attachments returns the attachments sized to the chain.
func (c *Chain) Attachments() *Attachments {
	return c.attachments
}

// FramebufferViews returns the views bound to the render target slots
// for chain image i.
func (c *Chain) FramebufferViews(i int) []ImageView {
	if c.attachments == nil || i < 0 || i >= len(c.views) {
		return nil
	}
	views := make([]ImageView, 3)
	views[ColorSlot] = c.attachments.Color.View()
	views[DepthSlot] = c.attachments.Depth.View()
	views[ResolveSlot] = c.views[i]
	return views
}

// Create builds the chain, its views and its attachments.
func (c *Chain) Create() error {
	switch c.state {
	case ChainReady:
		return nil
	case ChainDestroyed:
		return newError(PhaseChainBuild, ErrChainCreation, errChainDestroyed)
	}
	if c.handle != 0 {
		c.teardown()
	}

	caps, err := c.driver.SurfaceCapabilities()
	if err != nil {
		return newError(PhaseSurface, ErrSurfaceCreation, err)
	}
	if !caps.Adequate() {
		return newError(PhaseChainBuild, ErrChainCreation, errors.New("surface reports no formats or present modes"))
	}

	cfg := NewChainConfig(caps, c.window.FramebufferSize(), c.queues)
	if cfg.Extent.Empty() {
		return newError(PhaseChainBuild, ErrChainCreation, fmt.Errorf("extent %s has no area", cfg.Extent))
	}
	if c.config.Format.Format != vk.FormatUndefined && c.config.Format != cfg.Format {
		log.WithField("format", cfg.Format.Format).Warn("surface format changed across recreate")
	}

	handle, images, err := c.driver.CreateSwapchain(cfg)
	if err != nil {
		return newError(PhaseChainBuild, ErrChainCreation, err)
	}
	c.handle, c.images, c.config = handle, images, cfg

	if err := c.createViews(); err != nil {
		c.teardown()
		return err
	}

	attachments, err := c.builder.Build(cfg.Extent, cfg.Format.Format, c.depthFormat, c.samples)
	if err != nil {
		c.teardown()
		return err
	}
	c.attachments = attachments

	c.state = ChainReady
	log.WithFields(log.Fields{
		"extent":  cfg.Extent,
		"images":  len(images),
		"format":  cfg.Format.Format,
		"present": cfg.PresentMode,
		"sharing": cfg.Sharing,
	}).Info("chain built")
	return nil
}

func (c *Chain) createViews() error {
	c.views = make([]ImageView, 0, len(c.images))
	for idx, image := range c.images {
		view, err := c.driver.CreateImageView(image, ViewSpec{
			Format:    c.config.Format.Format,
			Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevels: 1,
		})
		if err != nil {
			return newError(PhaseChainBuild, ErrViewCreation, errors.Wrapf(err, "chain image %d", idx))
		}
		c.views = append(c.views, view)
	}
	return nil
}

// MarkStale flags a ready chain as incompatible with its surface.
func (c *Chain) MarkStale() {
	if c.state == ChainReady {
		c.state = ChainStale
	}
}

// Recreate tears the chain down and builds it again against fresh
// surface capabilities. The caller must make sure none of the chain's
// resources are in use.
func (c *Chain) Recreate() error {
	switch c.state {
	case ChainDestroyed:
		return newError(PhaseChainBuild, ErrChainCreation, errChainDestroyed)
	case ChainUninitialized:
		return c.Create()
	}

	c.state = ChainStale
	c.teardown()
	log.WithField("state", c.state).Debug("chain torn down for recreate")
	return c.Create()
}

// Destroy releases everything the chain owns. No operation is allowed
// afterwards.
func (c *Chain) Destroy() {
	if c.state == ChainDestroyed {
		return
	}
	c.teardown()
	c.state = ChainDestroyed
}

// teardown runs the dependency ordered teardown list: views, then
// attachments, then the chain itself. Each step tolerates a partially
// built chain.
func (c *Chain) teardown() {
	steps := []func(){
		c.destroyViews,
		c.releaseAttachments,
		c.destroySwapchain,
	}
	for _, step := range steps {
		step()
	}
}

func (c *Chain) destroyViews() {
	for _, view := range c.views {
		c.driver.DestroyImageView(view)
	}
	c.views = nil
}

func (c *Chain) releaseAttachments() {
	if c.attachments == nil {
		return
	}
	c.attachments.Release()
	c.attachments = nil
}

func (c *Chain) destroySwapchain() {
	if c.handle == 0 {
		return
	}
	c.driver.DestroySwapchain(c.handle)
	c.handle = 0
	c.images = nil
}
