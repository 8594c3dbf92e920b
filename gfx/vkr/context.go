// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync/atomic"

	"github.com/devblok/koructx/gfx"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config is the read-only configuration of a rendering context.
type Config struct {
	Requirements Requirements

	// MaxSamples caps the multisample count. Zero means no cap.
	MaxSamples uint32

	Diagnostics DiagnosticsConfig
}

// DefaultConfig returns the configuration with default requirements
// and diagnostics disabled.
func DefaultConfig() Config {
	return Config{
		Requirements: DefaultRequirements(),
		Diagnostics: DiagnosticsConfig{
			MinSeverity: SeverityWarning,
			Categories:  AllCategories,
		},
	}
}

// Context is the device, presentable chain, attachments and render pass
// of one window. It is driven from a single goroutine, except for
// NotifyResize.
type Context struct {
	window FramebufferSizer

	diagnostics *Diagnostics
	negotiated  Negotiated
	driver      Driver
	depthFormat vk.Format
	chain       *Chain
	layout      RenderTargetLayout
	renderPass  RenderPass

	resized   uint32
	destroyed bool
	owned     gfx.Stack
}

// NewContext negotiates a device on platform and builds everything
// needed to render into window. On failure whatever was created is
// released in reverse order.
func NewContext(platform Platform, window FramebufferSizer, cfg Config, sink Sink) (*Context, error) {
	c := &Context{window: window}
	if err := c.init(platform, cfg, sink); err != nil {
		c.owned.Release()
		return nil, err
	}
	return c, nil
}

func (c *Context) init(platform Platform, cfg Config, sink Sink) error {
	/* Diagnostics, ahead of device creation */
	diagnostics, err := NewDiagnostics(NewLoader(platform.Procs()), platform, cfg.Diagnostics, sink)
	if err != nil {
		return err
	}
	c.diagnostics = diagnostics
	c.owned.Push(diagnostics)

	/* Device negotiation */
	candidates, err := platform.Candidates()
	if err != nil {
		return newError(PhaseDevicePick, ErrNoSuitableDevice, errors.Wrap(err, "enumerating devices"))
	}
	negotiator := Negotiator{
		Requirements: cfg.Requirements,
		MaxSamples:   cfg.MaxSamples,
	}
	if c.negotiated, err = negotiator.Negotiate(candidates); err != nil {
		return err
	}

	driver, err := platform.OpenDevice(c.negotiated.Candidate, c.negotiated.Queues, cfg.Requirements)
	if err != nil {
		return newError(PhaseDeviceCreation, ErrDeviceCreation, err)
	}
	c.driver = driver
	c.owned.Push(driver)

	if c.depthFormat, err = FindDepthFormat(driver); err != nil {
		return err
	}

	/* Presentable chain and attachments */
	c.chain = NewChain(driver, c.window, c.negotiated.Queues, c.depthFormat, c.negotiated.Samples)
	if err := c.chain.Create(); err != nil {
		return err
	}
	c.owned.PushFunc(c.chain.Destroy)

	/* Render pass */
	c.layout = DescribeRenderTarget(c.chain.Config().Format.Format, c.depthFormat, c.negotiated.Samples)
	renderPass, err := driver.CreateRenderPass(c.layout)
	if err != nil {
		return newError(PhaseRenderPass, ErrRenderPassCreation, err)
	}
	c.renderPass = renderPass
	c.owned.PushFunc(func() { driver.DestroyRenderPass(renderPass) })

	log.WithFields(log.Fields{
		"device":  c.negotiated.Candidate.Name,
		"extent":  c.chain.Config().Extent,
		"samples": c.negotiated.Samples,
	}).Info("rendering context ready")
	return nil
}

// NotifyResize records that the window changed size. It only sets a
// flag and is safe to call from window callbacks on any goroutine.
func (c *Context) NotifyResize() {
	atomic.StoreUint32(&c.resized, 1)
}

// CheckResize reports whether a resize is pending and clears the flag.
func (c *Context) CheckResize() bool {
	return atomic.SwapUint32(&c.resized, 0) == 1
}

// PollResize is called once per frame before presenting. When a resize
// is pending it waits for the device to go idle and recreates the
// chain. While the window has no drawable area the resize stays pending.
func (c *Context) PollResize() (bool, error) {
	if c.destroyed || !c.CheckResize() {
		return false, nil
	}
	if c.window.FramebufferSize().Empty() {
		c.NotifyResize()
		return false, nil
	}
	c.chain.MarkStale()
	c.driver.WaitIdle()
	if err := c.Recreate(); err != nil {
		return true, err
	}
	return true, nil
}

// Recreate rebuilds the chain and its attachments. The device, the
// render pass and the layout are kept.
func (c *Context) Recreate() error {
	if c.destroyed {
		return newError(PhaseChainBuild, ErrChainCreation, errChainDestroyed)
	}
	return c.chain.Recreate()
}

// Destroy waits for the device and releases everything in reverse
// creation order. The instance and surface stay with the caller.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.driver.WaitIdle()
	c.owned.Release()
	c.destroyed = true
}

// Driver returns the logical device.
func (c *Context) Driver() Driver {
	return c.driver
}

// Device returns the negotiated device snapshot.
func (c *Context) Device() DeviceCandidate {
	return c.negotiated.Candidate
}

// Queues returns the queue family assignment.
func (c *Context) Queues() QueueAssignment {
	return c.negotiated.Queues
}

// Samples returns the multisample count of the attachments.
func (c *Context) Samples() vk.SampleCountFlagBits {
	return c.negotiated.Samples
}

// Format returns the chain image format.
func (c *Context) Format() vk.Format {
	return c.chain.Config().Format.Format
}

// DepthFormat returns the depth attachment format.
func (c *Context) DepthFormat() vk.Format {
	return c.depthFormat
}

// Extent returns the current chain extent.
func (c *Context) Extent() gfx.Extent2D {
	return c.chain.Config().Extent
}

// Chain returns the presentable chain.
func (c *Context) Chain() *Chain {
	return c.chain
}

// Layout returns the render target layout.
func (c *Context) Layout() RenderTargetLayout {
	return c.layout
}

// RenderPass returns the render pass handle.
func (c *Context) RenderPass() RenderPass {
	return c.renderPass
}

// FramebufferViews returns the render pass compatible views for chain
// image i.
func (c *Context) FramebufferViews(i int) []ImageView {
	return c.chain.FramebufferViews(i)
}

// Diagnostics returns the diagnostics channel.
func (c *Context) Diagnostics() *Diagnostics {
	return c.diagnostics
}
