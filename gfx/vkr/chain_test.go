// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/devblok/koructx/gfx"
	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
)

func TestChoosePresentMode(t *testing.T) {
	cases := []struct {
		modes []vk.PresentMode
		want  vk.PresentMode
	}{
		{[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeMailbox},
		{[]vk.PresentMode{vk.PresentModeFifo}, vk.PresentModeFifo},
		{[]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}, vk.PresentModeFifo},
	}
	for _, c := range cases {
		if got := vkr.ChoosePresentMode(c.modes); got != c.want {
			t.Errorf("%v: got %d, want %d", c.modes, got, c.want)
		}
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vkr.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vkr.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	if got := vkr.ChooseSurfaceFormat([]vkr.SurfaceFormat{other, preferred}); got != preferred {
		t.Errorf("got %+v", got)
	}
	if got := vkr.ChooseSurfaceFormat([]vkr.SurfaceFormat{other}); got != other {
		t.Errorf("got %+v", got)
	}
}

func TestChooseExtent(t *testing.T) {
	caps := testSurface()
	caps.CurrentExtent = gfx.Extent2D{Width: 800, Height: 600}
	if got := vkr.ChooseExtent(caps, gfx.Extent2D{Width: 1920, Height: 1080}); got != caps.CurrentExtent {
		t.Errorf("defined extent: got %v", got)
	}

	caps.CurrentExtent = gfx.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	caps.MinImageExtent = gfx.Extent2D{Width: 1, Height: 1}
	caps.MaxImageExtent = gfx.Extent2D{Width: 1024, Height: 768}
	want := gfx.Extent2D{Width: 1024, Height: 768}
	if got := vkr.ChooseExtent(caps, gfx.Extent2D{Width: 1920, Height: 1080}); got != want {
		t.Errorf("undefined extent: got %v, want %v", got, want)
	}
}

func TestChooseImageCount(t *testing.T) {
	cases := []struct {
		min, max, want uint32
	}{
		{2, 8, 3},
		{2, 2, 2},
		{3, 0, 4},
	}
	for _, c := range cases {
		caps := vkr.SurfaceCapabilities{MinImageCount: c.min, MaxImageCount: c.max}
		if got := vkr.ChooseImageCount(caps); got != c.want {
			t.Errorf("min %d max %d: got %d, want %d", c.min, c.max, got, c.want)
		}
	}
}

func TestSharingFor(t *testing.T) {
	mode, families := vkr.SharingFor(vkr.QueueAssignment{Graphics: 1, Present: 1})
	if mode != vk.SharingModeExclusive || families != nil {
		t.Errorf("same family: %d %v", mode, families)
	}
	mode, families = vkr.SharingFor(vkr.QueueAssignment{Graphics: 0, Present: 2})
	if mode != vk.SharingModeConcurrent || !reflect.DeepEqual(families, []uint32{0, 2}) {
		t.Errorf("split families: %d %v", mode, families)
	}
}

func TestChooseCompositeAlpha(t *testing.T) {
	supported := vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit | vk.CompositeAlphaPreMultipliedBit)
	if got := vkr.ChooseCompositeAlpha(supported); got != vk.CompositeAlphaPreMultipliedBit {
		t.Errorf("got %d", got)
	}
}

func newTestChain(d *fakeDriver) *vkr.Chain {
	w := fixedWindow{Width: 800, Height: 600}
	return vkr.NewChain(d, &w, vkr.QueueAssignment{}, vk.FormatD32Sfloat, vk.SampleCount4Bit)
}

func TestChainLifecycle(t *testing.T) {
	d := newFakeDriver()
	c := newTestChain(d)

	if c.State() != vkr.ChainUninitialized {
		t.Fatalf("initial state %s", c.State())
	}
	if err := c.Create(); err != nil {
		t.Fatal(err)
	}
	if c.State() != vkr.ChainReady {
		t.Fatalf("state after create %s", c.State())
	}

	cfg := c.Config()
	if cfg.Format.Format != vk.FormatB8g8r8a8Srgb || cfg.PresentMode != vk.PresentModeMailbox {
		t.Errorf("config %+v", cfg)
	}
	if len(c.Images()) != 3 || len(c.Views()) != 3 {
		t.Errorf("%d images, %d views", len(c.Images()), len(c.Views()))
	}
	views := c.FramebufferViews(1)
	if len(views) != 3 || views[vkr.ResolveSlot] != c.Views()[1] || views[vkr.ColorSlot] != c.Attachments().Color.View() {
		t.Errorf("framebuffer views %v", views)
	}

	c.MarkStale()
	if c.State() != vkr.ChainStale {
		t.Errorf("state after MarkStale %s", c.State())
	}
	if err := c.Recreate(); err != nil {
		t.Fatal(err)
	}

	c.Destroy()
	if c.State() != vkr.ChainDestroyed {
		t.Errorf("state after destroy %s", c.State())
	}
	for _, kind := range []string{"image", "memory", "view", "swapchain"} {
		if live := d.live(kind); len(live) != 0 {
			t.Errorf("leaked %s handles %v", kind, live)
		}
	}

	if err := c.Recreate(); !errors.Is(err, vkr.ErrChainCreation) {
		t.Errorf("recreate after destroy: %v", err)
	}
	c.Destroy()
}

func TestChainAcceptsExtraImages(t *testing.T) {
	d := newFakeDriver()
	d.extraImages = 2
	c := newTestChain(d)
	if err := c.Create(); err != nil {
		t.Fatal(err)
	}
	if len(c.Views()) != 5 {
		t.Errorf("expected a view per returned image, got %d", len(c.Views()))
	}
	c.Destroy()
}

func TestRecreateTwiceReleasesEachAttachmentOnce(t *testing.T) {
	d := newFakeDriver()
	c := newTestChain(d)
	if err := c.Create(); err != nil {
		t.Fatal(err)
	}

	var prior []uint64
	collect := func() {
		a := c.Attachments()
		for _, at := range []*vkr.Attachment{a.Color, a.Depth, a.Resolve} {
			prior = append(prior, uint64(at.Image()), uint64(at.View()), uint64(at.Memory().Get()))
		}
		for _, v := range c.Views() {
			prior = append(prior, uint64(v))
		}
	}

	collect()
	if err := c.Recreate(); err != nil {
		t.Fatal(err)
	}
	collect()
	if err := c.Recreate(); err != nil {
		t.Fatal(err)
	}

	if got := uint32(len(c.Images())); got < testSurface().MinImageCount {
		t.Errorf("chain has %d images", got)
	}
	for _, h := range prior {
		if d.freed[h] != 1 {
			t.Errorf("handle %d (%s) destroyed %d times", h, d.kinds[h], d.freed[h])
		}
	}
	c.Destroy()
}

// chainHandles labels the views and attachment handles a chain owns.
func chainHandles(c *vkr.Chain, labels map[uint64]string) {
	for _, v := range c.Views() {
		labels[uint64(v)] = "view"
	}
	a := c.Attachments()
	for _, at := range []*vkr.Attachment{a.Color, a.Depth, a.Resolve} {
		labels[uint64(at.Image())] = "attachment"
		labels[uint64(at.View())] = "attachment"
		labels[uint64(at.Memory().Get())] = "attachment"
	}
}

func TestRecreateOrder(t *testing.T) {
	d := newFakeDriver()
	c := newTestChain(d)
	if err := c.Create(); err != nil {
		t.Fatal(err)
	}
	labels := make(map[uint64]string)
	chainHandles(c, labels)

	d.events = nil
	if err := c.Recreate(); err != nil {
		t.Fatal(err)
	}
	chainHandles(c, labels)

	// Collapse consecutive events on the same kind of object.
	var phases []string
	for _, e := range d.events {
		fields := strings.Fields(e)
		h, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		label, ok := labels[h]
		if !ok {
			label = fields[1]
		}
		phase := fields[0] + " " + label
		if len(phases) == 0 || phases[len(phases)-1] != phase {
			phases = append(phases, phase)
		}
	}

	want := []string{
		"destroy view",
		"destroy attachment",
		"destroy swapchain",
		"create swapchain",
		"create view",
		"create attachment",
	}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases %v, want %v", phases, want)
	}
	c.Destroy()
}

func TestChainZeroExtent(t *testing.T) {
	d := newFakeDriver()
	d.caps.CurrentExtent = gfx.Extent2D{}
	c := newTestChain(d)

	if err := c.Create(); !errors.Is(err, vkr.ErrChainCreation) {
		t.Errorf("expected ErrChainCreation, got %v", err)
	}
	if len(d.events) != 0 {
		t.Errorf("native calls made: %v", d.events)
	}
}

func TestChainCreationFailure(t *testing.T) {
	d := newFakeDriver()
	d.failChain = true
	c := newTestChain(d)

	err := c.Create()
	if !errors.Is(err, vkr.ErrChainCreation) {
		t.Fatalf("expected ErrChainCreation, got %v", err)
	}
	if vkr.PhaseOf(err) != vkr.PhaseChainBuild {
		t.Errorf("phase %q", vkr.PhaseOf(err))
	}
	if c.State() != vkr.ChainUninitialized {
		t.Errorf("state %s", c.State())
	}
}

func TestChainViewFailureUnwinds(t *testing.T) {
	d := newFakeDriver()
	d.failViewAt = 2
	c := newTestChain(d)

	if err := c.Create(); !errors.Is(err, vkr.ErrViewCreation) {
		t.Fatalf("expected ErrViewCreation, got %v", err)
	}
	for _, kind := range []string{"view", "swapchain"} {
		if live := d.live(kind); len(live) != 0 {
			t.Errorf("leaked %s handles %v", kind, live)
		}
	}
}
