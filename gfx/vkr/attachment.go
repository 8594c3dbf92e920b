// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/koructx/gfx"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// DepthFormatCandidates lists depth formats, highest precision first.
var DepthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// FindSupportedFormat returns the first candidate whose tiling supports
// all of features.
func FindSupportedFormat(q FormatQuerier, candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error) {
	for _, format := range candidates {
		props := q.FormatProperties(format)
		switch tiling {
		case vk.ImageTilingLinear:
			if props.LinearTilingFeatures&features == features {
				return format, nil
			}
		case vk.ImageTilingOptimal:
			if props.OptimalTilingFeatures&features == features {
				return format, nil
			}
		}
	}
	return vk.FormatUndefined, newError(PhaseAttachmentBuild, ErrUnsupportedFormat,
		fmt.Errorf("none of %d candidates supports features %#x", len(candidates), uint32(features)))
}

// FindDepthFormat picks the depth attachment format.
func FindDepthFormat(q FormatQuerier) (vk.Format, error) {
	return FindSupportedFormat(q, DepthFormatCandidates, vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit))
}

// HasStencilComponent reports whether a depth format carries stencil.
func HasStencilComponent(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}

// Attachment owns an image, its memory and its view.
type Attachment struct {
	Format  vk.Format
	Samples vk.SampleCountFlagBits
	Extent  gfx.Extent2D

	image  Image
	memory *DeviceMemory
	view   ImageView

	owned gfx.Stack
}

// Image returns the image handle.
func (a *Attachment) Image() Image {
	return a.image
}

// View returns the view handle.
func (a *Attachment) View() ImageView {
	return a.view
}

// Memory returns the backing allocation.
func (a *Attachment) Memory() *DeviceMemory {
	return a.memory
}

// Release destroys the view, frees the memory and destroys the image.
// Calling it again does nothing.
func (a *Attachment) Release() {
	a.owned.Release()
	a.image, a.view = 0, 0
}

// AttachmentBuilder creates attachment images for one device.
type AttachmentBuilder struct {
	driver Driver
	alloc  *MemoryAllocator
}

// NewAttachmentBuilder creates a builder allocating through driver.
func NewAttachmentBuilder(driver Driver) *AttachmentBuilder {
	return &AttachmentBuilder{
		driver: driver,
		alloc:  NewMemoryAllocator(driver),
	}
}

// CreateImage creates an image, backs it with memory matching
// spec.Properties and creates a view over it. On failure everything
// created so far is released.
func (b *AttachmentBuilder) CreateImage(spec ImageSpec) (*Attachment, error) {
	if spec.MipLevels == 0 {
		spec.MipLevels = 1
	}
	a := &Attachment{
		Format:  spec.Format,
		Samples: spec.Samples,
		Extent:  spec.Extent,
	}

	image, req, err := b.driver.CreateImage(spec)
	if err != nil {
		return nil, newError(PhaseAttachmentBuild, ErrImageCreation, err)
	}
	a.image = image
	a.owned.PushFunc(func() { b.driver.DestroyImage(image) })

	memory, err := b.alloc.Malloc(req, spec.Properties)
	if err != nil {
		a.Release()
		if PhaseOf(err) != "" {
			return nil, err
		}
		return nil, newError(PhaseAttachmentBuild, ErrImageCreation, err)
	}
	a.memory = memory
	a.owned.Push(memory)

	if err := b.driver.BindImageMemory(image, memory.Get()); err != nil {
		a.Release()
		return nil, newError(PhaseAttachmentBuild, ErrImageCreation, err)
	}

	view, err := b.driver.CreateImageView(image, ViewSpec{
		Format:    spec.Format,
		Aspect:    spec.Aspect,
		MipLevels: spec.MipLevels,
	})
	if err != nil {
		a.Release()
		return nil, newError(PhaseAttachmentBuild, ErrViewCreation, err)
	}
	a.view = view
	a.owned.PushFunc(func() { b.driver.DestroyImageView(view) })

	return a, nil
}

// Attachments is the colour, depth and resolve set of one chain.
type Attachments struct {
	Color   *Attachment
	Depth   *Attachment
	Resolve *Attachment

	owned gfx.Stack
}

// Release releases the attachments in reverse creation order.
func (s *Attachments) Release() {
	s.owned.Release()
}

// Build creates the multisampled colour target, the depth buffer and
// the single sample resolve target for extent.
func (b *AttachmentBuilder) Build(extent gfx.Extent2D, colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits) (*Attachments, error) {
	set := &Attachments{}
	specs := []struct {
		dst  **Attachment
		spec ImageSpec
	}{
		{&set.Color, ImageSpec{
			Extent:     extent,
			Samples:    samples,
			Format:     colorFormat,
			Tiling:     vk.ImageTilingOptimal,
			Usage:      vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit | vk.ImageUsageColorAttachmentBit),
			Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		}},
		{&set.Depth, ImageSpec{
			Extent:     extent,
			Samples:    samples,
			Format:     depthFormat,
			Tiling:     vk.ImageTilingOptimal,
			Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
			Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		}},
		{&set.Resolve, ImageSpec{
			Extent:     extent,
			Samples:    vk.SampleCount1Bit,
			Format:     colorFormat,
			Tiling:     vk.ImageTilingOptimal,
			Usage:      vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
			Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		}},
	}

	for _, s := range specs {
		a, err := b.CreateImage(s.spec)
		if err != nil {
			set.Release()
			return nil, err
		}
		*s.dst = a
		set.owned.Push(a)
	}

	log.WithFields(log.Fields{
		"extent":  extent,
		"samples": samples,
		"depth":   depthFormat,
	}).Debug("attachments built")
	return set, nil
}
