// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// Attachment slots of the render target.
const (
	ColorSlot   = 0
	DepthSlot   = 1
	ResolveSlot = 2
)

// RenderTargetLayout describes a single pass that draws into a
// multisampled colour and depth pair and resolves into a presentable image.
type RenderTargetLayout struct {
	Attachments []vk.AttachmentDescription

	ColorRef   vk.AttachmentReference
	DepthRef   vk.AttachmentReference
	ResolveRef vk.AttachmentReference

	Dependency vk.SubpassDependency
}

// DescribeRenderTarget builds the layout for the negotiated formats.
// Only formats and sample count go into it, so it survives resizes.
func DescribeRenderTarget(colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits) RenderTargetLayout {
	return RenderTargetLayout{
		Attachments: []vk.AttachmentDescription{
			ColorSlot: {
				Format:         colorFormat,
				Samples:        samples,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
			},
			DepthSlot: {
				Format:         depthFormat,
				Samples:        samples,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpDontCare,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			},
			ResolveSlot: {
				Format:         colorFormat,
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpDontCare,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutPresentSrc,
			},
		},
		ColorRef: vk.AttachmentReference{
			Attachment: ColorSlot,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
		DepthRef: vk.AttachmentReference{
			Attachment: DepthSlot,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
		ResolveRef: vk.AttachmentReference{
			Attachment: ResolveSlot,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
		// Make the previous pass' layout transitions visible before
		// this pass writes colour or depth.
		Dependency: vk.SubpassDependency{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: 0,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
		},
	}
}

// Subpass returns the single graphics subpass of the layout.
func (l RenderTargetLayout) Subpass() vk.SubpassDescription {
	depthRef := l.DepthRef
	return vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{l.ColorRef},
		PResolveAttachments:     []vk.AttachmentReference{l.ResolveRef},
		PDepthStencilAttachment: &depthRef,
	}
}

// CreateInfo returns the render pass create info for the layout.
func (l RenderTargetLayout) CreateInfo() vk.RenderPassCreateInfo {
	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(l.Attachments)),
		PAttachments:    l.Attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{l.Subpass()},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{l.Dependency},
	}
}
