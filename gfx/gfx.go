// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related primitives shared by backends.
package gfx

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ReleaseFunc adapts a plain function into a Releasable.
type ReleaseFunc func()

// Release implements Releasable.
func (f ReleaseFunc) Release() {
	f()
}

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Empty reports whether the extent covers no pixels.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Clamp restricts the extent into [min, max] per dimension.
func (e Extent2D) Clamp(min, max Extent2D) Extent2D {
	return Extent2D{
		Width:  clamp(e.Width, min.Width, max.Width),
		Height: clamp(e.Height, min.Height, max.Height),
	}
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// vulkanClip maps OpenGL style clip space onto Vulkan's: Y points down
// and depth spans [0, 1].
var vulkanClip = glm.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection returns a perspective projection for the given extent, in
// Vulkan clip space. An empty extent yields the identity matrix.
func Projection(extent Extent2D, fovy, near, far float32) glm.Mat4 {
	if extent.Empty() {
		return glm.Ident4()
	}
	aspect := float32(extent.Width) / float32(extent.Height)
	return vulkanClip.Mul4(glm.Perspective(fovy, aspect, near, far))
}
