// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx_test

import (
	"reflect"
	"testing"

	"github.com/devblok/koructx/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
)

func TestStackReleasesInReverse(t *testing.T) {
	var (
		order []int
		s     gfx.Stack
	)
	for i := 0; i < 4; i++ {
		i := i
		s.PushFunc(func() { order = append(order, i) })
	}
	s.Release()

	if !reflect.DeepEqual(order, []int{3, 2, 1, 0}) {
		t.Errorf("release order %v", order)
	}
	if s.Len() != 0 {
		t.Errorf("stack not empty after release: %d", s.Len())
	}

	s.Release()
	if len(order) != 4 {
		t.Error("second release ran items again")
	}
}

func TestStackForget(t *testing.T) {
	var (
		released bool
		s        gfx.Stack
	)
	s.PushFunc(func() { released = true })
	s.Forget()
	s.Release()
	if released {
		t.Error("forgotten item was released")
	}
}

func TestExtentClamp(t *testing.T) {
	cases := []struct {
		in, min, max, out gfx.Extent2D
	}{
		{gfx.Extent2D{1920, 1080}, gfx.Extent2D{1, 1}, gfx.Extent2D{1024, 768}, gfx.Extent2D{1024, 768}},
		{gfx.Extent2D{0, 0}, gfx.Extent2D{1, 1}, gfx.Extent2D{1024, 768}, gfx.Extent2D{1, 1}},
		{gfx.Extent2D{640, 480}, gfx.Extent2D{1, 1}, gfx.Extent2D{1024, 768}, gfx.Extent2D{640, 480}},
	}
	for _, c := range cases {
		if got := c.in.Clamp(c.min, c.max); got != c.out {
			t.Errorf("%v clamped into [%v, %v] = %v, want %v", c.in, c.min, c.max, got, c.out)
		}
	}
}

func TestProjectionFlipsY(t *testing.T) {
	proj := gfx.Projection(gfx.Extent2D{800, 600}, glm.DegToRad(45), 0.1, 10)
	persp := glm.Perspective(glm.DegToRad(45), 800.0/600.0, 0.1, 10)

	if !glm.FloatEqual(proj[0], persp[0]) {
		t.Errorf("x scale %f, want %f", proj[0], persp[0])
	}
	if !glm.FloatEqual(proj[5], -persp[5]) {
		t.Errorf("y scale %f, want %f", proj[5], -persp[5])
	}
}

func TestProjectionEmptyExtent(t *testing.T) {
	if proj := gfx.Projection(gfx.Extent2D{800, 0}, 1, 0.1, 10); proj != glm.Ident4() {
		t.Errorf("expected identity, got %v", proj)
	}
}
