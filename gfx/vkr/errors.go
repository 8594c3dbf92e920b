// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrNoSuitableDevice       = errors.New("no suitable device")
	ErrIncompleteQueueSupport = errors.New("incomplete queue support")
	ErrDiagnosticsSetup       = errors.New("diagnostics setup failed")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrNoMatchingMemoryType   = errors.New("no matching memory type")
	ErrImageCreation          = errors.New("image creation failed")
	ErrChainCreation          = errors.New("presentable chain creation failed")
	ErrViewCreation           = errors.New("image view creation failed")
	ErrSurfaceCreation        = errors.New("surface creation failed")
	ErrDeviceCreation         = errors.New("logical device creation failed")
	ErrRenderPassCreation     = errors.New("render pass creation failed")
)

// Phase names the stage of context construction a failure came from.
type Phase string

// Phases of the rendering context.
const (
	PhaseDevicePick      Phase = "device pick"
	PhaseDeviceCreation  Phase = "device creation"
	PhaseDiagnostics     Phase = "diagnostics"
	PhaseSurface         Phase = "surface"
	PhaseChainBuild      Phase = "chain build"
	PhaseAttachmentBuild Phase = "attachment build"
	PhaseRenderPass      Phase = "render pass"
)

// Error is a classified rendering context failure.
type Error struct {
	Phase Phase
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Phase, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Phase, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newError(phase Phase, kind, err error) *Error {
	return &Error{Phase: phase, Kind: kind, Err: err}
}

// PhaseOf returns the phase of a classified error, or "" when err
// carries none.
func PhaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}
