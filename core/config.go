// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/koructx/gfx/vkr"
)

// ValidationLayer is enabled on the instance and device in debug mode.
const ValidationLayer = "VK_LAYER_LUNARG_standard_validation"

// DebugReportExtension is the instance extension carrying the
// diagnostics callback.
const DebugReportExtension = "VK_EXT_debug_report"

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Instance InstanceConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the window event polling interval in milliseconds
	EventPollDelay int
}

// InstanceConfiguration is used to configure the Vulkan instance
type InstanceConfiguration struct {
	DebugMode bool

	// Extensions and Layers are requested in addition to what
	// debug mode and the window system need.
	Extensions []string
	Layers     []string

	// ValidationLayers are added to Layers in debug mode.
	ValidationLayers []string
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	DeviceExtensions []string

	ScreenWidth  uint32
	ScreenHeight uint32

	// MaxSamples caps multisampling, 0 leaves it to the device.
	MaxSamples uint32

	Diagnostics vkr.DiagnosticsConfig
}

// DefaultConfiguration returns the configuration the commands start from.
func DefaultConfiguration() Configuration {
	requirements := vkr.DefaultRequirements()
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  8,
		},
		Instance: InstanceConfiguration{
			ValidationLayers: []string{ValidationLayer},
		},
		Renderer: RendererConfiguration{
			DeviceExtensions: requirements.DeviceExtensions,
			ScreenWidth:      1280,
			ScreenHeight:     720,
			Diagnostics: vkr.DiagnosticsConfig{
				MinSeverity: vkr.SeverityWarning,
				Categories:  vkr.AllCategories,
			},
		},
	}
}

// ContextConfig derives the rendering context configuration. Diagnostics
// follow the instance debug mode.
func (c Configuration) ContextConfig() vkr.Config {
	cfg := vkr.DefaultConfig()
	cfg.Requirements.DeviceExtensions = c.Renderer.DeviceExtensions
	cfg.MaxSamples = c.Renderer.MaxSamples
	cfg.Diagnostics = c.Renderer.Diagnostics
	cfg.Diagnostics.Enabled = c.Instance.DebugMode
	return cfg
}
