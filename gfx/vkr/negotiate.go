// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"strings"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// Requirements is what a device must offer to host the context.
type Requirements struct {
	DeviceType       vk.PhysicalDeviceType
	Features         DeviceFeatures
	DeviceExtensions []string
}

// DefaultRequirements asks for a discrete GPU with tessellation,
// anisotropic sampling, sample rate shading and swapchain support.
func DefaultRequirements() Requirements {
	return Requirements{
		DeviceType: vk.PhysicalDeviceTypeDiscreteGpu,
		Features: DeviceFeatures{
			TessellationShader: true,
			SamplerAnisotropy:  true,
			SampleRateShading:  true,
		},
		DeviceExtensions: []string{
			vk.KhrSwapchainExtensionName,
		},
	}
}

// QueueFamilyIndices records the first family found for each role.
type QueueFamilyIndices struct {
	Graphics, Present       uint32
	HasGraphics, HasPresent bool
}

// IsComplete reports whether both roles resolved.
func (q QueueFamilyIndices) IsComplete() bool {
	return q.HasGraphics && q.HasPresent
}

// FindQueueFamilies walks families in index order and picks the lowest
// indexed family for each role. A single family may fill both.
func FindQueueFamilies(families []QueueFamily) QueueFamilyIndices {
	var indices QueueFamilyIndices
	for _, family := range families {
		if !indices.HasGraphics && family.Flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics = family.Index
			indices.HasGraphics = true
		}
		if !indices.HasPresent && family.Present {
			indices.Present = family.Index
			indices.HasPresent = true
		}
		if indices.IsComplete() {
			break
		}
	}
	return indices
}

// QueueAssignment maps queue roles to family indices.
type QueueAssignment struct {
	Graphics uint32 `json:"graphics"`
	Present  uint32 `json:"present"`
}

// SameFamily reports whether one family serves both roles.
func (q QueueAssignment) SameFamily() bool {
	return q.Graphics == q.Present
}

// Families returns the distinct families in use, graphics first.
func (q QueueAssignment) Families() []uint32 {
	if q.SameFamily() {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// AssignQueues derives the queue assignment of a candidate.
func AssignQueues(c DeviceCandidate) (QueueAssignment, error) {
	indices := FindQueueFamilies(c.QueueFamilies)
	if !indices.IsComplete() {
		var missing []string
		if !indices.HasGraphics {
			missing = append(missing, "graphics")
		}
		if !indices.HasPresent {
			missing = append(missing, "present")
		}
		return QueueAssignment{}, newError(PhaseDevicePick, ErrIncompleteQueueSupport,
			fmt.Errorf("%s: no %s family", c.Name, strings.Join(missing, " or ")))
	}
	return QueueAssignment{
		Graphics: indices.Graphics,
		Present:  indices.Present,
	}, nil
}

// Missing returns the entries of required that are not in available.
func Missing(available, required []string) []string {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// CheckSuitability tells whether the candidate satisfies req. When it
// does not, the string holds the first reason found.
func CheckSuitability(c DeviceCandidate, req Requirements) (bool, string) {
	if c.Type != req.DeviceType {
		return false, fmt.Sprintf("device type is %s, need %s", DeviceTypeName(c.Type), DeviceTypeName(req.DeviceType))
	}
	if !c.Features.Covers(req.Features) {
		return false, "required features missing"
	}
	if missing := Missing(c.Extensions, req.DeviceExtensions); len(missing) > 0 {
		return false, "extensions missing: " + strings.Join(missing, ", ")
	}
	indices := FindQueueFamilies(c.QueueFamilies)
	if !indices.HasGraphics {
		return false, "no graphics queue family"
	}
	if !indices.HasPresent {
		return false, "no queue family can present to the surface"
	}
	if !c.Surface.Adequate() {
		return false, "surface reports no formats or present modes"
	}
	return true, ""
}

var sampleCountsByPriority = []vk.SampleCountFlagBits{
	vk.SampleCount64Bit,
	vk.SampleCount32Bit,
	vk.SampleCount16Bit,
	vk.SampleCount8Bit,
	vk.SampleCount4Bit,
	vk.SampleCount2Bit,
}

// MaxUsableSampleCount returns the highest sample count both colour and
// depth framebuffers support, or a single sample.
func MaxUsableSampleCount(color, depth vk.SampleCountFlags) vk.SampleCountFlagBits {
	return CapSampleCount(color&depth, 0)
}

// CapSampleCount returns the highest count in counts that does not
// exceed limit, or a single sample when none does. A zero limit only
// picks the highest supported count.
func CapSampleCount(counts vk.SampleCountFlags, limit uint32) vk.SampleCountFlagBits {
	for _, c := range sampleCountsByPriority {
		if counts&vk.SampleCountFlags(c) != 0 && (limit == 0 || uint32(c) <= limit) {
			return c
		}
	}
	return vk.SampleCount1Bit
}

// Negotiated is the outcome of device negotiation.
type Negotiated struct {
	Candidate DeviceCandidate
	Queues    QueueAssignment
	Samples   vk.SampleCountFlagBits
}

// Verdict is the suitability of one candidate.
type Verdict struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Suitable bool   `json:"suitable"`
	Reason   string `json:"reason,omitempty"`
}

// Negotiator picks the device the context runs on.
type Negotiator struct {
	Requirements Requirements

	// MaxSamples caps the multisample count. Zero means no cap.
	MaxSamples uint32
}

// Report returns a verdict for every candidate, in order.
func (n Negotiator) Report(candidates []DeviceCandidate) []Verdict {
	verdicts := make([]Verdict, len(candidates))
	for i, c := range candidates {
		ok, reason := CheckSuitability(c, n.Requirements)
		verdicts[i] = Verdict{
			Index:    c.Index,
			Name:     c.Name,
			Suitable: ok,
			Reason:   reason,
		}
	}
	return verdicts
}

// Negotiate returns the first suitable candidate in enumeration order.
func (n Negotiator) Negotiate(candidates []DeviceCandidate) (Negotiated, error) {
	var rejected []string
	for _, c := range candidates {
		ok, reason := CheckSuitability(c, n.Requirements)
		if !ok {
			log.WithField("device", c.Name).Debug("device rejected: " + reason)
			rejected = append(rejected, c.Name+": "+reason)
			continue
		}

		queues, err := AssignQueues(c)
		if err != nil {
			return Negotiated{}, err
		}

		samples := CapSampleCount(c.ColorSampleCounts&c.DepthSampleCounts, n.MaxSamples)
		log.WithFields(log.Fields{
			"device":   c.Name,
			"graphics": queues.Graphics,
			"present":  queues.Present,
			"samples":  samples,
		}).Info("device picked")

		return Negotiated{
			Candidate: c,
			Queues:    queues,
			Samples:   samples,
		}, nil
	}

	if len(candidates) == 0 {
		return Negotiated{}, newError(PhaseDevicePick, ErrNoSuitableDevice, fmt.Errorf("no devices enumerated"))
	}
	return Negotiated{}, newError(PhaseDevicePick, ErrNoSuitableDevice, fmt.Errorf("%s", strings.Join(rejected, "; ")))
}
