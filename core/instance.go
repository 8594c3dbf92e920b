// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/devblok/koructx/gfx"
	"github.com/devblok/koructx/gfx/vkr"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("Koru3D"),
	PEngineName:        safeString("Koru3D"),
}

// extensionProcs lists the entry points each instance extension brings.
var extensionProcs = map[string][]string{
	DebugReportExtension: {
		vkr.CreateDebugReportProc,
		vkr.DestroyDebugReportProc,
		"vkDebugReportMessageEXT",
	},
}

// NewVulkanInstance creates a Vulkan instance. procAddr is the loader
// entry point handed out by the window system, nil uses the default
// loader. Requested layers and extensions are checked before creation.
func NewVulkanInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (*VulkanInstance, error) {
	if cfg.DebugMode {
		cfg.Layers = appendUnique(cfg.Layers, cfg.ValidationLayers...)
		cfg.Extensions = appendUnique(cfg.Extensions, DebugReportExtension)
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	/* Layer and extension support */
	layers, err := InstanceLayers()
	if err != nil {
		return nil, err
	}
	if missing := missingNames(layers, cfg.Layers); len(missing) > 0 {
		return nil, fmt.Errorf("validation layers requested, but not available: %s", strings.Join(missing, ", "))
	}
	extensions, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	if missing := missingNames(extensions, cfg.Extensions); len(missing) > 0 {
		return nil, fmt.Errorf("instance extensions not available: %s", strings.Join(missing, ", "))
	}

	/* Create instance */
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateInstance()")
	}
	vk.InitInstance(instance)

	/* Enumerate devices */
	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "core.enumerateDevices()")
	}

	log.WithFields(log.Fields{
		"devices": len(physicalDevices),
		"layers":  cfg.Layers,
		"debug":   cfg.DebugMode,
	}).Debug("instance created")

	return &VulkanInstance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
		procs:            newInstanceProcs(cfg.Extensions),
	}, nil
}

// VulkanInstance describes a Vulkan API Instance. It implements
// vkr.Platform for the surface it was given.
type VulkanInstance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
	procs            vkr.StaticProcs

	callbacks  map[vkr.DebugCallback]vk.DebugReportCallback
	nextHandle vkr.DebugCallback
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return availableDevices, nil
}

// newInstanceProcs records the entry points of the enabled extensions.
// The loader resolves them when the instance is initialised, so a proc
// is present exactly when its extension was enabled.
func newInstanceProcs(enabled []string) vkr.StaticProcs {
	procs := vkr.StaticProcs{}
	next := vkr.Proc(1)
	for _, ext := range enabled {
		for _, name := range extensionProcs[unsafeString(ext)] {
			procs[name] = next
			next++
		}
	}
	return procs
}

// SetSurface sets the window surface for rendering
func (v *VulkanInstance) SetSurface(pSurface unsafe.Pointer) error {
	if pSurface == nil {
		return &vkr.Error{
			Phase: vkr.PhaseSurface,
			Kind:  vkr.ErrSurfaceCreation,
			Err:   errors.New("window returned a null surface"),
		}
	}
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
	return nil
}

// Surface returns the window surface, or a null surface when none is set
func (v *VulkanInstance) Surface() vk.Surface {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Instance returns internal vk.Instance
func (v *VulkanInstance) Instance() interface{} {
	return v.instance
}

// Extensions returns the enabled instance extensions
func (v *VulkanInstance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices returns handles of the physical devices
func (v *VulkanInstance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Candidates implements vkr.Platform.
func (v *VulkanInstance) Candidates() ([]vkr.DeviceCandidate, error) {
	candidates := make([]vkr.DeviceCandidate, 0, len(v.availableDevices))
	for idx, pd := range v.availableDevices {
		c, err := snapshot(pd, idx, v.Surface())
		if err != nil {
			return nil, errors.Wrapf(err, "device %d", idx)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Procs implements vkr.Platform.
func (v *VulkanInstance) Procs() vkr.ProcTable {
	return v.procs
}

// RegisterDiagnostics implements vkr.DiagnosticsRegistrar.
func (v *VulkanInstance) RegisterDiagnostics(flags vk.DebugReportFlags, deliver vkr.DeliverFunc) (vkr.DebugCallback, error) {
	info := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: flags,
		PfnCallback: debugReportCallback(deliver),
	}

	var callback vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(v.instance, &info, nil, &callback)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateDebugReportCallback()")
	}

	if v.callbacks == nil {
		v.callbacks = make(map[vkr.DebugCallback]vk.DebugReportCallback)
	}
	v.nextHandle++
	v.callbacks[v.nextHandle] = callback
	return v.nextHandle, nil
}

// debugReportCallback adapts deliver to the native callback signature.
func debugReportCallback(deliver vkr.DeliverFunc) vk.DebugReportCallbackFunc {
	return func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vk.Bool32 {
		if deliver(flags, objectType, uint64(object), layerPrefix, messageCode, message) {
			return vk.True
		}
		return vk.False
	}
}

// UnregisterDiagnostics implements vkr.DiagnosticsRegistrar.
func (v *VulkanInstance) UnregisterDiagnostics(cb vkr.DebugCallback) {
	callback, ok := v.callbacks[cb]
	if !ok {
		return
	}
	vk.DestroyDebugReportCallback(v.instance, callback, nil)
	delete(v.callbacks, cb)
}

// OpenDevice implements vkr.Platform.
func (v *VulkanInstance) OpenDevice(c vkr.DeviceCandidate, queues vkr.QueueAssignment, req vkr.Requirements) (vkr.Driver, error) {
	if c.Index < 0 || c.Index >= len(v.availableDevices) {
		return nil, fmt.Errorf("device index %d out of range", c.Index)
	}
	var layers []string
	if v.configuration.DebugMode {
		layers = v.configuration.ValidationLayers
	}
	return NewVulkanDevice(v.availableDevices[c.Index], v.Surface(), c, queues, req, layers)
}

// PhysicalDevicesInfo returns a struct for each physical device
// along with info about those devices
func (v *VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, pd := range v.availableDevices {
		layers, err := deviceLayers(pd)
		if err != nil {
			pdi[i].Invalid = true
		}
		c, err := snapshot(pd, i, v.Surface())
		if err != nil {
			pdi[i].Invalid = true
		}

		pdi[i].ID = int(c.DeviceID)
		pdi[i].VendorID = int(c.VendorID)
		pdi[i].Name = c.Name
		pdi[i].Type = vkr.DeviceTypeName(c.Type)
		pdi[i].DriverVersion = int(c.DriverVersion)
		pdi[i].Extensions = c.Extensions
		pdi[i].Layers = layers
		pdi[i].Memory = c.Memory()
		pdi[i].Features = c.Features
	}
	return pdi
}

// Destroy destroys the surface, any leftover callbacks and the instance.
// Rendering contexts must be destroyed first.
func (v *VulkanInstance) Destroy() {
	for cb := range v.callbacks {
		v.UnregisterDiagnostics(cb)
	}
	if v.surface != nil {
		vk.DestroySurface(v.instance, v.surface, nil)
		v.surface = nil
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}

// PhysicalDeviceInfo describes a physical device for reports.
type PhysicalDeviceInfo struct {
	ID            int                `json:"id"`
	VendorID      int                `json:"vendorId"`
	DriverVersion int                `json:"driverVersion"`
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	Invalid       bool               `json:"invalid,omitempty"`
	Extensions    []string           `json:"extensions"`
	Layers        []string           `json:"layers"`
	Memory        uint64             `json:"memory"`
	Features      vkr.DeviceFeatures `json:"features"`
}

// FramebufferSize adapts a drawable size query into a vkr.FramebufferSizer.
func FramebufferSize(query func() (int32, int32)) vkr.FramebufferSizer {
	return vkr.FramebufferSizeFunc(func() gfx.Extent2D {
		w, h := query()
		if w < 0 || h < 0 {
			return gfx.Extent2D{}
		}
		return gfx.Extent2D{Width: uint32(w), Height: uint32(h)}
	})
}
