// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strings"

	vk "github.com/devblok/vulkan"
)

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

// unsafeString drops the terminator added by safeString.
func unsafeString(s string) string {
	return strings.TrimSuffix(s, "\x00")
}

// appendUnique appends the names not yet present in list.
func appendUnique(list []string, names ...string) []string {
	for _, name := range names {
		found := false
		for _, have := range list {
			if unsafeString(have) == unsafeString(name) {
				found = true
				break
			}
		}
		if !found {
			list = append(list, name)
		}
	}
	return list
}

// missingNames returns the entries of required not found in available.
func missingNames(available, required []string) []string {
	var missing []string
	for _, name := range required {
		found := false
		for _, have := range available {
			if unsafeString(have) == unsafeString(name) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, unsafeString(name))
		}
	}
	return missing
}

func extensionNames(props []vk.ExtensionProperties) []string {
	names := make([]string, 0, len(props))
	for _, ext := range props {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names
}

func layerNames(props []vk.LayerProperties) []string {
	names := make([]string, 0, len(props))
	for _, layer := range props {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names
}

// InstanceLayers lists the layers the loader offers.
func InstanceLayers() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceLayerProperties(): %s", err)
	}
	props := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceLayerProperties(): %s", err)
	}
	return layerNames(props[:count]), nil
}

// InstanceExtensions lists the instance extensions the loader offers.
func InstanceExtensions() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceExtensionProperties(): %s", err)
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceExtensionProperties(): %s", err)
	}
	return extensionNames(props[:count]), nil
}
