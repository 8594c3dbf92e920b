// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// FindMemoryType returns the first index whose bit is set in filter and
// whose properties contain prop. Every entry of the table is examined.
func FindMemoryType(types []MemoryType, filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := 0; idx < len(types) && idx < 32; idx++ {
		if filter&(1<<uint(idx)) != 0 && types[idx].PropertyFlags&prop == prop {
			return uint32(idx), nil
		}
	}
	return 0, newError(PhaseAttachmentBuild, ErrNoMatchingMemoryType,
		fmt.Errorf("filter %#x, properties %#x, %d types", filter, uint32(prop), len(types)))
}

// NewMemoryAllocator creates an allocator over the memory table of driver.
func NewMemoryAllocator(driver Driver) *MemoryAllocator {
	return &MemoryAllocator{
		driver: driver,
		types:  driver.MemoryTypes(),
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	driver Driver
	types  []MemoryType
}

// Malloc returns a memory block matching req with at least prop.
func (ma *MemoryAllocator) Malloc(req MemoryRequirements, prop vk.MemoryPropertyFlags) (*DeviceMemory, error) {
	typeIdx, err := FindMemoryType(ma.types, req.MemoryTypeBits, prop)
	if err != nil {
		return nil, err
	}

	memory, err := ma.driver.AllocateMemory(req.Size, typeIdx)
	if err != nil {
		return nil, err
	}
	return &DeviceMemory{
		driver: ma.driver,
		memory: memory,
		size:   req.Size,
		typ:    typeIdx,
	}, nil
}

// DeviceMemory is an owned allocation.
type DeviceMemory struct {
	driver Driver
	memory Memory
	size   uint64
	typ    uint32
}

// Get returns the memory handle.
func (m *DeviceMemory) Get() Memory {
	return m.memory
}

// Size returns the allocation size.
func (m *DeviceMemory) Size() uint64 {
	return m.size
}

// TypeIndex returns the memory type the block was taken from.
func (m *DeviceMemory) TypeIndex() uint32 {
	return m.typ
}

// Release frees the memory.
func (m *DeviceMemory) Release() {
	if m.memory == 0 {
		return
	}
	m.driver.FreeMemory(m.memory)
	m.memory = 0
}
