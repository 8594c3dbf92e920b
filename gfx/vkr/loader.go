// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Proc is the address of a runtime resolved entry point. Zero is absent.
type Proc uintptr

// ProcTable resolves entry points by name.
type ProcTable interface {
	Lookup(name string) (Proc, bool)
}

// StaticProcs is a ProcTable over a fixed set of entry points.
type StaticProcs map[string]Proc

// Lookup implements ProcTable.
func (s StaticProcs) Lookup(name string) (Proc, bool) {
	p, ok := s[name]
	return p, ok && p != 0
}

// Loader resolves optional extension entry points. Absence is a normal
// outcome that callers must branch on.
type Loader struct {
	table ProcTable

	mutex sync.Mutex
	cache map[string]Proc
}

// NewLoader creates a loader over table. A nil table resolves nothing.
func NewLoader(table ProcTable) *Loader {
	return &Loader{
		table: table,
		cache: make(map[string]Proc),
	}
}

// Resolve returns the entry point for name and whether it is present.
func (l *Loader) Resolve(name string) (Proc, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if p, ok := l.cache[name]; ok {
		return p, p != 0
	}

	var p Proc
	if l.table != nil {
		if found, ok := l.table.Lookup(name); ok {
			p = found
		}
	}
	l.cache[name] = p
	if p == 0 {
		log.WithField("proc", name).Debug("entry point not present")
	}
	return p, p != 0
}
