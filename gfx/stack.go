// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Stack is a teardown list. Items are released in the reverse order
// they were pushed, so pushing right after each successful creation
// keeps destruction the mirror image of construction.
type Stack struct {
	items []Releasable
}

// Push adds r on top of the stack.
func (s *Stack) Push(r Releasable) {
	s.items = append(s.items, r)
}

// PushFunc adds f on top of the stack.
func (s *Stack) PushFunc(f func()) {
	s.Push(ReleaseFunc(f))
}

// Len returns the number of pending items.
func (s *Stack) Len() int {
	return len(s.items)
}

// Release releases every item, last pushed first, and empties the stack.
func (s *Stack) Release() {
	for i := len(s.items) - 1; i >= 0; i-- {
		s.items[i].Release()
		s.items[i] = nil
	}
	s.items = s.items[:0]
}

// Forget empties the stack without releasing anything. Used once a
// construction sequence succeeded and ownership moved elsewhere.
func (s *Stack) Forget() {
	s.items = s.items[:0]
}
