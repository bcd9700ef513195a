// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrStaleHandle is returned when a handle refers to a removed
// or never existing entry.
var ErrStaleHandle = errors.New("stale or invalid handle")

// Handle is an opaque reference to an arena entry. It carries the
// generation of the slot, so a handle to a removed entry never
// resolves to whatever reuses the slot. The zero Handle is invalid.
type Handle int64

func makeHandle(index, generation uint32) Handle {
	return Handle(int64(generation)<<32 | int64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index(), h.generation())
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena stores values addressed by generation checked handles.
// It's not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores value and returns its handle.
func (a *Arena[T]) Insert(value T) Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = value
	s.live = true
	a.count++
	return makeHandle(index, s.generation)
}

// Get returns the value behind h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	s, ok := a.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Remove drops the value behind h, the handle goes stale.
func (a *Arena[T]) Remove(h Handle) bool {
	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.index())
	a.count--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.count
}

// Handles returns handles of all live values in slot order.
func (a *Arena[T]) Handles() []Handle {
	handles := make([]Handle, 0, a.count)
	for idx := range a.slots {
		if a.slots[idx].live {
			handles = append(handles, makeHandle(uint32(idx), a.slots[idx].generation))
		}
	}
	return handles
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], bool) {
	index := h.index()
	if h.generation() == 0 || int(index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[index]
	if !s.live || s.generation != h.generation() {
		return nil, false
	}
	return s, true
}
