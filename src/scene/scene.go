// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene keeps scenes and their objects behind generation
// checked handles, so scripts can refer to them without holding pointers.
package scene

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewScene creates an empty scene.
func NewScene(name string) *Scene {
	return &Scene{name: name}
}

// Scene is a set of objects. Lookups are safe from within behaviour
// callbacks, adding and removing objects is not.
type Scene struct {
	name   string
	handle Handle

	mutex   sync.RWMutex
	objects Arena[*Object]
}

// Name returns the scene name.
func (s *Scene) Name() string {
	return s.name
}

// Handle returns the handle the scene is registered with, zero if unregistered.
func (s *Scene) Handle() Handle {
	return s.handle
}

// AddObject adds obj to the scene.
func (s *Scene) AddObject(obj *Object) Handle {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.objects.Insert(obj)
}

// RemoveObject removes the object, its handle goes stale.
func (s *Scene) RemoveObject(h Handle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.objects.Remove(h) {
		return errors.Wrapf(ErrStaleHandle, "object %s", h)
	}
	return nil
}

// Object resolves an object handle.
func (s *Scene) Object(h Handle) (*Object, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	obj, ok := s.objects.Get(h)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "object %s", h)
	}
	return obj, nil
}

// FindObject returns the handle of the first object with name.
func (s *Scene) FindObject(name string) (Handle, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, h := range s.objects.Handles() {
		if obj, _ := s.objects.Get(h); obj.Name == name {
			return h, true
		}
	}
	return 0, false
}

// Len returns the number of objects in the scene.
func (s *Scene) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.objects.Len()
}

// Setup calls Setup on the behaviour of every object.
func (s *Scene) Setup() error {
	return s.each("setup", func(b Behaviour, h Handle) error {
		return b.Setup(s.handle, h)
	})
}

// Update advances every object behaviour by delta seconds.
func (s *Scene) Update(delta float64) error {
	return s.each("update", func(b Behaviour, h Handle) error {
		return b.Update(s.handle, h, delta)
	})
}

// CursorPos forwards a cursor move to every object behaviour.
func (s *Scene) CursorPos(x, y float64) error {
	return s.each("cursor", func(b Behaviour, h Handle) error {
		return b.OnCursorPos(s.handle, h, x, y)
	})
}

// each runs fn for every scripted object, stopping at the first error.
// The lock is not held during fn, behaviours look objects up.
func (s *Scene) each(what string, fn func(Behaviour, Handle) error) error {
	s.mutex.RLock()
	handles := s.objects.Handles()
	s.mutex.RUnlock()

	for _, h := range handles {
		obj, err := s.Object(h)
		if err != nil {
			// removed by an earlier behaviour
			continue
		}
		if obj.Behaviour == nil {
			continue
		}
		if err := fn(obj.Behaviour, h); err != nil {
			log.WithFields(log.Fields{
				"scene":  s.name,
				"object": obj.Name,
			}).WithError(err).Error(what + " failed")
			return errors.Wrapf(err, "%s %s/%s", what, s.name, obj.Name)
		}
	}
	return nil
}
