// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"sync"

	"github.com/pkg/errors"
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Registry resolves scene handles, and object handles within them.
type Registry struct {
	mutex  sync.RWMutex
	scenes Arena[*Scene]
}

// Add registers the scene and returns its handle.
func (r *Registry) Add(s *Scene) Handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s.handle = r.scenes.Insert(s)
	return s.handle
}

// Remove unregisters the scene, its handle goes stale.
func (r *Registry) Remove(h Handle) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s, ok := r.scenes.Get(h)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "scene %s", h)
	}
	r.scenes.Remove(h)
	s.handle = 0
	return nil
}

// Scene resolves a scene handle.
func (r *Registry) Scene(h Handle) (*Scene, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.scenes.Get(h)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "scene %s", h)
	}
	return s, nil
}

// Object resolves an object handle within a scene.
func (r *Registry) Object(scene, object Handle) (*Object, error) {
	s, err := r.Scene(scene)
	if err != nil {
		return nil, err
	}
	return s.Object(object)
}
