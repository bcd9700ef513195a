// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package script runs Lua object behaviours. A script defines the
// globals setup(scene, object) and update(scene, object, dt), and may
// define on_cursor_pos(scene, object, x, y). Scenes and objects are
// passed to Lua as integer handles.
package script

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Shopify/go-lua"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/scene"
)

// Error is a failure to load or run a script.
type Error struct {
	Script  string
	Call    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %s: %s", e.Script, e.Call, e.Message)
}

// Script is a loaded Lua state. It implements scene.Behaviour.
// Calls are serialized, a Lua state can't be shared between goroutines.
type Script struct {
	name     string
	registry *scene.Registry

	mutex sync.Mutex
	state *lua.State
}

// Load loads and runs the script file at path.
func Load(path string, registry *scene.Registry) (*Script, error) {
	s := newScript(filepath.Base(path), registry)
	if err := lua.LoadFile(s.state, path, ""); err != nil {
		return nil, s.fail("load", err)
	}
	return s, s.run()
}

// LoadString loads and runs source, name identifies it in errors.
func LoadString(name, source string, registry *scene.Registry) (*Script, error) {
	s := newScript(name, registry)
	if err := lua.LoadBuffer(s.state, source, name, ""); err != nil {
		return nil, s.fail("load", err)
	}
	return s, s.run()
}

func newScript(name string, registry *scene.Registry) *Script {
	s := &Script{
		name:     name,
		registry: registry,
		state:    lua.NewState(),
	}
	lua.OpenLibraries(s.state)
	s.bind()
	return s
}

func (s *Script) run() error {
	if err := s.state.ProtectedCall(0, 0, 0); err != nil {
		return s.fail("run", err)
	}
	log.WithField("script", s.name).Debug("script loaded")
	return nil
}

// Name returns the name the script was loaded with.
func (s *Script) Name() string {
	return s.name
}

// Setup calls the setup function of the script.
func (s *Script) Setup(sc, object scene.Handle) error {
	return s.call("setup", true, sc, object)
}

// Update calls the update function of the script.
func (s *Script) Update(sc, object scene.Handle, delta float64) error {
	return s.call("update", true, sc, object, delta)
}

// OnCursorPos calls on_cursor_pos if the script defines it.
func (s *Script) OnCursorPos(sc, object scene.Handle, x, y float64) error {
	return s.call("on_cursor_pos", false, sc, object, x, y)
}

func (s *Script) call(function string, required bool, sc, object scene.Handle, args ...float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	defer s.state.SetTop(0)

	s.state.Global(function)
	if !s.state.IsFunction(-1) {
		if !required {
			return nil
		}
		return &Error{Script: s.name, Call: function, Message: "function not defined"}
	}

	s.state.PushInteger(int(sc))
	s.state.PushInteger(int(object))
	for _, arg := range args {
		s.state.PushNumber(arg)
	}
	if err := s.state.ProtectedCall(2+len(args), 1, 0); err != nil {
		return s.fail(function, err)
	}
	return nil
}

// fail turns the error on top of the stack into an *Error.
func (s *Script) fail(call string, err error) *Error {
	message := err.Error()
	if msg, ok := s.state.ToString(-1); ok {
		message = msg
	}
	s.state.SetTop(0)
	return &Error{Script: s.name, Call: call, Message: message}
}
