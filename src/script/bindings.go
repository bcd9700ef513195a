// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package script

import (
	"github.com/Shopify/go-lua"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/scene"
)

func (s *Script) bind() {
	for name, fn := range map[string]lua.Function{
		"object_name":         s.objectName,
		"object_get_position": s.objectGetPosition,
		"object_set_position": s.objectSetPosition,
		"object_rotate":       s.objectRotate,
		"scene_find_object":   s.sceneFindObject,
		"log_info":            s.logInfo,
	} {
		s.state.Register(name, fn)
	}
}

func checkHandle(l *lua.State, index int) scene.Handle {
	return scene.Handle(lua.CheckInteger(l, index))
}

func checkVec3(l *lua.State, index int) glm.Vec3 {
	return glm.Vec3{
		float32(lua.CheckNumber(l, index)),
		float32(lua.CheckNumber(l, index+1)),
		float32(lua.CheckNumber(l, index+2)),
	}
}

// object resolves the (scene, object) handle pair at the bottom of the stack.
func (s *Script) object(l *lua.State) *scene.Object {
	obj, err := s.registry.Object(checkHandle(l, 1), checkHandle(l, 2))
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return obj
}

func (s *Script) objectName(l *lua.State) int {
	l.PushString(s.object(l).Name)
	return 1
}

func (s *Script) objectGetPosition(l *lua.State) int {
	position := s.object(l).Position
	l.PushNumber(float64(position.X()))
	l.PushNumber(float64(position.Y()))
	l.PushNumber(float64(position.Z()))
	return 3
}

func (s *Script) objectSetPosition(l *lua.State) int {
	obj := s.object(l)
	obj.Position = checkVec3(l, 3)
	return 0
}

func (s *Script) objectRotate(l *lua.State) int {
	obj := s.object(l)
	angle := float32(lua.CheckNumber(l, 3))
	obj.Rotate(angle, checkVec3(l, 4))
	return 0
}

func (s *Script) sceneFindObject(l *lua.State) int {
	sc, err := s.registry.Scene(checkHandle(l, 1))
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	h, ok := sc.FindObject(lua.CheckString(l, 2))
	if !ok {
		l.PushNil()
		return 1
	}
	l.PushInteger(int(h))
	return 1
}

func (s *Script) logInfo(l *lua.State) int {
	log.WithField("script", s.name).Info(lua.CheckString(l, 1))
	return 0
}
