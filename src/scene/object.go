// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// Behaviour drives an object. Every call gets the handles of the
// scene and of the object it is attached to.
type Behaviour interface {
	Setup(scene, object Handle) error
	Update(scene, object Handle, delta float64) error
	OnCursorPos(scene, object Handle, x, y float64) error
}

// NewObject creates an object at the origin with no rotation.
func NewObject(name string, behaviour Behaviour) *Object {
	return &Object{
		Name:      name,
		Rotation:  glm.QuatIdent(),
		Behaviour: behaviour,
	}
}

// Object is a named, positioned and optionally scripted scene entry.
type Object struct {
	Name      string
	Position  glm.Vec3
	Rotation  glm.Quat
	Behaviour Behaviour
}

// Rotate rotates the object by angle radians around axis.
// A zero axis leaves the rotation unchanged.
func (o *Object) Rotate(angle float32, axis glm.Vec3) {
	if axis.Len() == 0 {
		return
	}
	o.Rotation = glm.QuatRotate(angle, axis.Normalize()).Mul(o.Rotation).Normalize()
}

// Transform returns the model matrix of the object.
func (o *Object) Transform() glm.Mat4 {
	return glm.Translate3D(o.Position.X(), o.Position.Y(), o.Position.Z()).Mul4(o.Rotation.Mat4())
}
