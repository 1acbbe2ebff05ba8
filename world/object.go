package world

import (
	"github.com/adred-codev/irmo/schema"
	"github.com/adred-codev/irmo/wire"
)

// Value is a decoded scalar, shared with the wire package so callers never
// need to import wire directly just to read a variable.
type Value = wire.Value

// Object is one instance in a World: an id, a class, and the class's full
// (inherited + own) variable vector.
type Object struct {
	id    uint16
	class *schema.Class
	world *World

	values []Value

	// variableTime holds, for a replicated object only, the sequence
	// number of the last applied change per variable ordinal. It guards
	// out-of-order change application (spec.md §4.5 step 6).
	variableTime []uint32

	cb *objectCallbacks
}

// ID returns the object's id, unique within its world.
func (o *Object) ID() uint16 { return o.id }

// Class returns the object's class.
func (o *Object) Class() *schema.Class { return o.class }

// IsA reports whether the object's class equals or descends from other.
func (o *Object) IsA(other *schema.Class) bool {
	return o.class.IsA(other)
}

// RawValue returns the already-decoded value currently stored for the
// variable at ordinal, with no name lookup or type check. Used by the
// protocol engine when building change atoms, where the variable ordinal
// is already known from the dirty bitmap.
func (o *Object) RawValue(ordinal int) Value {
	return o.values[ordinal]
}

func zeroValue(t schema.ValueType) Value {
	switch t {
	case schema.TypeString:
		return Value{Type: t, String: ""}
	default:
		return Value{Type: t}
	}
}

func newObject(w *World, id uint16, class *schema.Class) *Object {
	values := make([]Value, len(class.Variables))
	for i, v := range class.Variables {
		values[i] = zeroValue(v.Type)
	}
	o := &Object{
		id:     id,
		class:  class,
		world:  w,
		values: values,
		cb:     newObjectCallbacks(class),
	}
	if !w.authoritative {
		o.variableTime = make([]uint32, len(class.Variables))
	}
	return o
}

// GetInt reads a u8/u16/u32 variable by name, returned widened to uint32.
func (o *Object) GetInt(name string) (uint32, error) {
	v, err := o.variable(name)
	if err != nil {
		return 0, err
	}
	switch v.Type {
	case schema.TypeU8:
		return uint32(v.U8), nil
	case schema.TypeU16:
		return uint32(v.U16), nil
	case schema.TypeU32:
		return v.U32, nil
	default:
		return 0, ErrTypeMismatch
	}
}

// GetString reads a string variable by name.
func (o *Object) GetString(name string) (string, error) {
	v, err := o.variable(name)
	if err != nil {
		return "", err
	}
	if v.Type != schema.TypeString {
		return "", ErrTypeMismatch
	}
	return v.String, nil
}

func (o *Object) variable(name string) (Value, error) {
	v, ok := o.class.Variable(name)
	if !ok {
		return Value{}, ErrUnknownVariable
	}
	return o.values[v.Ordinal], nil
}

// SetInt writes a u8/u16/u32 variable by name. Only permitted on an
// authoritative world; fails if value exceeds the variable's type width.
func (o *Object) SetInt(name string, value uint32) error {
	if !o.world.authoritative {
		return ErrReadOnlyWorld
	}
	v, ok := o.class.Variable(name)
	if !ok {
		return ErrUnknownVariable
	}
	switch v.Type {
	case schema.TypeU8:
		if value > 0xff {
			return ErrValueOutOfRange
		}
		o.values[v.Ordinal] = Value{Type: schema.TypeU8, U8: uint8(value)}
	case schema.TypeU16:
		if value > 0xffff {
			return ErrValueOutOfRange
		}
		o.values[v.Ordinal] = Value{Type: schema.TypeU16, U16: uint16(value)}
	case schema.TypeU32:
		o.values[v.Ordinal] = Value{Type: schema.TypeU32, U32: value}
	default:
		return ErrTypeMismatch
	}
	o.world.raiseChangeAndNotify(o, v.Ordinal)
	return nil
}

// SetString writes a string variable by name. Only permitted on an
// authoritative world.
func (o *Object) SetString(name, value string) error {
	if !o.world.authoritative {
		return ErrReadOnlyWorld
	}
	v, ok := o.class.Variable(name)
	if !ok {
		return ErrUnknownVariable
	}
	if v.Type != schema.TypeString {
		return ErrTypeMismatch
	}
	o.values[v.Ordinal] = Value{Type: schema.TypeString, String: value}
	o.world.raiseChangeAndNotify(o, v.Ordinal)
	return nil
}

// OnDestroy registers fn to fire when the object is destroyed.
func (o *Object) OnDestroy(fn DestroyFunc) *CallbackHandle {
	return newHandle(o.cb.onDestroy, fn)
}

// OnChange registers fn for changes to the named variable, or to any
// variable if name is empty.
func (o *Object) OnChange(name string, fn ChangeFunc) (*CallbackHandle, error) {
	if name == "" {
		return newHandle(o.cb.onAnyChange, fn), nil
	}
	v, ok := o.class.Variable(name)
	if !ok {
		return nil, ErrUnknownVariable
	}
	return newHandle(o.cb.onVariable[v.Ordinal], fn), nil
}
