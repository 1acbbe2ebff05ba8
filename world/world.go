// Package world implements the replicated object store (spec.md §4.1) and
// its callback graph (§4.2): a World holds a set of schema-typed Objects,
// notifies registered observers of every new-object, destroy and
// per-variable change, and — when authoritative — forwards the same
// events to every attached peer so they can be published on the wire.
package world

import (
	"container/list"
	"sort"

	"github.com/adred-codev/irmo/atom"
	"github.com/adred-codev/irmo/schema"
)

// PeerSink receives object-space events from an authoritative World so it
// can enqueue the corresponding atom on its peer's send queue. Implemented
// by netproto.Peer; World depends only on this narrow interface to avoid
// importing netproto.
type PeerSink interface {
	EnqueueNewObject(classOrdinal int, id uint16)
	EnqueueChange(classOrdinal int, id uint16, varOrdinal int)
	EnqueueDestroy(id uint16)
}

// World is a replicated object space bound to one schema. An authoritative
// World is locally mutable and publishes every change to its attached
// peers; a replicated World mirrors a remote authoritative World and is
// mutated only by applying inbound atoms.
type World struct {
	spec          *schema.Spec
	authoritative bool

	objects map[uint16]*Object
	ids     []uint16 // kept sorted for deterministic iteration
	lastID  uint16

	root        *classCallbacks
	classTables map[*schema.Class]*classCallbacks
	methodObs   []*list.List

	peers []PeerSink
}

// New creates a World over spec. authoritative selects whether the world
// is locally mutable (true) or a read-only mirror fed by atom application
// (false).
func New(spec *schema.Spec, authoritative bool) *World {
	w := &World{
		spec:          spec,
		authoritative: authoritative,
		objects:       make(map[uint16]*Object),
		classTables:   make(map[*schema.Class]*classCallbacks),
	}
	w.root = newClassCallbacks(nil, nil)
	for _, c := range spec.Classes {
		w.classTable(c) // builds and memoizes, parent chain included
	}
	w.methodObs = make([]*list.List, len(spec.Methods))
	for i := range w.methodObs {
		w.methodObs[i] = list.New()
	}
	return w
}

// Spec returns the schema this world was built from.
func (w *World) Spec() *schema.Spec { return w.spec }

// Authoritative reports whether this world accepts local mutation.
func (w *World) Authoritative() bool { return w.authoritative }

func (w *World) classTable(c *schema.Class) *classCallbacks {
	if c == nil {
		return nil
	}
	if cc, ok := w.classTables[c]; ok {
		return cc
	}
	cc := newClassCallbacks(c, w.classTable(c.Parent))
	w.classTables[c] = cc
	return cc
}

// AttachPeer registers p to receive future object-space events. Used when
// a peer enters Connected state.
func (w *World) AttachPeer(p PeerSink) {
	w.peers = append(w.peers, p)
}

// DetachPeer removes p. Used when a peer leaves Connected state.
func (w *World) DetachPeer(p PeerSink) {
	for i, peer := range w.peers {
		if peer == p {
			w.peers = append(w.peers[:i], w.peers[i+1:]...)
			return
		}
	}
}

// Object looks up an object by id.
func (w *World) Object(id uint16) (*Object, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// ForEachObject visits every object whose class equals className or
// descends from it, in ascending id order. className == "" visits every
// object regardless of class. Stops early if visitor returns false.
func (w *World) ForEachObject(className string, visitor func(*Object) bool) error {
	var filter *schema.Class
	if className != "" {
		c, ok := w.spec.Class(className)
		if !ok {
			return ErrUnknownClass
		}
		filter = c
	}
	for _, id := range w.ids {
		o := w.objects[id]
		if filter != nil && !o.IsA(filter) {
			continue
		}
		if !visitor(o) {
			return nil
		}
	}
	return nil
}

func (w *World) insertID(id uint16) {
	i := sort.Search(len(w.ids), func(i int) bool { return w.ids[i] >= id })
	w.ids = append(w.ids, 0)
	copy(w.ids[i+1:], w.ids[i:])
	w.ids[i] = id
}

func (w *World) removeID(id uint16) {
	i := sort.Search(len(w.ids), func(i int) bool { return w.ids[i] >= id })
	if i < len(w.ids) && w.ids[i] == id {
		w.ids = append(w.ids[:i], w.ids[i+1:]...)
	}
}

func (w *World) freeID() (uint16, error) {
	start := w.lastID + 1
	id := start
	for {
		if _, occupied := w.objects[id]; !occupied {
			return id, nil
		}
		id++
		if id == start {
			return 0, ErrWorldFull
		}
	}
}

// NewObject allocates and publishes a new object of the given class. Only
// valid on an authoritative world; replicated worlds receive objects via
// ApplyNewObject.
func (w *World) NewObject(className string) (*Object, error) {
	if !w.authoritative {
		return nil, ErrReadOnlyWorld
	}
	class, ok := w.spec.Class(className)
	if !ok {
		return nil, ErrUnknownClass
	}
	if len(w.objects) >= MaxObjects {
		return nil, ErrWorldFull
	}
	id, err := w.freeID()
	if err != nil {
		return nil, err
	}
	o := w.insertNewObject(id, class)
	w.lastID = id
	return o, nil
}

func (w *World) insertNewObject(id uint16, class *schema.Class) *Object {
	o := newObject(w, id, class)
	w.objects[id] = o
	w.insertID(id)
	raiseNew(o)
	for _, p := range w.peers {
		p.EnqueueNewObject(class.Ordinal, id)
	}
	return o
}

// Destroy removes an object from an authoritative world, raising destroy
// callbacks and notifying attached peers first. Replicated worlds receive
// destruction via ApplyDestroy.
func (w *World) Destroy(o *Object) error {
	if !w.authoritative {
		return ErrReadOnlyWorld
	}
	return w.destroy(o)
}

func (w *World) destroy(o *Object) error {
	if _, ok := w.objects[o.id]; !ok {
		return ErrUnknownObject
	}
	raiseDestroy(o)
	for _, p := range w.peers {
		p.EnqueueDestroy(o.id)
	}
	delete(w.objects, o.id)
	w.removeID(o.id)
	return nil
}

func (w *World) raiseChangeAndNotify(o *Object, varOrdinal int) {
	raiseChange(o, varOrdinal)
	for _, p := range w.peers {
		p.EnqueueChange(o.class.Ordinal, o.id, varOrdinal)
	}
}

// --- observer registration ---

// OnClassNew registers fn for new-object events on className and its
// subclasses.
func (w *World) OnClassNew(className string, fn NewObjectFunc) (*CallbackHandle, error) {
	c, ok := w.spec.Class(className)
	if !ok {
		return nil, ErrUnknownClass
	}
	return newHandle(w.classTable(c).onNew, fn), nil
}

// OnAnyNew registers fn for new-object events on any class.
func (w *World) OnAnyNew(fn NewObjectFunc) *CallbackHandle {
	return newHandle(w.root.onNew, fn)
}

// OnClassDestroy registers fn for destroy events on className and its
// subclasses.
func (w *World) OnClassDestroy(className string, fn DestroyFunc) (*CallbackHandle, error) {
	c, ok := w.spec.Class(className)
	if !ok {
		return nil, ErrUnknownClass
	}
	return newHandle(w.classTable(c).onDestroy, fn), nil
}

// OnAnyDestroy registers fn for destroy events on any class.
func (w *World) OnAnyDestroy(fn DestroyFunc) *CallbackHandle {
	return newHandle(w.root.onDestroy, fn)
}

// OnClassChange registers fn for changes to the named variable (or any
// variable, if varName is empty) on className and its subclasses.
func (w *World) OnClassChange(className, varName string, fn ChangeFunc) (*CallbackHandle, error) {
	c, ok := w.spec.Class(className)
	if !ok {
		return nil, ErrUnknownClass
	}
	cc := w.classTable(c)
	if varName == "" {
		return newHandle(cc.onAnyChange, fn), nil
	}
	v, ok := c.Variable(varName)
	if !ok {
		return nil, ErrUnknownVariable
	}
	return newHandle(cc.onVariable[v.Ordinal], fn), nil
}

// OnAnyChange registers fn for changes to any variable on any class.
func (w *World) OnAnyChange(fn ChangeFunc) *CallbackHandle {
	return newHandle(w.root.onAnyChange, fn)
}

// OnMethod registers fn to fire whenever methodName is invoked.
func (w *World) OnMethod(methodName string, fn MethodFunc) (*CallbackHandle, error) {
	m, ok := w.spec.Method(methodName)
	if !ok {
		return nil, ErrUnknownMethod
	}
	return newHandle(w.methodObs[m.Ordinal], fn), nil
}

// --- atom.Target surface (minus window-advertisement, which belongs to
// the peer, not the world; netproto.Peer composes the two) ---

// ApplyNewObject implements the inbound half of atom.Target for a
// replicated world.
func (w *World) ApplyNewObject(classOrdinal int, id uint16) error {
	class, ok := w.spec.ClassByOrdinal(classOrdinal)
	if !ok {
		return ErrUnknownClass
	}
	if _, occupied := w.objects[id]; occupied {
		return ErrDuplicateID
	}
	w.insertNewObject(id, class)
	return nil
}

// ApplyDestroy implements the inbound half of atom.Target for a
// replicated world.
func (w *World) ApplyDestroy(id uint16) error {
	o, ok := w.objects[id]
	if !ok {
		return ErrUnknownObject
	}
	return w.destroy(o)
}

// ApplyChange implements the inbound half of atom.Target. A missing
// object or a class mismatch returns ErrNotReady and applies nothing, so
// the atom is left for a later retry.
func (w *World) ApplyChange(c *atom.ChangeAtom) error {
	o, ok := w.objects[c.ID]
	if !ok || o.class.Ordinal != int(c.ClassOrdinal) {
		return ErrNotReady
	}
	for _, cv := range c.Values {
		if cv.VarOrdinal >= len(o.variableTime) {
			continue
		}
		if c.Seq <= o.variableTime[cv.VarOrdinal] {
			continue
		}
		o.values[cv.VarOrdinal] = cv.Value
		o.variableTime[cv.VarOrdinal] = c.Seq
		w.raiseChangeAndNotify(o, cv.VarOrdinal)
	}
	return nil
}

// ApplyMethod implements the inbound half of atom.Target.
func (w *World) ApplyMethod(m *atom.MethodAtom, source any) error {
	method, ok := w.spec.MethodByOrdinal(int(m.MethodOrdinal))
	if !ok {
		return ErrUnknownMethod
	}
	args := make([]Value, len(m.Args))
	copy(args, m.Args)
	raiseMethod(w.methodObs[method.Ordinal], args, source)
	return nil
}
