package world

import (
	"container/list"

	"github.com/adred-codev/irmo/schema"
)

// NewObjectFunc observes object creation.
type NewObjectFunc func(o *Object)

// DestroyFunc observes object destruction. The object is still fully
// populated at call time; storage is released only after every observer
// has run.
type DestroyFunc func(o *Object)

// ChangeFunc observes a single variable change.
type ChangeFunc func(o *Object, varOrdinal int)

// MethodFunc observes a method invocation.
type MethodFunc func(args []Value, source any)

// CallbackHandle is returned by every observer-registration call. Unset
// removes the observer in O(1) (it carries its own list and element) and
// then fires any observers registered on it via OnUnset, letting a parent
// handle cascade teardown to handles it owns.
type CallbackHandle struct {
	list       *list.List
	elem       *list.Element
	onUnset    []func()
}

// Unset removes the observer. Unsetting an already-unset handle returns
// ErrAlreadyUnset.
func (h *CallbackHandle) Unset() error {
	if h.elem == nil {
		return ErrAlreadyUnset
	}
	h.list.Remove(h.elem)
	h.elem = nil
	observers := h.onUnset
	h.onUnset = nil
	for _, fn := range observers {
		fn()
	}
	return nil
}

// OnUnset registers fn to run when this handle is unset. Used to build
// owning handles whose teardown cascades to handles they hold.
func (h *CallbackHandle) OnUnset(fn func()) {
	h.onUnset = append(h.onUnset, fn)
}

func newHandle(l *list.List, value any) *CallbackHandle {
	h := &CallbackHandle{list: l}
	h.elem = l.PushBack(value)
	return h
}

// classCallbacks is the per-class observer table. parent mirrors the
// class's inheritance chain so dispatch can walk it without touching the
// schema again.
type classCallbacks struct {
	class       *schema.Class
	parent      *classCallbacks
	onNew       *list.List
	onDestroy   *list.List
	onAnyChange *list.List
	onVariable  []*list.List // sized len(class.Variables)
}

func newClassCallbacks(c *schema.Class, parent *classCallbacks) *classCallbacks {
	cc := &classCallbacks{
		class:       c,
		parent:      parent,
		onNew:       list.New(),
		onDestroy:   list.New(),
		onAnyChange: list.New(),
	}
	if c != nil {
		cc.onVariable = make([]*list.List, len(c.Variables))
		for i := range cc.onVariable {
			cc.onVariable[i] = list.New()
		}
	}
	return cc
}

// objectCallbacks is the per-instance observer table.
type objectCallbacks struct {
	onDestroy   *list.List
	onAnyChange *list.List
	onVariable  []*list.List
}

func newObjectCallbacks(c *schema.Class) *objectCallbacks {
	oc := &objectCallbacks{
		onDestroy:   list.New(),
		onAnyChange: list.New(),
		onVariable:  make([]*list.List, len(c.Variables)),
	}
	for i := range oc.onVariable {
		oc.onVariable[i] = list.New()
	}
	return oc
}

func raiseNew(o *Object) {
	for cc := o.world.classTable(o.class); cc != nil; cc = cc.parent {
		fireNewObject(cc.onNew, o)
	}
	fireNewObject(o.world.root.onNew, o)
}

func raiseDestroy(o *Object) {
	fireDestroy(o.cb.onDestroy, o)
	for cc := o.world.classTable(o.class); cc != nil; cc = cc.parent {
		fireDestroy(cc.onDestroy, o)
	}
	fireDestroy(o.world.root.onDestroy, o)
}

// raiseChange implements the dispatch order from spec.md §4.2 step-by-step:
// per-object, then up the class chain (an ancestor that lacks the ordinal
// skips only its per-variable observers; its any-variable observers still
// fire), then the global root.
func raiseChange(o *Object, varOrdinal int) {
	if varOrdinal < len(o.cb.onVariable) {
		fireChange(o.cb.onVariable[varOrdinal], o, varOrdinal)
	}
	fireChange(o.cb.onAnyChange, o, varOrdinal)

	for cc := o.world.classTable(o.class); cc != nil; cc = cc.parent {
		if varOrdinal < len(cc.onVariable) {
			fireChange(cc.onVariable[varOrdinal], o, varOrdinal)
		}
		fireChange(cc.onAnyChange, o, varOrdinal)
	}

	fireChange(o.world.root.onAnyChange, o, varOrdinal)
}

func raiseMethod(tbl *list.List, args []Value, source any) {
	for e := tbl.Front(); e != nil; e = e.Next() {
		e.Value.(MethodFunc)(args, source)
	}
}

// fire* snapshot the list front-to-back before invoking, so an observer
// that unsets another observer mid-dispatch cannot invalidate the
// iterator (spec.md §5: "iterate over snapshots ... for observer lists
// that may mutate mid-dispatch").
func fireNewObject(l *list.List, o *Object) {
	for _, fn := range snapshotNewObject(l) {
		fn(o)
	}
}

func fireDestroy(l *list.List, o *Object) {
	for _, fn := range snapshotDestroy(l) {
		fn(o)
	}
}

func fireChange(l *list.List, o *Object, v int) {
	for _, fn := range snapshotChange(l) {
		fn(o, v)
	}
}

func snapshotNewObject(l *list.List) []NewObjectFunc {
	out := make([]NewObjectFunc, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(NewObjectFunc))
	}
	return out
}

func snapshotDestroy(l *list.List) []DestroyFunc {
	out := make([]DestroyFunc, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(DestroyFunc))
	}
	return out
}

func snapshotChange(l *list.List) []ChangeFunc {
	out := make([]ChangeFunc, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(ChangeFunc))
	}
	return out
}
