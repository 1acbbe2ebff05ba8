package netproto

import "github.com/adred-codev/irmo/atom"

// sendQueue is the FIFO of atoms waiting to enter the send window. It
// owns the "queued change atom per object id" index used by the
// coalescing algorithm (spec.md §4.3 step 2): while a change atom for an
// object sits in the queue (not yet windowed), further changes to that
// object fold into the same atom instead of allocating a new one.
type sendQueue struct {
	items       []atom.Atom
	changeIndex map[uint16]*atom.ChangeAtom
}

func newSendQueue() *sendQueue {
	return &sendQueue{changeIndex: make(map[uint16]*atom.ChangeAtom)}
}

// Len is the number of atoms currently queued, including nulls not yet
// skipped. Exposed for the irmo_sendqueue_depth metric.
func (q *sendQueue) Len() int { return len(q.items) }

func (q *sendQueue) push(a atom.Atom) {
	q.items = append(q.items, a)
}

// pop removes and returns the next non-null atom, transparently skipping
// (and discarding) null placeholders. Returns nil if the queue is empty
// or holds only nulls.
func (q *sendQueue) pop() atom.Atom {
	for len(q.items) > 0 {
		a := q.items[0]
		q.items = q.items[1:]
		if ca, ok := a.(*atom.ChangeAtom); ok {
			if q.changeIndex[ca.ID] == ca {
				delete(q.changeIndex, ca.ID)
			}
		}
		if _, isNull := a.(*atom.NullAtom); isNull {
			continue
		}
		return a
	}
	return nil
}

func (q *sendQueue) peekEmpty() bool { return len(q.items) == 0 }

// enqueueNew appends a new-object atom.
func (q *sendQueue) enqueueNew(a *atom.NewObjectAtom) {
	q.push(a)
}

// enqueueChangeQueued implements §4.3 step 2: find or allocate the
// queued change atom for objID and set varOrdinal in its bitmap.
func (q *sendQueue) enqueueChangeQueued(classOrdinal uint8, objID uint16, varOrdinal, nvars int, value atom.ChangeValue) {
	if ca, ok := q.changeIndex[objID]; ok {
		ca.SetVar(varOrdinal, nvars)
		replaceOrAppendValue(ca, value)
		return
	}
	ca := &atom.ChangeAtom{ClassOrdinal: classOrdinal, ID: objID}
	ca.SetVar(varOrdinal, nvars)
	ca.Values = []atom.ChangeValue{value}
	q.push(ca)
	q.changeIndex[objID] = ca
}

func replaceOrAppendValue(ca *atom.ChangeAtom, value atom.ChangeValue) {
	for i, v := range ca.Values {
		if v.VarOrdinal == value.VarOrdinal {
			ca.Values[i] = value
			return
		}
	}
	ca.Values = append(ca.Values, value)
}

// enqueueDestroy implements §4.3's destroy rule: remove any queued change
// atom for id (the caller is responsible for neutralising any windowed
// one), then append a destroy atom.
func (q *sendQueue) enqueueDestroy(id uint16) {
	if ca, ok := q.changeIndex[id]; ok {
		delete(q.changeIndex, id)
		for i, it := range q.items {
			if it == atom.Atom(ca) {
				q.items[i] = &atom.NullAtom{}
				break
			}
		}
	}
	q.push(&atom.DestroyAtom{ID: id})
}
