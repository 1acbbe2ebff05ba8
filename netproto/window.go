package netproto

import (
	"time"

	"github.com/adred-codev/irmo/atom"
)

// sendWindowEntry is one atom that has left the queue and entered the
// send window: it now has a sequence number and, once sent at least once,
// a send time used for retransmit timing and RTT sampling.
type sendWindowEntry struct {
	Atom     atom.Atom
	Seq      uint32
	SendTime time.Time // zero value means "never sent"
	Resent   bool
}

// sendWindow is the contiguous, sequence-numbered run of atoms placed on
// the wire but not yet acknowledged.
type sendWindow struct {
	base    uint32
	entries []sendWindowEntry
}

func (w *sendWindow) len() int { return len(w.entries) }

func (w *sendWindow) totalBytes() int {
	n := 0
	for _, e := range w.entries {
		n += e.Atom.WireLen()
	}
	return n
}

// push appends a onto the window with the next sequence number.
func (w *sendWindow) push(a atom.Atom) {
	seq := w.base + uint32(len(w.entries))
	w.entries = append(w.entries, sendWindowEntry{Atom: a, Seq: seq})
}

// advance drops the first n entries and slides base forward, used after a
// cumulative ack confirms them.
func (w *sendWindow) advance(n int) {
	w.entries = w.entries[n:]
	w.base += uint32(n)
}

// findChangeForObject searches the window for a non-null change atom
// targeting id that carries variable varOrdinal, used by the coalescing
// rule in spec.md §4.3 step 1.
func (w *sendWindow) findChangeForObject(id uint16, varOrdinal int) *atom.ChangeAtom {
	for _, e := range w.entries {
		if ca, ok := e.Atom.(*atom.ChangeAtom); ok && ca.ID == id && ca.HasVar(varOrdinal) {
			return ca
		}
	}
	return nil
}

// neutralizeIndex replaces the atom at window index i with a null
// placeholder, preserving its sequence number.
func (w *sendWindow) neutralizeIndex(i int) {
	w.entries[i].Atom = &atom.NullAtom{}
}

// neutralizeChangeAtomPtr replaces the window entry holding ca with a
// null placeholder, preserving its sequence number.
func (w *sendWindow) neutralizeChangeAtomPtr(ca *atom.ChangeAtom) {
	for i, e := range w.entries {
		if e.Atom == atom.Atom(ca) {
			w.neutralizeIndex(i)
			return
		}
	}
}

// neutralizeObject replaces every change or destroy atom targeting id
// with a null placeholder. Used when a destroy supersedes earlier
// windowed mutations for the same object.
func (w *sendWindow) neutralizeObject(id uint16) {
	for i, e := range w.entries {
		switch a := e.Atom.(type) {
		case *atom.ChangeAtom:
			if a.ID == id {
				w.neutralizeIndex(i)
			}
		case *atom.DestroyAtom:
			if a.ID == id {
				w.neutralizeIndex(i)
			}
		}
	}
}

// recvWindowEntry is one slot in the receive window: either empty (not
// yet received) or holding a decoded atom awaiting application.
type recvWindowEntry struct {
	Atom    atom.Atom
	Present bool
	Applied bool
}

// recvWindow is the contiguous region of the inbound stream received but
// not yet applied.
type recvWindow struct {
	base    uint32
	entries []recvWindowEntry
}

// insert places a at stream position seq, growing the window as needed.
// A retransmission lands on an already-filled slot and simply replaces
// it (the source is assumed fresher).
func (w *recvWindow) insert(seq uint32, a atom.Atom) int {
	idx := int(seq - w.base)
	for idx >= len(w.entries) {
		w.entries = append(w.entries, recvWindowEntry{})
	}
	w.entries[idx] = recvWindowEntry{Atom: a, Present: true}
	return idx
}

// applyPrefix applies atoms from index 0 while present, sliding the
// window forward after each success. Stops (without erroring) at the
// first atom that reports world.ErrNotReady, per spec.md §4.5 step 5.
func (w *recvWindow) applyPrefix(t atom.Target, notReady func(error) bool) {
	for len(w.entries) > 0 && w.entries[0].Present {
		err := w.entries[0].Atom.Apply(t)
		if err != nil && notReady(err) {
			return
		}
		w.entries = w.entries[1:]
		w.base++
	}
}

// preExecuteChanges implements spec.md §4.5 step 6: scan the
// newly-installed region [from, to) for change atoms not yet applied and
// apply those whose target object already exists, regardless of gaps
// ahead of them. target.ApplyChange itself enforces the variable_time
// guard.
func (w *recvWindow) preExecuteChanges(from, to int, t atom.Target) {
	if to > len(w.entries) {
		to = len(w.entries)
	}
	for i := from; i < to; i++ {
		e := &w.entries[i]
		if !e.Present || e.Applied {
			continue
		}
		ca, ok := e.Atom.(*atom.ChangeAtom)
		if !ok {
			continue
		}
		if err := ca.Apply(t); err == nil {
			e.Applied = true
		}
	}
}
