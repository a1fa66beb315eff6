// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Camcore Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package syncobj

import (
	"fmt"
	"sync"

	"github.com/camcore/syncd/logger"
	"github.com/camcore/syncd/randutil"
)

// maxNameLen matches the historical limit of the camera sync ABI.
const maxNameLen = 63

// row is one slot of the object table. Rows are owned by the table arena
// and never escape it; clients only ever hold handles.
type row struct {
	idx  int
	gen  uint16
	name string

	merged     bool
	status     Status
	eventParam uint32

	// children is the member list of a merged row; parents lists the
	// merged rows this row is a member of. Both hold handles, not
	// pointers, so the graph has no pointer cycles.
	children []Handle
	parents  []Handle

	// cbs are pending registrations in registration order. A callback
	// handed to the dispatcher is removed from here and cannot be
	// deregistered anymore.
	cbs []*callbackRec

	// refs counts dispatch jobs still referencing this slot. A destroyed
	// slot with refs > 0 is doomed: it stays allocated, invisible to
	// lookups, until the last job completes.
	refs   int
	doomed bool

	mon      []MonitorEntry
	monStart int
	monLen   int
}

// Table is a fixed-capacity table of sync objects with a free-slot bitmap.
//
// A single coarse mutex protects the table metadata and the dependency
// graph. Critical sections are short and never include a callback
// invocation; callback dispatch happens on the table's worker pool.
type Table struct {
	mu sync.Mutex

	cfg    Config
	rows   []row
	bitmap []uint64
	hint   int

	disp     *dispatcher
	notifier Notifier

	events      []Event
	eventCond   *sync.Cond
	lastEventID int

	stopped bool
}

// New creates a sync object table sized by cfg (nil means DefaultConfig)
// and starts its dispatcher workers. The notifier may be nil; if set it
// receives one Notify call per terminal transition.
func New(cfg *Config, notifier Notifier) (*Table, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Table{
		cfg:      *cfg,
		rows:     make([]row, cfg.Capacity),
		bitmap:   make([]uint64, (cfg.Capacity+63)/64),
		notifier: notifier,
	}
	for i := range t.rows {
		t.rows[i].idx = i
	}
	t.eventCond = sync.NewCond(&t.mu)
	t.disp = newDispatcher(t, cfg.Workers)
	return t, nil
}

// Stop drains the dispatcher and waits for all queued callback jobs to be
// delivered. The table must not be used after Stop, and Stop must not be
// called from inside a callback.
func (t *Table) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.disp.stop()
	t.eventCond.Broadcast()
}

// findAndSetFreeSlot scans the bitmap for an empty row and marks it used.
func (t *Table) findAndSetFreeSlot() (int, bool) {
	for off := 0; off < t.cfg.Capacity; off++ {
		idx := (t.hint + off) % t.cfg.Capacity
		word, bit := idx/64, uint(idx%64)
		if t.bitmap[word]&(1<<bit) == 0 {
			t.bitmap[word] |= 1 << bit
			t.hint = (idx + 1) % t.cfg.Capacity
			return idx, true
		}
	}
	return 0, false
}

func (t *Table) allocated(idx int) bool {
	return t.bitmap[idx/64]&(1<<uint(idx%64)) != 0
}

// freeSlot returns a row to the bitmap. The generation is bumped on the
// next init, so handles minted for the old occupant keep failing lookup.
func (t *Table) freeSlot(r *row) {
	t.bitmap[r.idx/64] &^= 1 << uint(r.idx%64)
	r.name = ""
	r.merged = false
	r.status = StatusInvalid
	r.eventParam = 0
	r.children = nil
	r.parents = nil
	r.cbs = nil
	r.doomed = false
	r.mon = nil
	r.monStart = 0
	r.monLen = 0
}

// initRow sets up a freshly allocated slot. Called with the table lock held.
func (t *Table) initRow(idx int, name string, merged bool) *row {
	r := &t.rows[idx]
	r.gen++
	if r.gen == 0 {
		// generation 0 is reserved for the zero Handle
		r.gen = 1
	}
	if name == "" {
		name = "sync-" + randutil.RandomString(6)
	}
	r.name = name
	r.merged = merged
	r.status = StatusActive
	t.recordMonitor(r, MonitorOpCreate)
	return r
}

// lookup resolves a handle to its row, validating the slot allocation and
// the generation tag. Doomed and destroyed rows are invisible.
func (t *Table) lookup(h Handle) (*row, error) {
	idx, gen := h.index(), h.generation()
	if gen == 0 || idx >= t.cfg.Capacity {
		return nil, ErrInvalidHandle
	}
	r := &t.rows[idx]
	if !t.allocated(idx) || r.gen != gen || r.doomed || r.status == StatusInvalid {
		return nil, ErrInvalidHandle
	}
	return r, nil
}

func (r *row) handle() Handle {
	return makeHandle(r.idx, r.gen)
}

// CreateIndividual allocates a new individual sync object. The name is
// optional; an empty name gets a generated one.
func (t *Table) CreateIndividual(name string) (Handle, error) {
	if len(name) > maxNameLen {
		return 0, fmt.Errorf("cannot create sync object: name longer than %d characters", maxNameLen)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.findAndSetFreeSlot()
	if !ok {
		return 0, ErrTableFull
	}
	r := t.initRow(idx, name, false)
	logger.Debugf("created sync object %v (%s)", r.handle(), r.name)
	return r.handle(), nil
}

// Destroy tears down an object. It fails with ErrInUse while the object is
// still a member of a live merged object. Pending callback registrations
// are dropped without being invoked. If dispatch jobs for the object are
// still queued, actual slot reuse is deferred until they complete.
func (t *Table) Destroy(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return err
	}
	if len(r.parents) > 0 {
		return ErrInUse
	}
	if r.merged {
		t.unlinkChildren(r)
	}
	r.cbs = nil
	t.recordMonitor(r, MonitorOpDestroy)
	r.status = StatusInvalid
	if r.refs > 0 {
		r.doomed = true
	} else {
		t.freeSlot(r)
	}
	logger.Debugf("destroyed sync object %v", h)
	return nil
}

// State returns a point-in-time snapshot of the object's status and the
// event parameter recorded when it was signaled. There is no ordering
// guarantee against a concurrent Signal.
func (t *Table) State(h Handle) (Status, uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return StatusInvalid, 0, err
	}
	return r.status, r.eventParam, nil
}

// Name returns the object's name.
func (t *Table) Name(h Handle) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return "", err
	}
	return r.name, nil
}

// Allocated returns how many slots are currently in use, doomed slots
// included.
func (t *Table) Allocated() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, word := range t.bitmap {
		for ; word != 0; word &= word - 1 {
			n++
		}
	}
	return n
}

func (h Handle) String() string {
	return fmt.Sprintf("%d/%d", h.index(), h.generation())
}
