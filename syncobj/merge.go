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

	"github.com/camcore/syncd/logger"
)

// CreateMerged allocates a merged sync object whose state is derived from
// the given members. Members may themselves be merged objects; cycles are
// structurally impossible since the new object cannot be in its own member
// list. If some members are already signaled the aggregate is computed
// immediately, so a merged object may be born resolved, with its dispatch
// enqueued before CreateMerged returns.
func (t *Table) CreateMerged(members []Handle) (Handle, error) {
	if len(members) == 0 {
		return 0, fmt.Errorf("cannot merge: %w: no members", ErrInvalidMerge)
	}
	if len(members) > t.cfg.MaxFanout {
		return 0, fmt.Errorf("cannot merge %d objects: %w: more than %d members", len(members), ErrInvalidMerge, t.cfg.MaxFanout)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[Handle]bool, len(members))
	mrows := make([]*row, len(members))
	for i, mh := range members {
		if seen[mh] {
			return 0, fmt.Errorf("cannot merge: %w: duplicate member %v", ErrInvalidMerge, mh)
		}
		seen[mh] = true
		mr, err := t.lookup(mh)
		if err != nil {
			return 0, fmt.Errorf("cannot merge: member %v: %w", mh, err)
		}
		if len(mr.parents) >= t.cfg.MaxFanout {
			return 0, fmt.Errorf("cannot merge: %w: member %v already has %d parents", ErrInvalidMerge, mh, len(mr.parents))
		}
		mrows[i] = mr
	}

	idx, ok := t.findAndSetFreeSlot()
	if !ok {
		return 0, ErrTableFull
	}
	r := t.initRow(idx, "", true)
	h := r.handle()
	r.children = append([]Handle(nil), members...)
	for _, mr := range mrows {
		mr.parents = append(mr.parents, h)
	}

	// A member may be signaled already; resolve the merge right away so a
	// caller registering a callback immediately after creation can never
	// miss the completion.
	if agg := t.aggregate(r); agg != StatusActive {
		t.queueDispatches(t.propagate(r, agg, 0))
	}

	logger.Debugf("created merged sync object %v with %d members", h, len(members))
	return h, nil
}

// aggregate derives a merged row's state from its children: failure if any
// child failed (failure dominates over still-pending children), success if
// every child succeeded, active otherwise.
func (t *Table) aggregate(r *row) Status {
	agg := StatusSuccess
	for _, ch := range r.children {
		cr := t.memberRow(ch)
		switch cr.status {
		case StatusFailure:
			return StatusFailure
		case StatusActive:
			agg = StatusActive
		}
	}
	return agg
}

// memberRow resolves a graph edge. Edges are unlinked before a row can be
// destroyed, so a dangling edge is an internal inconsistency.
func (t *Table) memberRow(h Handle) *row {
	r, err := t.lookup(h)
	if err != nil {
		logger.Panicf("internal error: dangling sync object edge %v: %v", h, err)
	}
	return r
}

// unlinkChildren removes r from the parent list of every member. Called
// with the table lock held, when a merged row is destroyed.
func (t *Table) unlinkChildren(r *row) {
	h := r.handle()
	for _, ch := range r.children {
		cr := t.memberRow(ch)
		for i, ph := range cr.parents {
			if ph == h {
				cr.parents = append(cr.parents[:i], cr.parents[i+1:]...)
				break
			}
		}
	}
	r.children = nil
}
