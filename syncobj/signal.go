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
)

// Signal transitions an individual object out of the active state with the
// given terminal status, then walks the dependency graph upward: every
// merged object whose aggregate newly resolves gets its callback dispatch
// enqueued, children before the parents they unblock.
//
// Signal never invokes callbacks itself and holds the table lock only for
// the bounded graph walk, so it is safe to call from completion paths that
// must not block.
func (t *Table) Signal(h Handle, status Status, eventParam uint32) error {
	if !status.Ready() {
		return fmt.Errorf("cannot signal sync object %v with non-terminal status %v", h, status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return err
	}
	if r.merged {
		return ErrMergedObject
	}
	if r.status != StatusActive {
		t.logMonitor(r)
		return ErrAlreadySignaled
	}

	t.queueDispatches(t.propagate(r, status, eventParam))
	return nil
}

// propagate records the terminal status on r and recomputes aggregates up
// the parent chain. It returns every row that left the active state during
// the walk, in resolution order. Called with the table lock held.
func (t *Table) propagate(r *row, status Status, eventParam uint32) []*row {
	r.status = status
	r.eventParam = eventParam
	t.recordMonitor(r, MonitorOpSignal)

	resolved := []*row{r}
	queue := []*row{r}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ph := range cur.parents {
			pr := t.memberRow(ph)
			if pr.status != StatusActive {
				continue
			}
			agg := t.aggregate(pr)
			if agg == StatusActive {
				continue
			}
			pr.status = agg
			pr.eventParam = eventParam
			t.recordMonitor(pr, MonitorOpSignal)
			resolved = append(resolved, pr)
			queue = append(queue, pr)
		}
	}
	return resolved
}

// queueDispatches hands the pending callbacks of newly resolved rows to
// the dispatcher and records one terminal-transition event per row. Called
// with the table lock held; enqueueing never blocks.
func (t *Table) queueDispatches(resolved []*row) {
	for _, r := range resolved {
		cbs := r.cbs
		r.cbs = nil
		job := &dispatchJob{
			handle:     r.handle(),
			status:     r.status,
			eventParam: r.eventParam,
			cbs:        cbs,
			notify:     true,
		}
		r.refs++
		t.disp.enqueue(r.idx, job)
		t.appendEvent(r.handle(), r.status, r.eventParam)
	}
}
