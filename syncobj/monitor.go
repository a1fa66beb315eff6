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
	"encoding/json"
	"fmt"
	"time"

	"github.com/camcore/syncd/logger"
	"github.com/camcore/syncd/strutil"
)

// MonitorOp identifies one table operation in an object's monitor ring.
type MonitorOp int

const (
	MonitorOpCreate MonitorOp = iota + 1
	MonitorOpRegister
	MonitorOpUnregister
	MonitorOpSignal
	MonitorOpDestroy
	MonitorOpDispatch
)

func (op MonitorOp) String() string {
	switch op {
	case MonitorOpCreate:
		return "create"
	case MonitorOpRegister:
		return "register"
	case MonitorOpUnregister:
		return "unregister"
	case MonitorOpSignal:
		return "signal"
	case MonitorOpDestroy:
		return "destroy"
	case MonitorOpDispatch:
		return "dispatch"
	}
	panic(fmt.Sprintf("internal error: unknown monitor op code: %d", int(op)))
}

// MonitorEntry is one recorded operation. The monitor ring is diagnostic
// only: bounded, oldest entries overwritten, never load-bearing.
type MonitorEntry struct {
	Op     MonitorOp
	Status Status
	Time   time.Time
}

type marshalledMonitorEntry struct {
	Op     string    `json:"op"`
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (e MonitorEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(marshalledMonitorEntry{
		Op:     e.Op.String(),
		Status: e.Status.String(),
		Time:   e.Time,
	})
}

// recordMonitor appends an entry to the row's ring. Called with the table
// lock held.
func (t *Table) recordMonitor(r *row, op MonitorOp) {
	depth := t.cfg.MonitorDepth
	if depth == 0 {
		return
	}
	if r.mon == nil {
		r.mon = make([]MonitorEntry, depth)
		r.monStart = 0
		r.monLen = 0
	}
	entry := MonitorEntry{Op: op, Status: r.status, Time: time.Now()}
	if r.monLen < depth {
		r.mon[(r.monStart+r.monLen)%depth] = entry
		r.monLen++
	} else {
		r.mon[r.monStart] = entry
		r.monStart = (r.monStart + 1) % depth
	}
}

// monitorEntries returns the ring oldest-first. Called with the table
// lock held.
func (r *row) monitorEntries(depth int) []MonitorEntry {
	if r.mon == nil {
		return nil
	}
	entries := make([]MonitorEntry, 0, r.monLen)
	for i := 0; i < r.monLen; i++ {
		entries = append(entries, r.mon[(r.monStart+i)%depth])
	}
	return entries
}

// DumpMonitor returns the object's recent operations, oldest first.
func (t *Table) DumpMonitor(h Handle) ([]MonitorEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return r.monitorEntries(t.cfg.MonitorDepth), nil
}

// logMonitor writes the row's ring to the debug log, used on suspicious
// operations such as a double signal. Called with the table lock held.
func (t *Table) logMonitor(r *row) {
	name := strutil.ElliptRight(r.name, 32)
	logger.Debugf("monitor for sync object %v (%s), status %v:", r.handle(), name, r.status)
	for _, e := range r.monitorEntries(t.cfg.MonitorDepth) {
		logger.Debugf("  %s %s at %s", e.Op, e.Status, e.Time.Format(time.RFC3339Nano))
	}
}
