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

	"github.com/camcore/syncd/osutil"
)

// A Backend receives serialized diagnostic dumps of the table.
type Backend interface {
	Checkpoint(data []byte) error
}

type fileBackend struct {
	path string
}

// NewFileBackend creates a file based dump backend.
func NewFileBackend(path string) Backend {
	return &fileBackend{path: path}
}

func (fb *fileBackend) Checkpoint(data []byte) error {
	return osutil.AtomicWriteFile(fb.path, data, 0600)
}

type objectDump struct {
	Handle   string         `json:"handle"`
	Name     string         `json:"name"`
	Merged   bool           `json:"merged,omitempty"`
	Status   string         `json:"status"`
	Children []string       `json:"children,omitempty"`
	Parents  []string       `json:"parents,omitempty"`
	Monitor  []MonitorEntry `json:"monitor,omitempty"`
}

type tableDump struct {
	Capacity  int          `json:"capacity"`
	Allocated int          `json:"allocated"`
	Objects   []objectDump `json:"objects"`
	Events    []Event      `json:"events,omitempty"`
}

func handleStrings(hs []Handle) []string {
	if len(hs) == 0 {
		return nil
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.String()
	}
	return out
}

// DumpTo serializes the live objects, their monitor rings, and the event
// backlog, and checkpoints the result through the given backend, for
// postmortem inspection.
func (t *Table) DumpTo(b Backend) error {
	t.mu.Lock()

	dump := tableDump{
		Capacity: t.cfg.Capacity,
		Events:   t.matchingEvents(nil),
	}
	for i := range t.rows {
		r := &t.rows[i]
		if !t.allocated(i) {
			continue
		}
		dump.Allocated++
		dump.Objects = append(dump.Objects, objectDump{
			Handle:   r.handle().String(),
			Name:     r.name,
			Merged:   r.merged,
			Status:   r.status.String(),
			Children: handleStrings(r.children),
			Parents:  handleStrings(r.parents),
			Monitor:  r.monitorEntries(t.cfg.MonitorDepth),
		})
	}

	data, err := json.Marshal(dump)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("internal error: cannot marshal sync table dump: %v", err)
	}

	return b.Checkpoint(data)
}
