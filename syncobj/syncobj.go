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

// Package syncobj implements a shared synchronization-object manager.
//
// A sync object is a handle representing the future completion, with
// success or failure, of some external unit of work. Independent clients
// create individual objects, merge existing objects into grouped ("merged")
// objects whose resolution is derived from their members, signal objects
// from completion paths, and register callbacks that are dispatched
// asynchronously once an object resolves.
//
// All objects live in a fixed-capacity table owned by a Table value; the
// only thing clients ever hold is a Handle. Handles carry a generation tag
// so that a stale handle kept across a destroy and slot reuse is always
// rejected rather than silently operating on the new occupant.
package syncobj

import (
	"errors"
)

// A Handle names one sync object in a Table. The zero Handle is never
// valid. Handles embed the slot index and a generation tag and must be
// treated as opaque by clients.
type Handle uint32

const (
	handleIndexBits = 16
	handleIndexMask = 1<<handleIndexBits - 1
)

func makeHandle(idx int, gen uint16) Handle {
	return Handle(uint32(gen)<<handleIndexBits | uint32(idx))
}

func (h Handle) index() int {
	return int(h & handleIndexMask)
}

func (h Handle) generation() uint16 {
	return uint16(h >> handleIndexBits)
}

// A Callback is invoked exactly once, from the dispatcher and outside any
// table lock, after the object it was registered on resolves.
type Callback func(h Handle, status Status, eventParam uint32, ctx interface{})

// An EventID identifies the kind of event forwarded to a Notifier sink.
type EventID uint32

const (
	// EventIDSignaled is sent when an object leaves the active state.
	EventIDSignaled EventID = 1
)

// A Notifier is an external event-delivery sink, e.g. a userspace event
// channel. Notify is called from the dispatcher, outside the table lock,
// once per terminal transition.
type Notifier interface {
	Notify(id EventID, h Handle, status Status, payload uint32)
}

var (
	// ErrTableFull means no free slot was available for a new object.
	ErrTableFull = errors.New("sync object table is full")

	// ErrInvalidHandle means the handle is unknown, stale, or from a
	// different generation of its slot.
	ErrInvalidHandle = errors.New("invalid sync object handle")

	// ErrAlreadySignaled means the object already left the active state.
	ErrAlreadySignaled = errors.New("sync object already signaled")

	// ErrMergedObject means the operation is not allowed on a merged
	// object, whose state is derived solely from its members.
	ErrMergedObject = errors.New("operation not allowed on a merged sync object")

	// ErrInvalidMerge means the member set for a merge was malformed.
	ErrInvalidMerge = errors.New("invalid sync object merge")

	// ErrInUse means the object is still referenced, e.g. as a member of
	// a live merged object.
	ErrInUse = errors.New("sync object still in use")

	// ErrNotFound means no matching pending callback registration exists.
	ErrNotFound = errors.New("no matching callback registered")

	// ErrStopped means the table was stopped.
	ErrStopped = errors.New("sync object table is stopped")
)
