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
	"context"
	"encoding/json"
	"time"
)

// Event records one terminal transition, for listeners that prefer
// polling or waiting over registering per-object callbacks.
type Event struct {
	id        int
	handle    Handle
	status    Status
	param     uint32
	timestamp time.Time
}

// ID is a monotonically increasing sequence number for this event.
func (e *Event) ID() int {
	return e.id
}

// Handle is the object that resolved.
func (e *Event) Handle() Handle {
	return e.handle
}

// Status is the terminal status the object resolved to.
func (e *Event) Status() Status {
	return e.status
}

// Param is the event parameter passed to Signal.
func (e *Event) Param() uint32 {
	return e.param
}

// Timestamp is when the transition was recorded.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

type marshalledEvent struct {
	ID        int       `json:"id"`
	Handle    string    `json:"handle"`
	Status    string    `json:"status"`
	Param     uint32    `json:"param,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(marshalledEvent{
		ID:        e.id,
		Handle:    e.handle.String(),
		Status:    e.status.String(),
		Param:     e.param,
		Timestamp: e.timestamp,
	})
}

// appendEvent records a terminal transition and wakes up waiters. Called
// with the table lock held.
func (t *Table) appendEvent(h Handle, status Status, param uint32) {
	if t.cfg.EventBacklog == 0 {
		return
	}
	t.lastEventID++
	t.events = append(t.events, Event{
		id:        t.lastEventID,
		handle:    h,
		status:    status,
		param:     param,
		timestamp: time.Now(),
	})
	if len(t.events) > t.cfg.EventBacklog {
		t.events = append([]Event(nil), t.events[len(t.events)-t.cfg.EventBacklog:]...)
	}
	t.eventCond.Broadcast()
}

// EventFilter selects events by various fields.
type EventFilter struct {
	// Handles, if not empty, includes only events for one of these objects.
	Handles []Handle

	// Statuses, if not empty, includes only events with one of these
	// terminal statuses.
	Statuses []Status

	// After, if not zero, includes only events with a larger sequence
	// number.
	After int
}

// matches reports whether the event e matches this filter.
func (f *EventFilter) matches(e *Event) bool {
	if f == nil {
		return true
	}
	if len(f.Handles) > 0 && !sliceContains(f.Handles, e.handle) {
		return false
	}
	if len(f.Statuses) > 0 && !sliceContains(f.Statuses, e.status) {
		return false
	}
	if e.id <= f.After {
		return false
	}
	return true
}

func sliceContains[T comparable](haystack []T, needle T) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Events returns the recorded terminal transitions that match the filter
// (if any), oldest first.
func (t *Table) Events(filter *EventFilter) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.matchingEvents(filter)
}

func (t *Table) matchingEvents(filter *EventFilter) []Event {
	var events []Event
	for i := range t.events {
		if filter.matches(&t.events[i]) {
			events = append(events, t.events[i])
		}
	}
	return events
}

// WaitEvents waits until at least one event matching the filter exists,
// returning the matching events oldest first. Events that already match
// when WaitEvents is called are returned immediately. It fails once the
// context is cancelled or the table is stopped.
func (t *Table) WaitEvents(ctx context.Context, filter *EventFilter) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// When the context is done, wake up the waiters so that they can
	// check their ctx.Err() and return if they're cancelled.
	stop := context.AfterFunc(ctx, func() {
		// The cond lock must be held here so the Broadcast cannot fire
		// between the match check and the Wait below, which would be a
		// missed wakeup.
		t.mu.Lock()
		defer t.mu.Unlock()

		t.eventCond.Broadcast()
	})
	defer stop()

	for {
		if events := t.matchingEvents(filter); len(events) > 0 {
			return events, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.stopped {
			return nil, ErrStopped
		}
		t.eventCond.Wait()
	}
}
