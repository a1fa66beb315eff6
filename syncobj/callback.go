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
	"reflect"
)

// callbackRec is one pending registration. The function pointer and the
// context together identify the registration for deregistration, so the
// context must be comparable if DeregisterCallback is to be used.
type callbackRec struct {
	fn    Callback
	fnPtr uintptr
	ctx   interface{}
}

// RegisterCallback arranges for cb to be invoked once, asynchronously,
// with the object's final status. Registering on an already-resolved
// object immediately enqueues the dispatch with the known result, so a
// caller can never miss a completion by registering "too late".
func (t *Table) RegisterCallback(h Handle, cb Callback, ctx interface{}) error {
	if cb == nil {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return err
	}
	rec := &callbackRec{fn: cb, fnPtr: reflect.ValueOf(cb).Pointer(), ctx: ctx}
	t.recordMonitor(r, MonitorOpRegister)
	if r.status.Ready() {
		job := &dispatchJob{
			handle:     h,
			status:     r.status,
			eventParam: r.eventParam,
			cbs:        []*callbackRec{rec},
		}
		r.refs++
		t.disp.enqueue(r.idx, job)
		return nil
	}
	r.cbs = append(r.cbs, rec)
	return nil
}

// DeregisterCallback removes a pending registration matching cb and ctx.
// A registration already handed to the dispatcher is irrevocable and
// reported as ErrNotFound.
func (t *Table) DeregisterCallback(h Handle, cb Callback, ctx interface{}) error {
	if cb == nil {
		return ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.lookup(h)
	if err != nil {
		return err
	}
	fnPtr := reflect.ValueOf(cb).Pointer()
	for i, rec := range r.cbs {
		if rec.fnPtr == fnPtr && rec.ctx == ctx {
			r.cbs = append(r.cbs[:i], r.cbs[i+1:]...)
			t.recordMonitor(r, MonitorOpUnregister)
			return nil
		}
	}
	return ErrNotFound
}
