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
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/camcore/syncd/logger"
)

// dispatchJob carries the callbacks of one resolved object to a worker.
// Jobs for the same slot always land on the same worker, so callbacks for
// one object run in registration order while different objects dispatch
// concurrently.
type dispatchJob struct {
	handle     Handle
	status     Status
	eventParam uint32
	cbs        []*callbackRec

	// notify marks the job created by the resolution itself (as opposed
	// to a late registration); it triggers the external Notifier.
	notify bool
}

// dispatchQueue is one worker's unbounded job list. Enqueueing is O(1) and
// never blocks, so it is safe under the table lock.
type dispatchQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []*dispatchJob
	draining bool
}

// dispatcher drains callback jobs on a pool of worker goroutines, outside
// any lock held by the signaling path, so slow or reentrant callbacks
// cannot stall or deadlock signalers.
type dispatcher struct {
	table  *Table
	tmb    tomb.Tomb
	queues []*dispatchQueue
}

func newDispatcher(t *Table, workers int) *dispatcher {
	d := &dispatcher{table: t}
	for i := 0; i < workers; i++ {
		q := &dispatchQueue{}
		q.cond = sync.NewCond(&q.mu)
		d.queues = append(d.queues, q)
		d.tmb.Go(func() error {
			d.worker(q)
			return nil
		})
	}
	return d
}

// enqueue adds a job to the queue owning the given slot. Called with the
// table lock held.
func (d *dispatcher) enqueue(slot int, job *dispatchJob) {
	q := d.queues[slot%len(d.queues)]
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
	q.mu.Unlock()
}

func (d *dispatcher) worker(q *dispatchQueue) {
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.draining {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		d.run(job)
	}
}

// run invokes the job's callbacks exactly once each. A panicking callback
// is the client's problem; the worker logs it and keeps draining.
func (d *dispatcher) run(job *dispatchJob) {
	for _, rec := range job.cbs {
		d.invoke(job, rec)
	}
	if job.notify && d.table.notifier != nil {
		d.table.notifier.Notify(EventIDSignaled, job.handle, job.status, job.eventParam)
	}
	d.table.completeJob(job)
}

func (d *dispatcher) invoke(job *dispatchJob, rec *callbackRec) {
	defer func() {
		if v := recover(); v != nil {
			logger.Noticef("callback for sync object %v panicked: %v", job.handle, v)
		}
	}()
	rec.fn(job.handle, job.status, job.eventParam, rec.ctx)
}

// stop flushes the queues: workers deliver everything still queued, then
// exit. Jobs enqueued by callbacks racing the shutdown are delivered on
// the stopping goroutine.
func (d *dispatcher) stop() {
	for _, q := range d.queues {
		q.mu.Lock()
		q.draining = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	d.tmb.Kill(nil)
	d.tmb.Wait()

	for {
		var job *dispatchJob
		for _, q := range d.queues {
			q.mu.Lock()
			if len(q.jobs) > 0 {
				job = q.jobs[0]
				q.jobs = q.jobs[1:]
			}
			q.mu.Unlock()
			if job != nil {
				break
			}
		}
		if job == nil {
			return
		}
		d.run(job)
	}
}

// completeJob drops the slot reference held by a finished job. A doomed
// slot becomes reusable once the last job completes.
func (t *Table) completeJob(job *dispatchJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := &t.rows[job.handle.index()]
	if r.gen != job.handle.generation() || r.refs < 1 {
		logger.Panicf("internal error: dispatch completion for recycled sync object %v", job.handle)
	}
	if len(job.cbs) > 0 {
		t.recordMonitor(r, MonitorOpDispatch)
	}
	r.refs--
	if r.doomed && r.refs == 0 {
		t.freeSlot(r)
	}
}
