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

package syncobj_test

import (
	. "gopkg.in/check.v1"

	"github.com/camcore/syncd/logger"
	"github.com/camcore/syncd/syncobj"
	"github.com/camcore/syncd/testutil"
)

type callbackSuite struct {
	tab *syncobj.Table
}

var _ = Suite(&callbackSuite{})

func (s *callbackSuite) SetUpTest(c *C) {
	tab, err := syncobj.New(nil, nil)
	c.Assert(err, IsNil)
	s.tab = tab
}

func (s *callbackSuite) TearDownTest(c *C) {
	s.tab.Stop()
}

func (s *callbackSuite) TestDispatchCarriesContext(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 1)
	c.Assert(s.tab.RegisterCallback(h, recorder(ch), "req-7"), IsNil)
	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 21), IsNil)

	ev := waitCb(c, ch)
	c.Check(ev.handle, Equals, h)
	c.Check(ev.status, Equals, syncobj.StatusSuccess)
	c.Check(ev.param, Equals, uint32(21))
	c.Check(ev.ctx, Equals, "req-7")
}

func (s *callbackSuite) TestDispatchInRegistrationOrder(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 8)
	for i := 0; i < 5; i++ {
		c.Assert(s.tab.RegisterCallback(h, recorder(ch), i), IsNil)
	}
	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 0), IsNil)

	for i := 0; i < 5; i++ {
		ev := waitCb(c, ch)
		c.Check(ev.ctx, Equals, i)
	}
}

func (s *callbackSuite) TestRegisterAfterResolve(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)
	c.Assert(s.tab.Signal(h, syncobj.StatusFailure, 9), IsNil)

	ch := make(chan cbEvent, 1)
	c.Assert(s.tab.RegisterCallback(h, recorder(ch), nil), IsNil)

	ev := waitCb(c, ch)
	c.Check(ev.status, Equals, syncobj.StatusFailure)
	c.Check(ev.param, Equals, uint32(9))
}

func (s *callbackSuite) TestDeregisterPending(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 2)
	cb := recorder(ch)
	c.Assert(s.tab.RegisterCallback(h, cb, "x"), IsNil)
	c.Check(s.tab.PendingCallbacks(h), Equals, 1)

	c.Assert(s.tab.DeregisterCallback(h, cb, "x"), IsNil)
	c.Check(s.tab.PendingCallbacks(h), Equals, 0)

	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 0), IsNil)
	noCb(c, ch)
}

func (s *callbackSuite) TestDeregisterContextMismatch(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 1)
	cb := recorder(ch)
	c.Assert(s.tab.RegisterCallback(h, cb, "x"), IsNil)
	c.Assert(s.tab.DeregisterCallback(h, cb, "y"), Equals, syncobj.ErrNotFound)
}

func (s *callbackSuite) TestDeregisterAfterDispatchHandoff(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 1)
	cb := recorder(ch)
	c.Assert(s.tab.RegisterCallback(h, cb, "x"), IsNil)
	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 0), IsNil)

	// already handed to the dispatcher, irrevocable now
	c.Assert(s.tab.DeregisterCallback(h, cb, "x"), Equals, syncobj.ErrNotFound)
	waitCb(c, ch)
}

func (s *callbackSuite) TestNilCallback(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	c.Assert(s.tab.RegisterCallback(h, nil, nil), Equals, syncobj.ErrNotFound)
	c.Assert(s.tab.DeregisterCallback(h, nil, nil), Equals, syncobj.ErrNotFound)
}

func (s *callbackSuite) TestReentrantSignalFromCallback(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	b, err := s.tab.CreateIndividual("b")
	c.Assert(err, IsNil)

	done := make(chan cbEvent, 1)
	c.Assert(s.tab.RegisterCallback(b, recorder(done), nil), IsNil)

	// a's callback signals b from inside the dispatcher
	chain := func(h syncobj.Handle, status syncobj.Status, param uint32, ctx interface{}) {
		c.Check(s.tab.Signal(b, status, param), IsNil)
	}
	c.Assert(s.tab.RegisterCallback(a, chain, nil), IsNil)
	c.Assert(s.tab.Signal(a, syncobj.StatusSuccess, 5), IsNil)

	ev := waitCb(c, done)
	c.Check(ev.handle, Equals, b)
	c.Check(ev.status, Equals, syncobj.StatusSuccess)
	c.Check(ev.param, Equals, uint32(5))
}

func (s *callbackSuite) TestReentrantDestroyFromCallback(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	done := make(chan error, 1)
	cb := func(h syncobj.Handle, status syncobj.Status, param uint32, ctx interface{}) {
		done <- s.tab.Destroy(h)
	}
	c.Assert(s.tab.RegisterCallback(h, cb, nil), IsNil)
	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 0), IsNil)

	c.Assert(<-done, IsNil)

	_, _, err = s.tab.State(h)
	c.Check(err, Equals, syncobj.ErrInvalidHandle)
}

func (s *callbackSuite) TestPanickingCallbackIsContained(c *C) {
	logbuf, restore := logger.MockLogger()
	defer restore()

	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 1)
	boom := func(h syncobj.Handle, status syncobj.Status, param uint32, ctx interface{}) {
		panic("boom")
	}
	c.Assert(s.tab.RegisterCallback(h, boom, nil), IsNil)
	c.Assert(s.tab.RegisterCallback(h, recorder(ch), nil), IsNil)
	c.Assert(s.tab.Signal(h, syncobj.StatusSuccess, 0), IsNil)

	// the second callback still runs
	waitCb(c, ch)

	logger.WithLoggerLock(func() {
		c.Check(logbuf.String(), testutil.Contains, "panicked: boom")
	})
}

func (s *callbackSuite) TestDestroyDropsPendingCallbacks(c *C) {
	h, err := s.tab.CreateIndividual("")
	c.Assert(err, IsNil)

	ch := make(chan cbEvent, 1)
	c.Assert(s.tab.RegisterCallback(h, recorder(ch), nil), IsNil)
	c.Assert(s.tab.Destroy(h), IsNil)
	noCb(c, ch)
}
