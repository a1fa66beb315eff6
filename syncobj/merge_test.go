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
	"errors"

	. "gopkg.in/check.v1"

	"github.com/camcore/syncd/syncobj"
)

type mergeSuite struct {
	tab *syncobj.Table
}

var _ = Suite(&mergeSuite{})

func (s *mergeSuite) SetUpTest(c *C) {
	tab, err := syncobj.New(&syncobj.Config{Capacity: 32, Workers: 2, MaxFanout: 3, MonitorDepth: 8, EventBacklog: 64}, nil)
	c.Assert(err, IsNil)
	s.tab = tab
}

func (s *mergeSuite) TearDownTest(c *C) {
	s.tab.Stop()
}

func (s *mergeSuite) TestMergeEmpty(c *C) {
	_, err := s.tab.CreateMerged(nil)
	c.Assert(errors.Is(err, syncobj.ErrInvalidMerge), Equals, true)
	c.Assert(err, ErrorMatches, "cannot merge: .*: no members")
}

func (s *mergeSuite) TestMergeDuplicateMember(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)

	_, err = s.tab.CreateMerged([]syncobj.Handle{a, a})
	c.Assert(errors.Is(err, syncobj.ErrInvalidMerge), Equals, true)
	c.Assert(err, ErrorMatches, "cannot merge: .*: duplicate member .*")
}

func (s *mergeSuite) TestMergeUnknownMember(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	c.Assert(s.tab.Destroy(a), IsNil)

	_, err = s.tab.CreateMerged([]syncobj.Handle{a})
	c.Assert(errors.Is(err, syncobj.ErrInvalidHandle), Equals, true)
}

func (s *mergeSuite) TestMergeTooManyMembers(c *C) {
	var members []syncobj.Handle
	for i := 0; i < 4; i++ {
		h, err := s.tab.CreateIndividual("")
		c.Assert(err, IsNil)
		members = append(members, h)
	}

	// MaxFanout is 3 in this suite
	_, err := s.tab.CreateMerged(members)
	c.Assert(errors.Is(err, syncobj.ErrInvalidMerge), Equals, true)
	c.Assert(err, ErrorMatches, "cannot merge 4 objects: .*: more than 3 members")
}

func (s *mergeSuite) TestMemberParentFanoutBounded(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)

	for i := 0; i < 3; i++ {
		_, err := s.tab.CreateMerged([]syncobj.Handle{a})
		c.Assert(err, IsNil)
	}
	_, err = s.tab.CreateMerged([]syncobj.Handle{a})
	c.Assert(errors.Is(err, syncobj.ErrInvalidMerge), Equals, true)
	c.Assert(err, ErrorMatches, "cannot merge: .*: member .* already has 3 parents")
}

func (s *mergeSuite) TestDestroyMemberWhileMerged(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	g, err := s.tab.CreateMerged([]syncobj.Handle{a})
	c.Assert(err, IsNil)

	c.Assert(s.tab.Destroy(a), Equals, syncobj.ErrInUse)

	// destroying the merge first unlinks the member
	c.Assert(s.tab.Destroy(g), IsNil)
	c.Assert(s.tab.Destroy(a), IsNil)
}

func (s *mergeSuite) TestDestroyMergeKeepsMembersUsable(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	b, err := s.tab.CreateIndividual("b")
	c.Assert(err, IsNil)
	g, err := s.tab.CreateMerged([]syncobj.Handle{a, b})
	c.Assert(err, IsNil)
	c.Assert(s.tab.Destroy(g), IsNil)

	c.Assert(s.tab.Signal(a, syncobj.StatusSuccess, 0), IsNil)
	c.Assert(s.tab.Signal(b, syncobj.StatusFailure, 0), IsNil)
}

func (s *mergeSuite) TestMergeOfMergeDestroyOrder(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	inner, err := s.tab.CreateMerged([]syncobj.Handle{a})
	c.Assert(err, IsNil)
	outer, err := s.tab.CreateMerged([]syncobj.Handle{inner})
	c.Assert(err, IsNil)

	// the inner merge is a member of the outer one now
	c.Assert(s.tab.Destroy(inner), Equals, syncobj.ErrInUse)
	c.Assert(s.tab.Destroy(outer), IsNil)
	c.Assert(s.tab.Destroy(inner), IsNil)
	c.Assert(s.tab.Destroy(a), IsNil)
}

func (s *mergeSuite) TestMergeBornFailed(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	b, err := s.tab.CreateIndividual("b")
	c.Assert(err, IsNil)
	c.Assert(s.tab.Signal(a, syncobj.StatusFailure, 3), IsNil)

	g, err := s.tab.CreateMerged([]syncobj.Handle{a, b})
	c.Assert(err, IsNil)

	status, _, err := s.tab.State(g)
	c.Assert(err, IsNil)
	c.Check(status, Equals, syncobj.StatusFailure)
}

func (s *mergeSuite) TestMergedName(c *C) {
	a, err := s.tab.CreateIndividual("a")
	c.Assert(err, IsNil)
	g, err := s.tab.CreateMerged([]syncobj.Handle{a})
	c.Assert(err, IsNil)

	name, err := s.tab.Name(g)
	c.Assert(err, IsNil)
	c.Check(name, Matches, "sync-.{6}")
}
