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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/camcore/syncd/syncobj"
)

type configSuite struct{}

var _ = Suite(&configSuite{})

func (s *configSuite) TestDefaults(c *C) {
	cfg := syncobj.DefaultConfig()
	c.Check(cfg.Capacity, Equals, 1024)
	c.Check(cfg.Workers, Equals, 4)
	c.Check(cfg.MaxFanout, Equals, 64)
	c.Check(cfg.MonitorDepth, Equals, 16)
	c.Check(cfg.EventBacklog, Equals, 4096)
}

func (s *configSuite) TestReadConfig(c *C) {
	path := filepath.Join(c.MkDir(), "syncd.yaml")
	c.Assert(os.WriteFile(path, []byte("capacity: 256\nworkers: 2\nmonitor-depth: 0\n"), 0644), IsNil)

	cfg, err := syncobj.ReadConfig(path)
	c.Assert(err, IsNil)
	c.Check(cfg.Capacity, Equals, 256)
	c.Check(cfg.Workers, Equals, 2)
	c.Check(cfg.MonitorDepth, Equals, 0)
	// settings not in the file keep their defaults
	c.Check(cfg.MaxFanout, Equals, 64)
	c.Check(cfg.EventBacklog, Equals, 4096)
}

func (s *configSuite) TestReadConfigMissingFile(c *C) {
	_, err := syncobj.ReadConfig(filepath.Join(c.MkDir(), "nope.yaml"))
	c.Assert(err, ErrorMatches, "cannot read sync table config: .*")
}

func (s *configSuite) TestReadConfigBadYAML(c *C) {
	path := filepath.Join(c.MkDir(), "syncd.yaml")
	c.Assert(os.WriteFile(path, []byte("capacity: [\n"), 0644), IsNil)

	_, err := syncobj.ReadConfig(path)
	c.Assert(err, ErrorMatches, `cannot parse sync table config ".*": .*`)
}

func (s *configSuite) TestReadConfigInvalidValues(c *C) {
	path := filepath.Join(c.MkDir(), "syncd.yaml")
	c.Assert(os.WriteFile(path, []byte("capacity: 0\n"), 0644), IsNil)

	_, err := syncobj.ReadConfig(path)
	c.Assert(err, ErrorMatches, "cannot use table capacity 0: must be between 1 and 65536")
}

func (s *configSuite) TestNewRejectsBadConfig(c *C) {
	for _, tc := range []struct {
		cfg *syncobj.Config
		err string
	}{
		{&syncobj.Config{Capacity: 0, Workers: 1, MaxFanout: 1}, "cannot use table capacity 0: must be between 1 and 65536"},
		{&syncobj.Config{Capacity: 1 << 20, Workers: 1, MaxFanout: 1}, "cannot use table capacity 1048576: must be between 1 and 65536"},
		{&syncobj.Config{Capacity: 16, Workers: 0, MaxFanout: 1}, "cannot use 0 dispatcher workers: must be at least 1"},
		{&syncobj.Config{Capacity: 16, Workers: 1, MaxFanout: 0}, "cannot use max fan-out 0: must be at least 1"},
		{&syncobj.Config{Capacity: 16, Workers: 1, MaxFanout: 1, MonitorDepth: -1}, "cannot use monitor depth -1: must not be negative"},
		{&syncobj.Config{Capacity: 16, Workers: 1, MaxFanout: 1, EventBacklog: -1}, "cannot use event backlog -1: must not be negative"},
	} {
		_, err := syncobj.New(tc.cfg, nil)
		c.Check(err, ErrorMatches, tc.err)
	}
}
