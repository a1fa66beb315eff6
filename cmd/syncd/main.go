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

// Command syncd exercises a sync object table: it creates a population of
// objects, merges them into groups, signals them at a configurable rate
// and reports how the table and its dispatcher behaved. It is meant for
// soak testing and for producing diagnostic dumps.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/time/rate"

	"github.com/camcore/syncd/logger"
	"github.com/camcore/syncd/randutil"
	"github.com/camcore/syncd/strutil"
	"github.com/camcore/syncd/syncobj"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

type options struct {
	ConfigFile string `long:"config" short:"c" description:"Load table settings from a YAML file"`

	Capacity  int `long:"capacity" description:"Override the table capacity"`
	Workers   int `long:"workers" description:"Override the number of dispatcher workers"`
	MaxFanout int `long:"max-fanout" description:"Override the merge fan-out limit"`

	Objects   int     `long:"objects" short:"n" default:"64" description:"Number of individual objects to create"`
	MergeSize int     `long:"merge-size" short:"m" default:"4" description:"Members per merged object (0 disables merging)"`
	Rate      float64 `long:"rate" short:"r" description:"Signals per second (0 means unthrottled)"`
	FailEvery int     `long:"fail-every" default:"10" description:"Signal failure instead of success every Nth object (0 means never)"`

	DumpFile string `long:"dump" description:"Write a JSON dump of the table to this file before exiting"`
}

// tally counts terminal transitions as seen by the external notifier path.
type tally struct {
	success int64
	failure int64
}

func (t *tally) Notify(id syncobj.EventID, h syncobj.Handle, status syncobj.Status, payload uint32) {
	if status == syncobj.StatusSuccess {
		atomic.AddInt64(&t.success, 1)
	} else {
		atomic.AddInt64(&t.failure, 1)
	}
}

func loadConfig(opts *options) (*syncobj.Config, error) {
	cfg := syncobj.DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		cfg, err = syncobj.ReadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	if opts.Capacity > 0 {
		cfg.Capacity = opts.Capacity
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.MaxFanout > 0 {
		cfg.MaxFanout = opts.MaxFanout
	}
	return cfg, nil
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}
	if opts.Objects < 1 {
		return fmt.Errorf("cannot run with %d objects: need at least 1", opts.Objects)
	}

	cfg, err := loadConfig(&opts)
	if err != nil {
		return err
	}

	counts := &tally{}
	tab, err := syncobj.New(cfg, counts)
	if err != nil {
		return err
	}
	defer tab.Stop()

	handles := make([]syncobj.Handle, 0, opts.Objects)
	for i := 0; i < opts.Objects; i++ {
		h, err := tab.CreateIndividual(fmt.Sprintf("stress-%04d", i))
		if err != nil {
			return fmt.Errorf("cannot create object %d of %d: %v", i+1, opts.Objects, err)
		}
		handles = append(handles, h)
	}

	var merges []syncobj.Handle
	if opts.MergeSize > 1 {
		for i := 0; i+opts.MergeSize <= len(handles); i += opts.MergeSize {
			g, err := tab.CreateMerged(handles[i : i+opts.MergeSize])
			if err != nil {
				return err
			}
			merges = append(merges, g)
		}
	}

	var dispatched int64
	cb := func(h syncobj.Handle, status syncobj.Status, param uint32, ctx interface{}) {
		atomic.AddInt64(&dispatched, 1)
	}
	for _, g := range merges {
		if err := tab.RegisterCallback(g, cb, nil); err != nil {
			return err
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	start := time.Now()
	var failed []string
	for i, h := range handles {
		if err := limiter.Wait(context.Background()); err != nil {
			return err
		}
		status := syncobj.StatusSuccess
		if opts.FailEvery > 0 && i%opts.FailEvery == opts.FailEvery-1 {
			status = syncobj.StatusFailure
		}
		if err := tab.Signal(h, status, uint32(randutil.Intn(1<<16))); err != nil {
			return fmt.Errorf("cannot signal object %v: %v", h, err)
		}
		if status == syncobj.StatusFailure {
			name, err := tab.Name(h)
			if err != nil {
				return err
			}
			failed = append(failed, name)
		}
	}
	elapsed := time.Since(start)

	if opts.DumpFile != "" {
		if err := tab.DumpTo(syncobj.NewFileBackend(opts.DumpFile)); err != nil {
			return err
		}
	}

	// flush the dispatcher before reading the counters
	tab.Stop()

	fmt.Fprintf(Stdout, "signaled %d objects (%d merged) in %v\n", len(handles), len(merges), elapsed.Round(time.Millisecond))
	fmt.Fprintf(Stdout, "notified: %d success, %d failure; callbacks dispatched: %d\n",
		atomic.LoadInt64(&counts.success), atomic.LoadInt64(&counts.failure), atomic.LoadInt64(&dispatched))
	if len(failed) > 0 {
		fmt.Fprintf(Stdout, "failed: %s\n", strutil.Quoted(failed))
	}
	return nil
}

func main() {
	if err := logger.SimpleSetup(); err != nil {
		fmt.Fprintf(Stderr, "cannot activate logging: %v\n", err)
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
