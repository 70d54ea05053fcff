// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command tdb-partition drives the partitioner over a synthetic dense
// domain and a FakeOracle populated with uniform tiles, for manual
// exploration of how a query and a budget decompose into partitions.
package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/tdbpartition/estimate"
	"github.com/grailbio/tdbpartition/oracle"
	"github.com/grailbio/tdbpartition/partitioner"
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdbconfig"
	"github.com/grailbio/tdbpartition/tdbtype"
	"github.com/grailbio/tdbpartition/threadpool"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
	"v.io/x/lib/cmdline"
)

type planFlags struct {
	domainLo    *int64
	domainHi    *int64
	tileExtent  *int64
	query       *string
	resultBudget *int64
	memBudget   *int64
	attr        *string
}

func newCmdPlan() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "plan",
		Short: "Partition a query range over a synthetic 1D dense domain",
		Long: `Builds a single-dimension int64 domain [domain-lo, domain-hi] tiled every
tile-extent cells, populates a FakeOracle with one uniformly-sized tile per
tile-extent-sized slab, and runs the partitioner over the given query range,
printing the partitions it yields.`,
	}
	flags := planFlags{
		domainLo:     cmd.Flags.Int64("domain-lo", 0, "Domain lower bound (inclusive)"),
		domainHi:     cmd.Flags.Int64("domain-hi", 999, "Domain upper bound (inclusive)"),
		tileExtent:   cmd.Flags.Int64("tile-extent", 100, "Tile width in cells"),
		query:        cmd.Flags.String("query", "0,999", "Comma-separated query range lo,hi"),
		resultBudget: cmd.Flags.Int64("result-budget", 1<<20, "Per-attribute fixed result-size budget, in bytes"),
		memBudget:    cmd.Flags.Int64("memory-budget", 1<<30, "Memory budget across all attributes, used for both fixed and var sizes, in bytes"),
		attr:         cmd.Flags.String("attr", "a", "Attribute name to plan against"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("plan takes no positional arguments, but got %v", argv)
		}
		return plan(flags)
	})
	return cmd
}

func parseQuery(s string) (lo, hi int64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("query must be \"lo,hi\", got %q", s)
	}
	lo, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing query lo: %v", err)
	}
	hi, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing query hi: %v", err)
	}
	return lo, hi, nil
}

func plan(flags planFlags) error {
	domainRange, err := trange.NewInt(tdbtype.Int64, *flags.domainLo, *flags.domainHi)
	if err != nil {
		return err
	}
	extent := float64(*flags.tileExtent)
	dom := &subarray.Domain{
		Dimensions: []subarray.Dimension{{Name: "x", Type: tdbtype.Int64, Domain: domainRange, TileExtent: &extent}},
		CellOrder:  subarray.CellRowMajor,
		TileOrder:  subarray.TileRowMajor,
	}

	fake := oracle.NewFakeOracle(dom, false, 0)
	bytesPerCell := uint64(8)
	for lo := *flags.domainLo; lo <= *flags.domainHi; lo += *flags.tileExtent {
		hi := lo + *flags.tileExtent - 1
		if hi > *flags.domainHi {
			hi = *flags.domainHi
		}
		cellNum := uint64(hi - lo + 1)
		box := tilecoord.Box{Lo: tilecoord.Coord{lo}, Hi: tilecoord.Coord{hi}}
		fake.AddTile(tilecoord.Coord{lo}, box, cellNum,
			map[string]uint64{*flags.attr: cellNum * bytesPerCell},
			map[string]uint64{*flags.attr: 0},
			map[string]uint64{*flags.attr: 0})
	}

	est := estimate.New(fake, threadpool.TraversePool{})
	budgets := tdbconfig.NewBudgets(tdbconfig.Config{})
	budgets.SetResultBudget(*flags.attr, tdbconfig.ResultBudget{Fixed: uint64(*flags.resultBudget)})
	budgets.SetMemoryBudget(tdbconfig.MemoryBudget{Fixed: uint64(*flags.memBudget), Var: uint64(*flags.memBudget)})

	qlo, qhi, err := parseQuery(*flags.query)
	if err != nil {
		return err
	}
	queryRange, err := trange.NewInt(tdbtype.Int64, qlo, qhi)
	if err != nil {
		return err
	}
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	if err != nil {
		return err
	}
	if err := sa.AddRange(0, queryRange, true); err != nil {
		return err
	}

	it, err := partitioner.NewIterator(sa, est, budgets, []string{*flags.attr})
	if err != nil {
		return err
	}

	n := 0
	for {
		if err := it.Next(); err != nil {
			return err
		}
		if it.Done() {
			break
		}
		n++
		cur := it.Current()
		r, err := cur.Subarray.GetRange(0, 0)
		if err != nil {
			return err
		}
		last, err := cur.Subarray.GetRange(0, cur.Subarray.RangeNumPerDim(0)-1)
		if err != nil {
			return err
		}
		fmt.Printf("partition %d: [%d,%d] cells=%d multiRange=%v unsplittable=%v\n",
			n, int64(r.LoAsFloat()), int64(last.HiAsFloat()), cur.Subarray.CellNum(), cur.SplitMultiRange, cur.Unsplittable)
	}
	fmt.Printf("total partitions: %d\n", n)
	return nil
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "tdb-partition",
			Short:    "Explore budget-bounded query partitioning",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdPlan(),
			},
		})
}
