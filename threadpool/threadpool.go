// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package threadpool defines the Thread Pool collaborator the tile-overlap
// estimator fans out onto, and a github.com/grailbio/base/traverse-backed
// implementation of it.
package threadpool

import "github.com/grailbio/base/traverse"

// Task is one unit of work submitted to a Pool.
type Task func() error

// Pool runs a batch of Tasks, possibly concurrently, and reports the first
// error encountered (if any). There is no ordering guarantee among
// submitted tasks.
type Pool interface {
	// Run executes every task in tasks, waits for all of them, and returns
	// the first non-nil error, if any. Unlike a submit/future-handle API,
	// this narrows the three logical calls (submit each, wait_all, collect
	// errors) down to the one shape every caller in this package actually
	// needs.
	Run(tasks []Task) error
}

// TraversePool runs tasks with github.com/grailbio/base/traverse.Each,
// which fans a batch of jobIdx values out across a goroutine per index and
// joins before returning, exactly the submit/wait_all shape callers here
// need.
type TraversePool struct{}

// Run implements Pool.
func (TraversePool) Run(tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return traverse.Each(len(tasks), func(i int) error {
		return tasks[i]()
	})
}
