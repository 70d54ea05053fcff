// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tdbconfig holds the small set of options the partitioner
// subsystem recognizes, plus the per-attribute result and memory budget
// types it is configured with.
package tdbconfig

import "github.com/grailbio/tdbpartition/tdberr"

// Config holds the subsystem's recognized options. Zero value is every
// option at its documented default.
type Config struct {
	// SkipEstSizePartitioning skips result-size gating; only the memory
	// budget is consulted when deciding whether a candidate interval fits.
	SkipEstSizePartitioning bool
	// SkipUnaryPartitioningBudgetCheck treats unary-range budget overflow
	// as success instead of surfacing it as unsplittable.
	SkipUnaryPartitioningBudgetCheck bool
	// DefaultMemoryBudget is used for an attribute's fixed-size memory
	// budget when none was set explicitly via SetMemoryBudget.
	DefaultMemoryBudget uint64
	// DefaultMemoryBudgetVar is the var-size analog of DefaultMemoryBudget.
	DefaultMemoryBudgetVar uint64
}

// ResultBudget is the per-attribute result-size budget used for
// size-estimate gating. Fixed is always meaningful; Var and Validity are
// tri-state (set/unset) since not every attribute is variable-length or
// nullable.
type ResultBudget struct {
	Fixed uint64

	varSet  bool
	Var     uint64
	validSet bool
	Validity uint64
}

// SetVar records a variable-size component of the budget.
func (b *ResultBudget) SetVar(v uint64) { b.Var = v; b.varSet = true }

// VarSet reports whether SetVar was ever called.
func (b *ResultBudget) VarSet() bool { return b.varSet }

// SetValidity records a validity (nullability) component of the budget.
func (b *ResultBudget) SetValidity(v uint64) { b.Validity = v; b.validSet = true }

// ValiditySet reports whether SetValidity was ever called.
func (b *ResultBudget) ValiditySet() bool { return b.validSet }

// MemoryBudget bounds the resident working set across all tiles touched by
// a candidate interval, as opposed to ResultBudget's bound on output size.
type MemoryBudget struct {
	Fixed uint64
	Var   uint64
}

// Budgets is the full set of per-attribute result budgets plus the one
// memory budget that applies across all attributes, with get/set
// accessors mirroring the source's symmetric getter/setter pairs.
type Budgets struct {
	cfg Config

	result map[string]ResultBudget
	memSet bool
	mem    MemoryBudget
}

// NewBudgets creates an empty budget set under cfg.
func NewBudgets(cfg Config) *Budgets {
	return &Budgets{cfg: cfg, result: make(map[string]ResultBudget)}
}

// SetResultBudget sets attr's result-size budget.
func (b *Budgets) SetResultBudget(attr string, budget ResultBudget) {
	b.result[attr] = budget
}

// GetResultBudget returns attr's result-size budget. If none was set
// explicitly, it returns tdberr.BudgetNotSet unless
// Config.SkipEstSizePartitioning is set, in which case a zero budget is
// returned instead (the partitioner does not gate on result budgets in
// that mode).
func (b *Budgets) GetResultBudget(attr string) (ResultBudget, error) {
	if rb, ok := b.result[attr]; ok {
		return rb, nil
	}
	if b.cfg.SkipEstSizePartitioning {
		return ResultBudget{}, nil
	}
	return ResultBudget{}, tdberr.E(tdberr.BudgetNotSet, "tdbconfig.Budgets.GetResultBudget", "no budget set for attribute "+attr)
}

// SetMemoryBudget sets the array-wide memory budget.
func (b *Budgets) SetMemoryBudget(budget MemoryBudget) {
	b.mem = budget
	b.memSet = true
}

// GetMemoryBudget returns the configured memory budget, falling back to
// Config's defaults when none was set explicitly.
func (b *Budgets) GetMemoryBudget() MemoryBudget {
	if b.memSet {
		return b.mem
	}
	return MemoryBudget{Fixed: b.cfg.DefaultMemoryBudget, Var: b.cfg.DefaultMemoryBudgetVar}
}

// Config returns the options this budget set was created with.
func (b *Budgets) Config() Config { return b.cfg }
