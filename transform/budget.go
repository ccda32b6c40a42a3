//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package transform

import "sync/atomic"

// Budget is the cumulative LLM spend counter shared across concurrently
// executing nodes. Updates are atomic increment-and-check so concurrent
// charges can never overspend past the cap.
//
// A nil *Budget means unlimited spend.
type Budget struct {
	capUnits int64
	spent    atomic.Int64
}

// NewBudget creates a budget capped at the given number of cost units.
func NewBudget(capUnits int) *Budget {
	return &Budget{capUnits: int64(capUnits)}
}

// Charge atomically adds units to the spend counter. If the addition would
// cross the cap, the charge is rolled back and a *BudgetExceededError is
// returned; the counter may transiently overshoot but no charge is ever kept
// past the cap.
func (b *Budget) Charge(units int) error {
	if b == nil {
		return nil
	}
	if total := b.spent.Add(int64(units)); total > b.capUnits {
		b.spent.Add(int64(-units))
		return &BudgetExceededError{
			CapUnits:       int(b.capUnits),
			RequestedUnits: units,
		}
	}
	return nil
}

// Adjust reconciles an earlier estimated charge with the actual cost. The
// delta may be negative; the counter never drops below zero.
func (b *Budget) Adjust(delta int) {
	if b == nil {
		return
	}
	if total := b.spent.Add(int64(delta)); total < 0 {
		b.spent.Add(-total)
	}
}

// Spent returns the units charged so far.
func (b *Budget) Spent() int {
	if b == nil {
		return 0
	}
	return int(b.spent.Load())
}
