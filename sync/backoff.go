// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sync

import (
	"math/rand"
	"time"

	"github.com/evoluhq/evolu-sub007/config"
)

// maxBackoff bounds the computed delay regardless of Fibonacci growth,
// since fib(78) scaled by any reasonable BackoffBase would otherwise
// produce an unusable multi-year delay.
const maxBackoff = 10 * time.Minute

// fibonacciBackoff computes the spec §5 "Fibonacci cap (indices
// 1..78)" retry delay for the given 1-based attempt number, with
// +/-25% jitter to avoid synchronized retry storms across clients.
func fibonacciBackoff(cfg config.Sync, attempt int, r *rand.Rand) time.Duration {
	idx := attempt
	if idx < 1 {
		idx = 1
	}
	if idx > cfg.BackoffCapIndex {
		idx = cfg.BackoffCapIndex
	}

	delay := maxBackoff
	if fib := fibonacci(idx); cfg.BackoffBase > 0 && fib <= uint64(maxBackoff/cfg.BackoffBase) {
		delay = time.Duration(fib) * cfg.BackoffBase
	}

	jitter := 0.75 + r.Float64()*0.5 // [0.75, 1.25)
	return time.Duration(float64(delay) * jitter)
}

// fibonacci returns the nth Fibonacci number (fib(1)=1, fib(2)=1),
// computed iteratively; it stops growing once past 2^40 so the
// accumulator cannot overflow, and fibonacciBackoff only multiplies it
// by BackoffBase when the product stays within maxBackoff.
func fibonacci(n int) uint64 {
	if n <= 2 {
		return 1
	}
	var a, b uint64 = 1, 1
	for i := 3; i <= n; i++ {
		next := a + b
		if next < b { // overflow
			return b
		}
		a, b = b, next
		const overflowGuard = uint64(1) << 40
		if b > overflowGuard {
			return b
		}
	}
	return b
}
