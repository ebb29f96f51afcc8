// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import "sync"

// QueryHandle identifies a query registered with Store.CreateQuery.
type QueryHandle string

// subscriptionRegistry fans out table-change notifications to the
// queries that depend on them. A query→table dependency is a simple
// many-to-many relation (spec §9); subscribers are weak in the sense
// that unsubscribing drops the callback without the registry ever
// owning caller state.
type subscriptionRegistry struct {
	mu       sync.Mutex
	queries  map[QueryHandle]Query
	next     int
	handlers map[QueryHandle][]func()
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		queries:  make(map[QueryHandle]Query),
		handlers: make(map[QueryHandle][]func()),
	}
}

func (r *subscriptionRegistry) createQuery(q Query) QueryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle := QueryHandle(formatQueryHandle(r.next))
	r.queries[handle] = q
	return handle
}

func (r *subscriptionRegistry) lookup(handle QueryHandle) (Query, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[handle]
	return q, ok
}

// subscribe registers cb to run whenever a commit touches one of
// handle's query's tables. It returns an unsubscribe func.
func (r *subscriptionRegistry) subscribe(handle QueryHandle, cb func()) func() {
	r.mu.Lock()
	r.handlers[handle] = append(r.handlers[handle], cb)
	idx := len(r.handlers[handle]) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		handlers := r.handlers[handle]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// notify runs every subscriber whose query depends on at least one of
// the given tables.
func (r *subscriptionRegistry) notify(tables map[string]struct{}) {
	r.mu.Lock()
	type pending struct {
		handle QueryHandle
		cbs    []func()
	}
	var fire []pending
	for handle, q := range r.queries {
		for _, t := range q.Tables {
			if _, touched := tables[t]; touched {
				fire = append(fire, pending{handle: handle, cbs: append([]func(){}, r.handlers[handle]...)})
				break
			}
		}
	}
	r.mu.Unlock()

	for _, p := range fire {
		for _, cb := range p.cbs {
			if cb != nil {
				cb()
			}
		}
	}
}

func formatQueryHandle(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "q0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "q" + string(buf)
}
