// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/evoluhq/evolu-sub007/ports"
)

// memStore is a process-local ports.Sqlite: an in-memory stand-in for
// the concrete SQLite driver the spec's own Non-goals put out of
// scope. It is enough to run relay.Storage end to end for local
// development and the zero-to-aha path; a production deployment
// swaps this for a real driver at this one seam without touching
// relay.Storage.
type memStore struct {
	mu         sync.Mutex
	writeKeys  map[string][]byte
	usage      map[string]uint64
	messages   map[string][]storedMessage
	timestamps map[string]map[string]struct{}
}

type storedMessage struct {
	timestamp  []byte
	ciphertext []byte
}

func newMemStore() *memStore {
	return &memStore{
		writeKeys:  make(map[string][]byte),
		usage:      make(map[string]uint64),
		messages:   make(map[string][]storedMessage),
		timestamps: make(map[string]map[string]struct{}),
	}
}

func (d *memStore) Exec(ctx context.Context, query string, args ...any) (ports.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(query, args...)
}

func (d *memStore) exec(query string, args ...any) (ports.Result, error) {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, "CREATE TABLE"):
		return ports.Result{}, nil
	case strings.HasPrefix(q, "SELECT key FROM evolu_writeKey"):
		owner := ownerKey(args[0])
		key, ok := d.writeKeys[owner]
		if !ok {
			return ports.Result{}, nil
		}
		return ports.Result{Rows: []map[string]any{{"key": key}}}, nil
	case strings.HasPrefix(q, "INSERT INTO evolu_writeKey"):
		owner := ownerKey(args[0])
		if _, ok := d.writeKeys[owner]; ok {
			return ports.Result{Changes: 0}, nil
		}
		d.writeKeys[owner] = args[1].([]byte)
		return ports.Result{Changes: 1}, nil
	case strings.HasPrefix(q, "SELECT storedBytes FROM evolu_usage"):
		owner := ownerKey(args[0])
		v, ok := d.usage[owner]
		if !ok {
			return ports.Result{}, nil
		}
		return ports.Result{Rows: []map[string]any{{"storedBytes": v}}}, nil
	case strings.HasPrefix(q, "INSERT INTO evolu_usage"):
		owner := ownerKey(args[0])
		d.usage[owner] += toUint64(args[1])
		return ports.Result{Changes: 1}, nil
	case strings.HasPrefix(q, "INSERT INTO evolu_message"):
		owner := ownerKey(args[0])
		ts := args[1].([]byte)
		ciphertext := args[2].([]byte)
		for _, m := range d.messages[owner] {
			if string(m.timestamp) == string(ts) {
				return ports.Result{Changes: 0}, nil
			}
		}
		d.messages[owner] = append(d.messages[owner], storedMessage{timestamp: ts, ciphertext: ciphertext})
		return ports.Result{Changes: 1}, nil
	case strings.HasPrefix(q, "INSERT INTO evolu_timestamp"):
		owner := ownerKey(args[0])
		ts := string(args[1].([]byte))
		if d.timestamps[owner] == nil {
			d.timestamps[owner] = make(map[string]struct{})
		}
		d.timestamps[owner][ts] = struct{}{}
		return ports.Result{Changes: 1}, nil
	case strings.HasPrefix(q, "SELECT timestamp, ciphertext FROM evolu_message"):
		owner := ownerKey(args[0])
		since := string(args[1].([]byte))
		var rows []map[string]any
		for _, m := range d.messages[owner] {
			if string(m.timestamp) >= since {
				rows = append(rows, map[string]any{"timestamp": m.timestamp, "ciphertext": m.ciphertext})
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			return string(rows[i]["timestamp"].([]byte)) < string(rows[j]["timestamp"].([]byte))
		})
		return ports.Result{Rows: rows}, nil
	case strings.HasPrefix(q, "SELECT timestamp FROM evolu_message"):
		owner := ownerKey(args[0])
		rows := make([]map[string]any, len(d.messages[owner]))
		for i, m := range d.messages[owner] {
			rows[i] = map[string]any{"timestamp": m.timestamp}
		}
		return ports.Result{Rows: rows}, nil
	case strings.HasPrefix(q, "SELECT timestamp FROM evolu_timestamp"):
		owner := ownerKey(args[0])
		rows := make([]map[string]any, 0, len(d.timestamps[owner]))
		for ts := range d.timestamps[owner] {
			rows = append(rows, map[string]any{"timestamp": []byte(ts)})
		}
		return ports.Result{Rows: rows}, nil
	case strings.HasPrefix(q, "DELETE FROM"):
		table := strings.Fields(strings.TrimPrefix(q, "DELETE FROM "))[0]
		owner := ownerKey(args[0])
		switch table {
		case "evolu_timestamp":
			delete(d.timestamps, owner)
		case "evolu_message":
			delete(d.messages, owner)
		case "evolu_writeKey":
			delete(d.writeKeys, owner)
		case "evolu_usage":
			delete(d.usage, owner)
		}
		return ports.Result{Changes: 1}, nil
	default:
		return ports.Result{}, fmt.Errorf("memstore: unhandled query: %s", q)
	}
}

func (d *memStore) Transaction(ctx context.Context, fn func(tx ports.Sqlite) error) error {
	d.mu.Lock()
	snapshot := d.clone()
	d.mu.Unlock()

	if err := fn(snapshot); err != nil {
		return err
	}

	d.mu.Lock()
	d.writeKeys = snapshot.writeKeys
	d.usage = snapshot.usage
	d.messages = snapshot.messages
	d.timestamps = snapshot.timestamps
	d.mu.Unlock()
	return nil
}

func (d *memStore) Export(ctx context.Context) ([]byte, error) { return nil, nil }

func (d *memStore) clone() *memStore {
	cp := newMemStore()
	for k, v := range d.writeKeys {
		cp.writeKeys[k] = v
	}
	for k, v := range d.usage {
		cp.usage[k] = v
	}
	for k, msgs := range d.messages {
		cp.messages[k] = append([]storedMessage(nil), msgs...)
	}
	for k, set := range d.timestamps {
		cp.timestamps[k] = make(map[string]struct{}, len(set))
		for ts := range set {
			cp.timestamps[k][ts] = struct{}{}
		}
	}
	return cp
}

func ownerKey(v any) string { return fmt.Sprintf("%v", v) }

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case int:
		return uint64(n)
	default:
		return 0
	}
}
