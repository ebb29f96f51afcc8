// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package evolu_test

import (
	"context"
	"strings"
	"sync"

	"github.com/evoluhq/evolu-sub007/ports"
)

// memDB is a minimal in-memory ports.Sqlite, the same shape as
// crdt's own test fake: good enough to exercise the statement
// families crdt.Store issues, not a SQL engine.
type memDB struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
}

func newMemDB() *memDB {
	return &memDB{tables: make(map[string][]map[string]any)}
}

func (d *memDB) Exec(ctx context.Context, query string, args ...any) (ports.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, "CREATE TABLE"):
		name := tableNameFromCreate(q)
		if d.tables[name] == nil {
			d.tables[name] = nil
		}
		return ports.Result{}, nil
	case strings.HasPrefix(q, "CREATE INDEX"):
		return ports.Result{}, nil
	case strings.HasPrefix(q, "INSERT INTO evolu_history"):
		return d.insertHistory(args)
	case strings.HasPrefix(q, "SELECT timestamp FROM evolu_history"):
		return d.selectLatestTimestamp(args)
	case strings.HasPrefix(q, "SELECT table_name, row_id, column_name, value, timestamp FROM evolu_history"):
		return d.selectHistorySince(args)
	case strings.HasPrefix(q, "INSERT INTO evolu_clock"):
		return d.upsertClock(args)
	case strings.HasPrefix(q, "SELECT") && strings.Contains(q, "FROM "):
		return d.selectProjection(q)
	default:
		return d.upsertProjection(q, args)
	}
}

func (d *memDB) Transaction(ctx context.Context, fn func(tx ports.Sqlite) error) error {
	d.mu.Lock()
	snapshot := d.clone()
	d.mu.Unlock()

	txDB := &memDB{tables: snapshot}
	if err := fn(txDB); err != nil {
		return err
	}

	d.mu.Lock()
	d.tables = txDB.tables
	d.mu.Unlock()
	return nil
}

func (d *memDB) Export(ctx context.Context) ([]byte, error) { return []byte("exported"), nil }

func (d *memDB) clone() map[string][]map[string]any {
	out := make(map[string][]map[string]any, len(d.tables))
	for k, rows := range d.tables {
		cp := make([]map[string]any, len(rows))
		for i, r := range rows {
			rc := make(map[string]any, len(r))
			for c, v := range r {
				rc[c] = v
			}
			cp[i] = rc
		}
		out[k] = cp
	}
	return out
}

func (d *memDB) insertHistory(args []any) (ports.Result, error) {
	row := map[string]any{
		"ownerId":     args[0],
		"table_name":  args[1],
		"row_id":      args[2],
		"column_name": args[3],
		"value":       args[4],
		"timestamp":   args[5],
	}
	d.tables["evolu_history"] = append(d.tables["evolu_history"], row)
	return ports.Result{Changes: 1}, nil
}

func (d *memDB) selectLatestTimestamp(args []any) (ports.Result, error) {
	ownerID, table, rowID, column := args[0], args[1], args[2], args[3]
	var latest map[string]any
	for _, r := range d.tables["evolu_history"] {
		if r["ownerId"] == ownerID && r["table_name"] == table && r["row_id"] == rowID && r["column_name"] == column {
			if latest == nil || string(r["timestamp"].([]byte)) > string(latest["timestamp"].([]byte)) {
				latest = r
			}
		}
	}
	if latest == nil {
		return ports.Result{}, nil
	}
	return ports.Result{Rows: []map[string]any{{"timestamp": latest["timestamp"]}}}, nil
}

func (d *memDB) selectHistorySince(args []any) (ports.Result, error) {
	ownerID, since := args[0], string(args[1].([]byte))
	var rows []map[string]any
	for _, r := range d.tables["evolu_history"] {
		if r["ownerId"] == ownerID && string(r["timestamp"].([]byte)) >= since {
			rows = append(rows, r)
		}
	}
	return ports.Result{Rows: rows}, nil
}

func (d *memDB) upsertClock(args []any) (ports.Result, error) {
	ownerID := args[0]
	for _, r := range d.tables["evolu_clock"] {
		if r["ownerId"] == ownerID {
			r["nodeId"], r["millis"], r["counter"] = args[1], args[2], args[3]
			return ports.Result{Changes: 1}, nil
		}
	}
	d.tables["evolu_clock"] = append(d.tables["evolu_clock"], map[string]any{
		"ownerId": ownerID, "nodeId": args[1], "millis": args[2], "counter": args[3],
	})
	return ports.Result{Changes: 1}, nil
}

func (d *memDB) upsertProjection(query string, args []any) (ports.Result, error) {
	table := tableNameFromInsert(query)
	column := columnNameFromProjectionInsert(query)
	id := args[0]
	value := args[1]
	for _, r := range d.tables[table] {
		if r["id"] == id {
			r[column] = value
			return ports.Result{Changes: 1}, nil
		}
	}
	d.tables[table] = append(d.tables[table], map[string]any{"id": id, column: value})
	return ports.Result{Changes: 1}, nil
}

func (d *memDB) selectProjection(query string) (ports.Result, error) {
	table := tableNameFromSelect(query)
	var rows []map[string]any
	for _, r := range d.tables[table] {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		rows = append(rows, cp)
	}
	return ports.Result{Rows: rows}, nil
}

func tableNameFromCreate(q string) string {
	fields := strings.Fields(strings.TrimPrefix(q, "CREATE TABLE IF NOT EXISTS "))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func tableNameFromInsert(q string) string {
	rest := strings.TrimPrefix(q, "INSERT INTO ")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func tableNameFromSelect(q string) string {
	idx := strings.Index(q, " FROM ")
	rest := strings.TrimSpace(q[idx+len(" FROM "):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func columnNameFromProjectionInsert(q string) string {
	open := strings.Index(q, "(")
	close := strings.Index(q, ")")
	cols := strings.Split(q[open+1:close], ",")
	return strings.TrimSpace(cols[len(cols)-1])
}

// fakeClock is a fixed ports.Clock.
type fakeClock struct{ ms int64 }

func (c fakeClock) NowMs() int64    { return c.ms }
func (c fakeClock) NowISO() string  { return "2026-07-31T00:00:00.000Z" }

// fakeRandom is a deterministic ports.Random, counting up from a seed
// so every call returns distinct bytes within a test.
type fakeRandom struct {
	mu  sync.Mutex
	ctr byte
}

func (r *fakeRandom) NextUint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctr++
	return uint32(r.ctr)
}

func (r *fakeRandom) FillBytes(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range b {
		r.ctr++
		b[i] = r.ctr
	}
}
