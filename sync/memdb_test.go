// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sync_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/evoluhq/evolu-sub007/ports"
)

// memDB is a minimal in-memory ports.Sqlite, just capable enough of
// the statement shapes crdt.Store issues to exercise the sync engine
// end to end without a real SQLite driver.
type memDB struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
}

func newMemDB() *memDB { return &memDB{tables: make(map[string][]map[string]any)} }

func (d *memDB) Exec(ctx context.Context, query string, args ...any) (ports.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(query, args...)
}

func (d *memDB) exec(query string, args ...any) (ports.Result, error) {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, "CREATE TABLE"):
		name := firstField(strings.TrimPrefix(q, "CREATE TABLE IF NOT EXISTS "))
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
		return d.selectSince(args)
	case strings.HasPrefix(q, "INSERT INTO evolu_clock"):
		return d.upsertClock(args)
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

func (d *memDB) Export(ctx context.Context) ([]byte, error) { return nil, nil }

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
		"ownerId": args[0], "table_name": args[1], "row_id": args[2],
		"column_name": args[3], "value": args[4], "timestamp": args[5],
	}
	key := func(r map[string]any) string {
		return fmt.Sprintf("%v/%v/%v/%v/%s", r["ownerId"], r["table_name"], r["row_id"], r["column_name"], r["timestamp"].([]byte))
	}
	for _, existing := range d.tables["evolu_history"] {
		if key(existing) == key(row) {
			return ports.Result{}, nil
		}
	}
	d.tables["evolu_history"] = append(d.tables["evolu_history"], row)
	return ports.Result{Changes: 1}, nil
}

func (d *memDB) selectLatestTimestamp(args []any) (ports.Result, error) {
	ownerID, table, rowID, column := args[0], args[1], args[2], args[3]
	var matches []map[string]any
	for _, r := range d.tables["evolu_history"] {
		if r["ownerId"] == ownerID && r["table_name"] == table && r["row_id"] == rowID && r["column_name"] == column {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return ports.Result{}, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return string(matches[i]["timestamp"].([]byte)) > string(matches[j]["timestamp"].([]byte))
	})
	return ports.Result{Rows: []map[string]any{{"timestamp": matches[0]["timestamp"]}}}, nil
}

func (d *memDB) selectSince(args []any) (ports.Result, error) {
	ownerID, since := args[0], args[1].([]byte)
	var rows []map[string]any
	for _, r := range d.tables["evolu_history"] {
		if r["ownerId"] != ownerID {
			continue
		}
		if string(r["timestamp"].([]byte)) >= string(since) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return string(rows[i]["timestamp"].([]byte)) < string(rows[j]["timestamp"].([]byte))
	})
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
	table := firstField(strings.TrimPrefix(query, "INSERT INTO "))
	column := lastInsertColumn(query)
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

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func lastInsertColumn(q string) string {
	open := strings.Index(q, "(")
	close := strings.Index(q, ")")
	cols := strings.Split(q[open+1:close], ",")
	return strings.TrimSpace(cols[len(cols)-1])
}
