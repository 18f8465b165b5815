// Package memstore provides an in-memory toolsx.Store reference
// implementation, used by tests and the CLI harness. Production callers
// supply their own Store backed by the application's relational schema.
package memstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/toolsx"
)

// Store is a trivial table-name -> rows map guarded by no concurrency
// control beyond what the single-writer-per-turn contract already provides.
type Store struct {
	idField string
	tables  map[string]map[string]registry.Record // table -> id -> row
}

// New constructs an empty store. idField is the identifier field name used
// uniformly across tables (defaults to "id" when empty).
func New(idField string) *Store {
	if idField == "" {
		idField = "id"
	}
	return &Store{idField: idField, tables: make(map[string]map[string]registry.Record)}
}

// Seed inserts a row directly, bypassing Create, for test fixtures. Returns
// the assigned canonical identifier.
func (s *Store) Seed(table string, row registry.Record) string {
	id := uuid.New().String()
	row = cloneRecord(row)
	row[s.idField] = id
	s.rows(table)[id] = row
	return id
}

func (s *Store) rows(table string) map[string]registry.Record {
	if s.tables[table] == nil {
		s.tables[table] = make(map[string]registry.Record)
	}
	return s.tables[table]
}

func (s *Store) Read(_ context.Context, table string, filters []toolsx.Filter) ([]registry.Record, error) {
	var out []registry.Record
	for _, row := range s.rows(table) {
		if matches(row, filters) {
			out = append(out, cloneRecord(row))
		}
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, table string, payloads []registry.Record) ([]string, error) {
	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		id := uuid.New().String()
		row := cloneRecord(p)
		row[s.idField] = id
		s.rows(table)[id] = row
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Update(_ context.Context, table string, filters []toolsx.Filter, payload registry.Record) (int, error) {
	n := 0
	for id, row := range s.rows(table) {
		if !matches(row, filters) {
			continue
		}
		updated := cloneRecord(row)
		for k, v := range payload {
			updated[k] = v
		}
		updated[s.idField] = id
		s.rows(table)[id] = updated
		n++
	}
	return n, nil
}

func (s *Store) Delete(_ context.Context, table string, filters []toolsx.Filter) (int, error) {
	n := 0
	for id, row := range s.rows(table) {
		if matches(row, filters) {
			delete(s.rows(table), id)
			n++
		}
	}
	return n, nil
}

// ResolveName implements toolsx.NameResolver with an exact, case-insensitive
// match on field, returning the first hit.
func (s *Store) ResolveName(_ context.Context, table, field, name string) (string, bool, error) {
	for id, row := range s.rows(table) {
		if v, ok := row[field].(string); ok && strings.EqualFold(v, name) {
			return id, true, nil
		}
	}
	return "", false, nil
}

func matches(row registry.Record, filters []toolsx.Filter) bool {
	for _, f := range filters {
		if !matchOne(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matchOne(actual any, f toolsx.Filter) bool {
	switch f.Op {
	case toolsx.OpIsNull:
		return actual == nil
	case toolsx.OpIsNotNull:
		return actual != nil
	case toolsx.OpEq:
		return compareEqual(actual, f.Value)
	case toolsx.OpNeq:
		return !compareEqual(actual, f.Value)
	case toolsx.OpIn:
		list, _ := f.Value.([]any)
		for _, v := range list {
			if compareEqual(actual, v) {
				return true
			}
		}
		return false
	case toolsx.OpNotIn:
		return !compareEqual(actual, f.Value)
	case toolsx.OpIlike:
		a, _ := actual.(string)
		needle, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(a), strings.ToLower(strings.Trim(needle, "%")))
	case toolsx.OpContains:
		list, ok := actual.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if compareEqual(v, f.Value) {
				return true
			}
		}
		return false
	case toolsx.OpGt, toolsx.OpLt, toolsx.OpGte, toolsx.OpLte:
		return compareOrdered(actual, f.Value, f.Op)
	case toolsx.OpSimilar:
		// Semantic similarity has no meaningful in-memory analogue; treat as
		// a substring match so tests exercising "similar" filters still see
		// deterministic behavior rather than silently matching everything.
		a, _ := actual.(string)
		needle, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(a), strings.ToLower(needle))
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(a, b any, op toolsx.Op) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case toolsx.OpGt:
		return af > bf
	case toolsx.OpLt:
		return af < bf
	case toolsx.OpGte:
		return af >= bf
	case toolsx.OpLte:
		return af <= bf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func cloneRecord(r registry.Record) registry.Record {
	out := make(registry.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
