package toolsx

import (
	"context"
	"fmt"
)

// NameMode selects the equivalence transform applied to an equality filter
// on a table's declared name field. These transforms are declared per
// table, never inferred.
type NameMode string

const (
	// NameModeILike rewrites `name = "X"` into `name ilike "%X%"`, suited to
	// recipe-like tables where approximate title matches are the common case.
	NameModeILike NameMode = "ilike_wrap"
	// NameModeLookup rewrites `name = "X"` into an identifier filter by
	// resolving X to a canonical id via the Store's NameResolver, suited to
	// item-like tables (e.g. pantry items) where fuzzy matching would risk
	// operating on the wrong row.
	NameModeLookup NameMode = "best_match_lookup"
)

// NameRule declares the equivalence transform for one table's name field.
type NameRule struct {
	Table string
	Field string
	Mode  NameMode
}

// NameRules is a table -> NameRule lookup, consulted before translation.
type NameRules map[string]NameRule

func (t *Tools) applyNameTransforms(ctx context.Context, table string, filters []Filter) ([]Filter, error) {
	rule, ok := t.names[table]
	if !ok {
		return filters, nil
	}
	out := make([]Filter, len(filters))
	copy(out, filters)
	for i, f := range out {
		if f.Field != rule.Field || f.Op != OpEq {
			continue
		}
		name, ok := f.Value.(string)
		if !ok {
			continue
		}
		switch rule.Mode {
		case NameModeILike:
			out[i] = Filter{Field: f.Field, Op: OpIlike, Value: fmt.Sprintf("%%%s%%", name)}
		case NameModeLookup:
			resolver, ok := t.store.(NameResolver)
			if !ok {
				return nil, &Error{Code: CodeValidationError, Message: fmt.Sprintf("table %q declares best_match_lookup but store has no NameResolver", table)}
			}
			id, found, err := resolver.ResolveName(ctx, table, rule.Field, name)
			if err != nil {
				return nil, &Error{Code: CodeStoreUnavailable, Message: "name resolution failed", Cause: err}
			}
			if !found {
				// No match: produce a filter guaranteed to return zero rows.
				// A read that finds zero rows is complete, not an error.
				out[i] = Filter{Field: t.idField(table), Op: OpEq, Value: ""}
				continue
			}
			out[i] = Filter{Field: t.idField(table), Op: OpEq, Value: id}
		}
	}
	return out, nil
}
