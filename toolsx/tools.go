package toolsx

import (
	"context"

	"github.com/jv92admin/alfred/registry"
)

// Tools is the Tool layer: it exposes db_read/db_create/db_update/db_delete
// to the Act node, translating every ref through the registry and applying
// per-table smart name handling before delegating to Store.
type Tools struct {
	store   Store
	reg     *registry.SessionIdRegistry
	schemas registry.SchemaProvider
	names   NameRules
}

// New constructs a Tool layer bound to a store, the turn's registry, the
// shared schema provider, and optional smart-name rules.
func New(store Store, reg *registry.SessionIdRegistry, schemas registry.SchemaProvider, names NameRules) *Tools {
	if names == nil {
		names = NameRules{}
	}
	return &Tools{store: store, reg: reg, schemas: schemas, names: names}
}

func (t *Tools) idField(table string) string {
	if schema, ok := t.schemas.TableSchema(table); ok {
		return schema.IDField
	}
	return "id"
}

// Read implements db_read. A read referring exclusively to refs with
// pending data is served from the registry without touching the store; any
// mixed case (any ref missing pending data) goes to the store.
func (t *Tools) Read(ctx context.Context, table string, filters []Filter) Result {
	if err := ValidateAll(filters); err != nil {
		return failResult(err)
	}

	filters, err := t.applyNameTransforms(ctx, table, filters)
	if err != nil {
		return failResult(err)
	}

	if rows, ok := t.rerouteFromPending(table, filters); ok {
		return Result{OK: true, Rows: rows}
	}

	storeFilters, err := t.translateFilterValues(filters)
	if err != nil {
		return failResult(err)
	}

	raw, err := t.store.Read(ctx, table, storeFilters)
	if err != nil {
		return failResult(err)
	}
	rows, err := t.reg.TranslateReadOutput(raw, table)
	if err != nil {
		return failResult(err)
	}
	return Result{OK: true, Rows: rows}
}

// rerouteFromPending detects the "refers exclusively to refs" case: every
// filter targets the table's identifier field with "=" or "in", and every
// named ref has data available via registry.GetEntityData. It returns
// ok=false for any other shape, signalling the caller to fall through to the
// store.
func (t *Tools) rerouteFromPending(table string, filters []Filter) ([]registry.Record, bool) {
	if len(filters) == 0 {
		return nil, false
	}
	idField := t.idField(table)

	var refs []registry.Ref
	for _, f := range filters {
		if f.Field != idField {
			return nil, false
		}
		switch f.Op {
		case OpEq:
			s, ok := f.Value.(string)
			if !ok || !registry.LooksLikeRef(s) {
				return nil, false
			}
			refs = append(refs, registry.Ref(s))
		case OpIn:
			list, ok := f.Value.([]any)
			if !ok {
				return nil, false
			}
			for _, item := range list {
				s, ok := item.(string)
				if !ok || !registry.LooksLikeRef(s) {
					return nil, false
				}
				refs = append(refs, registry.Ref(s))
			}
		default:
			return nil, false
		}
	}

	rows := make([]registry.Record, 0, len(refs))
	for _, ref := range refs {
		data, ok := t.reg.GetEntityData(ref)
		if !ok {
			return nil, false // mixed case: at least one ref has no pending data
		}
		row := make(registry.Record, len(data)+1)
		for k, v := range data {
			row[k] = v
		}
		row[idField] = string(ref)
		rows = append(rows, row)
	}
	return rows, true
}

func (t *Tools) translateFilterValues(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		tv, err := t.reg.TranslateValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Filter{Field: f.Field, Op: f.Op, Value: tv}
	}
	return out, nil
}

// Create implements db_create. When originalRefs is non-empty, the write is
// persisting prior "gen_*" artifacts: each created row's ref promotes the
// matching gen_* ref (registry.TranslateCreateOutput).
func (t *Tools) Create(ctx context.Context, table string, payloads []registry.Record, originalRefs []registry.Ref) Result {
	translated := make([]registry.Record, 0, len(payloads))
	for _, p := range payloads {
		tp, err := t.reg.TranslatePayload(p, table)
		if err != nil {
			return failResult(err)
		}
		translated = append(translated, tp)
	}

	createdIDs, err := t.store.Create(ctx, table, translated)
	if err != nil {
		return failResult(err)
	}

	refs, err := t.reg.TranslateCreateOutput(createdIDs, table, originalRefs)
	if err != nil {
		return failResult(err)
	}
	return Result{OK: true, Refs: refs}
}

// Update implements db_update.
func (t *Tools) Update(ctx context.Context, table string, filters []Filter, payload registry.Record) Result {
	if err := ValidateAll(filters); err != nil {
		return failResult(err)
	}
	storeFilters, err := t.translateFilterValues(filters)
	if err != nil {
		return failResult(err)
	}
	translatedPayload, err := t.reg.TranslatePayload(payload, table)
	if err != nil {
		return failResult(err)
	}
	affected, err := t.store.Update(ctx, table, storeFilters, translatedPayload)
	if err != nil {
		return failResult(err)
	}
	return Result{OK: true, Affected: affected}
}

// Delete implements db_delete.
func (t *Tools) Delete(ctx context.Context, table string, filters []Filter) Result {
	if err := ValidateAll(filters); err != nil {
		return failResult(err)
	}
	storeFilters, err := t.translateFilterValues(filters)
	if err != nil {
		return failResult(err)
	}
	affected, err := t.store.Delete(ctx, table, storeFilters)
	if err != nil {
		return failResult(err)
	}
	return Result{OK: true, Affected: affected}
}
