// Package registry implements the Session Identity Registry: the single
// source of truth for translating between opaque, interpreter-visible refs
// and stable storage identifiers, and for tracking per-entity lifecycle
// metadata within a turn.
//
// A SessionIdRegistry is owned exclusively by the turn that holds it. No
// locking is used: concurrency is single-writer per turn.
package registry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

func jsonMarshal(v any) ([]byte, error)   { return json.Marshal(v) }
func jsonUnmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Action is the lifecycle tag attached to a ref.
type Action string

const (
	ActionRead      Action = "read"
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionGenerated Action = "generated"
	ActionLinked    Action = "linked"
)

// Ref is an opaque, interpreter-visible short identifier, e.g. "recipe_1" or
// "gen_recipe_3".
type Ref string

// refPattern is the ref-detection rule: a string is a ref iff it matches
// this shape and is not itself a canonical identifier.
var refPattern = regexp.MustCompile(`^(gen_)?[a-z_]+_[0-9]+$`)

// LooksLikeRef reports whether s has ref shape. It does not consult the
// registry's own maps; callers that need the disambiguation rule ("if
// ambiguous, lookup in ref_to_uuid decides") should prefer IsKnownRef.
func LooksLikeRef(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		// Canonical identifiers always win: a UUID never has ref shape in
		// practice, but if a caller hands us something that happens to
		// parse as both, canonical wins.
		return false
	}
	return refPattern.MatchString(s)
}

// EntityType extracts the entity type portion of a ref, e.g. "recipe" for
// both "recipe_1" and "gen_recipe_1".
func EntityType(r Ref) string {
	s := strings.TrimPrefix(string(r), "gen_")
	idx := strings.LastIndex(s, "_")
	if idx < 0 {
		return s
	}
	return s[:idx]
}

// IsGenerated reports whether r is a not-yet-persisted "gen_*" ref.
func IsGenerated(r Ref) bool {
	return strings.HasPrefix(string(r), "gen_")
}

// UnknownRefError is returned when translation encounters a ref the registry
// cannot resolve. It is always surfaced, never silently dropped or guessed.
type UnknownRefError struct {
	Ref Ref
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("UNKNOWN_REF: %q", e.Ref)
}

// Code implements the taxonomy contract used by callers that want to switch
// on a stable error code (see package toolsx).
func (e *UnknownRefError) Code() string { return "UNKNOWN_REF" }

// TableSchema declares, per table, the identifier field name and which
// payload/record fields carry foreign keys into which entity type. Smart
// name handling and other per-table equivalence transforms live in the Tool
// layer (package toolsx), which consults the registry only for ref
// translation.
type TableSchema struct {
	// Name is the table/entity type name, e.g. "recipes". EntityType refs use
	// the singular form by convention ("recipe"); callers are responsible for
	// a consistent singular<->table mapping via SchemaProvider.
	Name string
	// EntityType is the ref-visible singular type name, e.g. "recipe".
	EntityType string
	// IDField is the identifier field name in raw records, e.g. "id".
	IDField string
	// ForeignKeys maps a record/payload field name to the entity type it
	// references, e.g. {"recipe_id": "recipe"}.
	ForeignKeys map[string]string
}

// SchemaProvider resolves table schemas by name. Implementations are
// supplied by the integrating application; the registry never guesses FK
// shape.
type SchemaProvider interface {
	TableSchema(table string) (TableSchema, bool)
}

// Record is a raw row or payload as returned by, or sent to, the Tool layer.
type Record map[string]any

// SessionIdRegistry is the per-turn identity registry: it owns every
// ref<->identifier mapping and lifecycle tag for the entities touched during
// one turn.
type SessionIdRegistry struct {
	schemas SchemaProvider

	refToUUID map[Ref]uuid.UUID
	uuidToRef map[uuid.UUID]Ref

	counters map[string]int // per entity type, monotonic within the session

	refLabels       map[Ref]string
	refActions      map[Ref]Action
	refTurnLastRef  map[Ref]int
	refActiveReason map[Ref]string

	// pendingArtifacts holds the full generated-not-saved content for "gen_*"
	// refs. Invariant: pendingArtifacts[ref] is set iff refActions[ref] ==
	// ActionGenerated and ref has not been promoted.
	pendingArtifacts map[Ref]Record

	// promoted maps a promoted "gen_*" ref to the persisted sibling ref
	// assigned when it was written. The gen_* ref stays resolvable (its
	// identifier mapping is retargeted to the sibling's row) until
	// Summarize evicts it.
	promoted map[Ref]Ref
}

// New constructs an empty registry bound to the given schema provider.
func New(schemas SchemaProvider) *SessionIdRegistry {
	return &SessionIdRegistry{
		schemas:          schemas,
		refToUUID:        make(map[Ref]uuid.UUID),
		uuidToRef:        make(map[uuid.UUID]Ref),
		counters:         make(map[string]int),
		refLabels:        make(map[Ref]string),
		refActions:       make(map[Ref]Action),
		refTurnLastRef:   make(map[Ref]int),
		refActiveReason:  make(map[Ref]string),
		pendingArtifacts: make(map[Ref]Record),
		promoted:         make(map[Ref]Ref),
	}
}

// nextRef allocates the next monotonic ref for entityType, optionally as a
// generated ("gen_*") ref.
func (r *SessionIdRegistry) nextRef(entityType string, generated bool) Ref {
	r.counters[entityType]++
	n := r.counters[entityType]
	if generated {
		return Ref(fmt.Sprintf("gen_%s_%d", entityType, n))
	}
	return Ref(fmt.Sprintf("%s_%d", entityType, n))
}

// refFor returns the existing ref for id if known, otherwise allocates and
// registers a new one.
func (r *SessionIdRegistry) refFor(id uuid.UUID, entityType string) (Ref, bool) {
	if existing, ok := r.uuidToRef[id]; ok {
		return existing, false
	}
	ref := r.nextRef(entityType, false)
	r.refToUUID[ref] = id
	r.uuidToRef[id] = ref
	return ref, true
}

// TranslateReadOutput assigns or reuses a ref for each record returned by a
// db_read, replaces the identifier field with the ref, and resolves any
// foreign-key fields whose identifier is already known. Unknown FK
// identifiers are lazily registered with action "linked" and no label.
func (r *SessionIdRegistry) TranslateReadOutput(records []Record, table string) ([]Record, error) {
	schema, ok := r.schemas.TableSchema(table)
	if !ok {
		return nil, fmt.Errorf("registry: unknown table %q", table)
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		translated, err := r.translateOneRead(rec, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, translated)
	}
	return out, nil
}

func (r *SessionIdRegistry) translateOneRead(rec Record, schema TableSchema) (Record, error) {
	translated := make(Record, len(rec))
	for k, v := range rec {
		translated[k] = v
	}

	rawID, ok := translated[schema.IDField]
	if !ok {
		return nil, fmt.Errorf("registry: record missing id field %q for table %q", schema.IDField, schema.Name)
	}
	id, err := toUUID(rawID)
	if err != nil {
		return nil, fmt.Errorf("registry: %s.%s: %w", schema.Name, schema.IDField, err)
	}

	ref, isNew := r.refFor(id, schema.EntityType)
	translated[schema.IDField] = string(ref)
	if isNew || r.refActions[ref] != ActionGenerated {
		r.refActions[ref] = ActionRead
	}
	if label := labelFromRecord(rec); label != "" {
		r.refLabels[ref] = label
	}

	for field, fkType := range schema.ForeignKeys {
		raw, ok := translated[field]
		if !ok || raw == nil {
			continue
		}
		fkID, err := toUUID(raw)
		if err != nil {
			continue // not a resolvable identifier; leave as-is
		}
		fkRef, isNewFK := r.refFor(fkID, fkType)
		if isNewFK {
			r.refActions[fkRef] = ActionLinked
		}
		translated[field] = string(fkRef)
	}

	return translated, nil
}

// TranslateCreateOutput assigns refs to newly created rows. When
// originalRefs is non-empty (the write is persisting prior "gen_*"
// artifacts), the existing ref is retargeted to the new identifier, a
// sibling "{type}_n" ref is assigned, and the entity is marked "created".
// Otherwise brand-new refs are allocated.
func (r *SessionIdRegistry) TranslateCreateOutput(createdIDs []string, table string, originalRefs []Ref) ([]Ref, error) {
	schema, ok := r.schemas.TableSchema(table)
	if !ok {
		return nil, fmt.Errorf("registry: unknown table %q", table)
	}
	if len(originalRefs) > 0 && len(originalRefs) != len(createdIDs) {
		return nil, fmt.Errorf("registry: originalRefs length %d does not match createdIDs length %d", len(originalRefs), len(createdIDs))
	}

	out := make([]Ref, 0, len(createdIDs))
	for i, rawID := range createdIDs {
		id, err := toUUID(rawID)
		if err != nil {
			return nil, fmt.Errorf("registry: created id %q: %w", rawID, err)
		}

		if len(originalRefs) == 0 {
			ref, _ := r.refFor(id, schema.EntityType)
			r.refActions[ref] = ActionCreated
			out = append(out, ref)
			continue
		}

		gen := originalRefs[i]
		sibling := r.nextRef(schema.EntityType, false)
		r.refToUUID[sibling] = id
		r.uuidToRef[id] = sibling
		r.refActions[sibling] = ActionCreated
		if label, ok := r.refLabels[gen]; ok {
			r.refLabels[sibling] = label
		}
		// The gen_* ref remains resolvable: retarget it to the same row
		// rather than deleting its identity mapping. Its pending artifact is
		// dropped since the entity now has a durable home; Summarize decides
		// when the gen_* ref itself is finally evicted.
		r.refToUUID[gen] = id
		delete(r.pendingArtifacts, gen)
		r.promoted[gen] = sibling
		out = append(out, sibling)
	}
	return out, nil
}

// TranslateFilters walks filter values, substituting any ref for its
// identifier. Non-ref values are left untouched. Returns UnknownRefError if
// a filter references a ref the registry cannot resolve.
func (r *SessionIdRegistry) TranslateFilters(filters []Record) ([]Record, error) {
	out := make([]Record, 0, len(filters))
	for _, f := range filters {
		translated := make(Record, len(f))
		for k, v := range f {
			tv, err := r.translateValue(v)
			if err != nil {
				return nil, err
			}
			translated[k] = tv
		}
		out = append(out, translated)
	}
	return out, nil
}

// TranslatePayload substitutes ref values in known FK fields of a write
// payload destined for table.
func (r *SessionIdRegistry) TranslatePayload(data Record, table string) (Record, error) {
	schema, ok := r.schemas.TableSchema(table)
	if !ok {
		return nil, fmt.Errorf("registry: unknown table %q", table)
	}
	out := make(Record, len(data))
	for k, v := range data {
		if _, isFK := schema.ForeignKeys[k]; !isFK {
			out[k] = v
			continue
		}
		tv, err := r.translateValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = tv
	}
	return out, nil
}

// TranslateValue substitutes ref for identifier in a single filter/payload
// value (recursing into lists), the primitive both TranslateFilters and
// TranslatePayload build on. Exported so callers working directly with a
// flattened filter DSL (package toolsx) can translate one value without
// round-tripping through a Record.
func (r *SessionIdRegistry) TranslateValue(v any) (any, error) {
	return r.translateValue(v)
}

func (r *SessionIdRegistry) translateValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !LooksLikeRef(val) {
			return val, nil
		}
		ref := Ref(val)
		id, ok := r.refToUUID[ref]
		if !ok {
			return nil, &UnknownRefError{Ref: ref}
		}
		return id.String(), nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			tv, err := r.translateValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = tv
		}
		return out, nil
	default:
		return v, nil
	}
}

// GetEntityData is the unified data-access API: it returns the pending
// artifact for ref if one exists, or nil otherwise. This is the only
// sanctioned way for any other component to ask whether a ref's data is
// available in-memory.
func (r *SessionIdRegistry) GetEntityData(ref Ref) (Record, bool) {
	if data, ok := r.pendingArtifacts[ref]; ok {
		return data, true
	}
	return nil, false
}

// UpdateEntityData replaces the content of an existing pending artifact
// in-place, preserving the ref and refreshing its label if the content's
// name changed.
func (r *SessionIdRegistry) UpdateEntityData(ref Ref, content Record) bool {
	if _, ok := r.pendingArtifacts[ref]; !ok {
		return false
	}
	r.pendingArtifacts[ref] = content
	if label := labelFromRecord(content); label != "" {
		r.refLabels[ref] = label
	}
	return true
}

// RegisterGenerated registers a brand-new "gen_*" artifact and returns its
// ref. Called by the Act node when a generate step produces structured
// content.
func (r *SessionIdRegistry) RegisterGenerated(entityType string, content Record) Ref {
	ref := r.nextRef(entityType, true)
	r.pendingArtifacts[ref] = content
	r.refActions[ref] = ActionGenerated
	if label := labelFromRecord(content); label != "" {
		r.refLabels[ref] = label
	}
	return ref
}

// Mark sets the lifecycle action for ref directly (used by Act/Tool-layer
// code paths that don't go through Translate*).
func (r *SessionIdRegistry) Mark(ref Ref, action Action) {
	r.refActions[ref] = action
}

// Touch records that ref was referenced at the given turn. The recorded
// turn number is non-decreasing.
func (r *SessionIdRegistry) Touch(ref Ref, turnID int) {
	if cur, ok := r.refTurnLastRef[ref]; ok && cur >= turnID {
		return
	}
	r.refTurnLastRef[ref] = turnID
}

// Retain attaches a sticky "still relevant" note to an older ref, keeping it
// in the Long Term Memory context section regardless of recency.
func (r *SessionIdRegistry) Retain(ref Ref, reason string) {
	r.refActiveReason[ref] = reason
}

// Drop removes any retention note for ref. It does not delete the ref's
// identity mapping; refs are never destroyed mid-turn.
func (r *SessionIdRegistry) Drop(ref Ref) {
	delete(r.refActiveReason, ref)
}

// Label returns the human-readable label for ref, if any.
func (r *SessionIdRegistry) Label(ref Ref) string { return r.refLabels[ref] }

// LastAction returns the lifecycle action last recorded for ref.
func (r *SessionIdRegistry) LastAction(ref Ref) (Action, bool) {
	a, ok := r.refActions[ref]
	return a, ok
}

// LastTurn returns the turn at which ref was last referenced.
func (r *SessionIdRegistry) LastTurn(ref Ref) (int, bool) {
	t, ok := r.refTurnLastRef[ref]
	return t, ok
}

// ActiveReason returns the sticky retention reason for ref, if any.
func (r *SessionIdRegistry) ActiveReason(ref Ref) (string, bool) {
	reason, ok := r.refActiveReason[ref]
	return reason, ok
}

// AllRefs returns every ref currently known to the registry. Order is
// unspecified; callers that need stable ordering should sort.
func (r *SessionIdRegistry) AllRefs() []Ref {
	refs := make([]Ref, 0, len(r.refToUUID)+len(r.pendingArtifacts))
	for ref := range r.refToUUID {
		refs = append(refs, ref)
	}
	for ref := range r.pendingArtifacts {
		refs = append(refs, ref)
	}
	return refs
}

// EvictGenerated removes a promoted or explicitly dropped "gen_*" artifact's
// pending data. Called by Summarize; it is a no-op if ref still carries
// live pending data (i.e. was never promoted/dropped).
func (r *SessionIdRegistry) EvictGenerated(ref Ref) {
	if !r.IsPromoted(ref) && r.refActions[ref] != ActionDeleted {
		return
	}
	delete(r.pendingArtifacts, ref)
}

func labelFromRecord(rec Record) string {
	for _, key := range []string{"name", "title", "label"} {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func toUUID(v any) (uuid.UUID, error) {
	switch val := v.(type) {
	case uuid.UUID:
		return val, nil
	case string:
		return uuid.Parse(val)
	case fmt.Stringer:
		return uuid.Parse(val.String())
	default:
		return uuid.UUID{}, fmt.Errorf("value %v (%T) is not a recognizable identifier", v, v)
	}
}

// PromotedSibling returns the persisted ref a "gen_*" ref was promoted to,
// if any.
func (r *SessionIdRegistry) PromotedSibling(ref Ref) (Ref, bool) {
	sibling, ok := r.promoted[ref]
	return sibling, ok
}

// IsPromoted reports whether ref is a generated ref that has since been
// persisted.
func (r *SessionIdRegistry) IsPromoted(ref Ref) bool {
	_, ok := r.promoted[ref]
	return ok
}

// snapshot is the JSON-serializable form of a SessionIdRegistry, used by
// Serialize/Deserialize to survive across turns.
type snapshot struct {
	RefToUUID        map[Ref]uuid.UUID `json:"ref_to_uuid"`
	Counters         map[string]int    `json:"counters"`
	RefLabels        map[Ref]string    `json:"ref_labels"`
	RefActions       map[Ref]Action    `json:"ref_actions"`
	RefTurnLastRef   map[Ref]int       `json:"ref_turn_last_ref"`
	RefActiveReason  map[Ref]string    `json:"ref_active_reason"`
	PendingArtifacts map[Ref]Record    `json:"pending_artifacts"`
	Promoted         map[Ref]Ref       `json:"promoted"`
}

// Serialize captures the registry's observable state for durable storage.
func (r *SessionIdRegistry) Serialize() ([]byte, error) {
	return jsonMarshal(snapshot{
		RefToUUID:        r.refToUUID,
		Counters:         r.counters,
		RefLabels:        r.refLabels,
		RefActions:       r.refActions,
		RefTurnLastRef:   r.refTurnLastRef,
		RefActiveReason:  r.refActiveReason,
		PendingArtifacts: r.pendingArtifacts,
		Promoted:         r.promoted,
	})
}

// Deserialize restores a registry previously produced by Serialize, bound to
// the given schema provider (schemas are not themselves serialized).
func Deserialize(data []byte, schemas SchemaProvider) (*SessionIdRegistry, error) {
	var snap snapshot
	if err := jsonUnmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("registry: deserialize: %w", err)
	}
	r := New(schemas)
	if snap.RefToUUID != nil {
		r.refToUUID = snap.RefToUUID
	}
	if snap.Counters != nil {
		r.counters = snap.Counters
	}
	if snap.RefLabels != nil {
		r.refLabels = snap.RefLabels
	}
	if snap.RefActions != nil {
		r.refActions = snap.RefActions
	}
	if snap.RefTurnLastRef != nil {
		r.refTurnLastRef = snap.RefTurnLastRef
	}
	if snap.RefActiveReason != nil {
		r.refActiveReason = snap.RefActiveReason
	}
	if snap.PendingArtifacts != nil {
		r.pendingArtifacts = snap.PendingArtifacts
	}
	if snap.Promoted != nil {
		r.promoted = snap.Promoted
	}
	r.uuidToRef = make(map[uuid.UUID]Ref, len(r.refToUUID))
	for ref, id := range r.refToUUID {
		if _, isPromoted := r.promoted[ref]; isPromoted {
			continue // uuidToRef must point at the canonical (sibling) ref
		}
		r.uuidToRef[id] = ref
	}
	for _, sibling := range r.promoted {
		if id, ok := r.refToUUID[sibling]; ok {
			r.uuidToRef[id] = sibling
		}
	}
	return r, nil
}
