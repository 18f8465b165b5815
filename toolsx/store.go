package toolsx

import (
	"context"
	"errors"

	"github.com/jv92admin/alfred/registry"
)

// Store is the external relational collaborator: the concrete schema and
// access-control policy live outside this package entirely. Production
// callers supply their own implementation; package toolsx/memstore ships an
// in-memory reference implementation for tests and the CLI harness.
//
// Store implementations return *Error directly when they can attribute a
// failure to one of the closed codes (FK_VIOLATION, CONSTRAINT_VIOLATION,
// NOT_FOUND). An error that reports its own code through a Code() string
// method (such as registry.UnknownRefError) keeps that code; any other
// error is treated by Tools as STORE_UNAVAILABLE.
type Store interface {
	// Read returns raw rows (with canonical identifiers, not refs) matching
	// filters. An empty filter set must return the full authorized set.
	Read(ctx context.Context, table string, filters []Filter) ([]registry.Record, error)
	// Create inserts payloads and returns their canonical identifiers in the
	// same order.
	Create(ctx context.Context, table string, payloads []registry.Record) ([]string, error)
	// Update applies payload to every row matching filters and returns the
	// number of rows affected.
	Update(ctx context.Context, table string, filters []Filter, payload registry.Record) (int, error)
	// Delete removes every row matching filters and returns the number of
	// rows affected.
	Delete(ctx context.Context, table string, filters []Filter) (int, error)
}

// NameResolver is an optional capability a Store may implement to support
// the "best match lookup" smart name handling mode: resolving a free-text
// name to a canonical identifier on tables where substring matching on name
// is not a safe substitute for equality (ie. identity lookup must be
// precise, not fuzzy).
type NameResolver interface {
	ResolveName(ctx context.Context, table, field, name string) (id string, found bool, err error)
}

// Result is the structured outcome of a Tool layer operation.
type Result struct {
	OK       bool
	Refs     []registry.Ref
	Rows     []registry.Record
	Affected int

	Code    Code
	Message string
}

func failResult(err error) Result {
	var te *Error
	if errors.As(err, &te) {
		return Result{OK: false, Code: te.Code, Message: te.Message}
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return Result{OK: false, Code: Code(coded.Code()), Message: err.Error()}
	}
	return Result{OK: false, Code: CodeStoreUnavailable, Message: err.Error()}
}
