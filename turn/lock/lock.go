// Package lock defines the per-user advisory lock RunTurn holds for a
// turn's duration, plus two implementations: memlock (single process) and
// redislock (cross-process, via SET NX PX).
package lock

import "context"

// Locker matches turn.Lock's shape; kept here so implementations don't need
// to import the turn package just to satisfy its interface.
type Locker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}
