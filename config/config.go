// Package config holds the recognized configuration options for the turn
// core (spec §6), loaded from environment variables with typed defaults. No
// third-party config library is used: ten scalar fields with env-var
// overrides don't justify one (see DESIGN.md).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the closed set of recognized options. Every field here has a
// name and default mirroring spec.md §6 exactly; nothing else is read from
// the environment.
type Config struct {
	// RecentTurnsWindow is how many recent turns count as "active" for
	// entity tiering (default 2).
	RecentTurnsWindow int
	// FullDetailTurns is how many turns are kept verbatim in the
	// conversation tail before compressing into history_summary (default 3).
	FullDetailTurns int
	// MaxToolCallsPerStep bounds the Act loop per step (default 5).
	MaxToolCallsPerStep int
	// MaxStepsPlan bounds plan-mode step count (default 8).
	MaxStepsPlan int
	// MaxStepsQuick bounds quick-mode step count (default 1).
	MaxStepsQuick int
	// JobRetention is how long a completed job's output survives (default 24h).
	JobRetention time.Duration
	// StepDeadline bounds one step's wall-clock budget.
	StepDeadline time.Duration
	// TurnDeadline bounds a whole turn's wall-clock budget.
	TurnDeadline time.Duration
	// QuickModeConfidenceFloor is the minimum Understand confidence that
	// routes straight to QuickAct without Think's veto (default "high").
	QuickModeConfidenceFloor string
	// GroupParallelism bounds same-group step fan-out (default 4).
	GroupParallelism int
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		RecentTurnsWindow:        2,
		FullDetailTurns:          3,
		MaxToolCallsPerStep:      5,
		MaxStepsPlan:             8,
		MaxStepsQuick:            1,
		JobRetention:             24 * time.Hour,
		StepDeadline:             20 * time.Second,
		TurnDeadline:             90 * time.Second,
		QuickModeConfidenceFloor: "high",
		GroupParallelism:         4,
	}
}

// FromEnv overlays environment variable overrides onto Default(). Unset or
// unparseable variables fall back to the default rather than erroring, so a
// partially configured environment never blocks startup.
func FromEnv() Config {
	c := Default()
	if v, ok := lookupInt("ALFRED_RECENT_TURNS_WINDOW"); ok {
		c.RecentTurnsWindow = v
	}
	if v, ok := lookupInt("ALFRED_FULL_DETAIL_TURNS"); ok {
		c.FullDetailTurns = v
	}
	if v, ok := lookupInt("ALFRED_MAX_TOOL_CALLS_PER_STEP"); ok {
		c.MaxToolCallsPerStep = v
	}
	if v, ok := lookupInt("ALFRED_MAX_STEPS_PLAN"); ok {
		c.MaxStepsPlan = v
	}
	if v, ok := lookupInt("ALFRED_MAX_STEPS_QUICK"); ok {
		c.MaxStepsQuick = v
	}
	if v, ok := lookupDuration("ALFRED_JOB_RETENTION"); ok {
		c.JobRetention = v
	}
	if v, ok := lookupDuration("ALFRED_STEP_DEADLINE_MS"); ok {
		c.StepDeadline = v
	}
	if v, ok := lookupDuration("ALFRED_TURN_DEADLINE_MS"); ok {
		c.TurnDeadline = v
	}
	if v := os.Getenv("ALFRED_QUICK_MODE_CONFIDENCE_FLOOR"); v != "" {
		c.QuickModeConfidenceFloor = v
	}
	if v, ok := lookupInt("ALFRED_GROUP_PARALLELISM"); ok {
		c.GroupParallelism = v
	}
	return c
}

func lookupInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupDuration(name string) (time.Duration, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
