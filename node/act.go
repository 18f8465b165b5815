package node

import (
	"context"
	"sort"

	"github.com/jv92admin/alfred/step"
)

// RunAct drives the whole Act-loop over a plan: steps execute group by
// group in ascending order; same-group steps have no ordering dependency
// and are dispatched via Executor.RunGroup. Results are recorded into
// store as each group completes so later groups' prompts can see them.
func RunAct(ctx context.Context, exec *step.Executor, store *step.Store, turnID int, plan []step.Step, prompt step.PromptFunc) ([]*step.Result, error) {
	groups := groupSteps(plan)

	var all []*step.Result
	for _, groupSteps := range groups {
		results, err := exec.RunGroup(ctx, turnID, groupSteps, prompt)
		if err != nil {
			return all, err
		}
		for _, r := range results {
			if r != nil {
				store.Put(turnID, r)
			}
		}
		all = append(all, results...)
	}
	return all, nil
}

// groupSteps buckets steps by Group and returns the buckets ordered
// ascending by group number.
func groupSteps(plan []step.Step) [][]step.Step {
	byGroup := make(map[int][]step.Step)
	for _, s := range plan {
		byGroup[s.Group] = append(byGroup[s.Group], s)
	}
	var keys []int
	for g := range byGroup {
		keys = append(keys, g)
	}
	sort.Ints(keys)
	out := make([][]step.Step, 0, len(keys))
	for _, g := range keys {
		out = append(out, byGroup[g])
	}
	return out
}
