package promptctx

import "github.com/jv92admin/alfred/step"

// ActView is what the Act node's prompt shows for the step currently being
// executed: the step itself, prior-step results (with full artifacts for
// generate->write flows), and the step-type-relevant JSON-schema slice.
//
// spec.md §4.7 calls out a historical bug where only write steps received
// generated artifacts; the contract here is that read, write, and analyze
// steps all receive them, so ArtifactsForStep is populated regardless of
// current.Type.
type ActView struct {
	Current           step.Step
	PriorResults      []*step.Result
	SchemaSlice       string
	ArtifactsForStep  []map[string]any
}

// BuildActView assembles the Act-node view. artifacts is the full JSON of
// any gen_* artifact relevant to current (resolved by the caller against the
// registry before Act's prompt is built), schemaSlice is the compiled JSON
// Schema fragment for current.Type.
func BuildActView(current step.Step, priorResults []*step.Result, schemaSlice string, artifacts []map[string]any) ActView {
	return ActView{
		Current:          current,
		PriorResults:     priorResults,
		SchemaSlice:      schemaSlice,
		ArtifactsForStep: artifacts,
	}
}
