package promptctx

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RenderArtifacts serializes a set of full artifact payloads (gen_* content
// or pending_artifacts) into the exact JSON the Act/Reply templates embed.
// It builds the document path-by-path with sjson rather than a single
// json.Marshal so that a field whose value fails to encode (e.g. a channel
// or func value leaking in from a careless tool result) is skipped instead
// of failing the whole render.
func RenderArtifacts(artifacts []map[string]any) string {
	if len(artifacts) == 0 {
		return "(none)"
	}
	doc := "[]"
	for i, artifact := range artifacts {
		for field, value := range artifact {
			raw, err := json.Marshal(value)
			if err != nil {
				continue
			}
			path := fmt.Sprintf("%d.%s", i, field)
			next, err := sjson.SetRawBytes([]byte(doc), path, raw)
			if err != nil {
				continue
			}
			doc = string(next)
		}
	}
	return doc
}

// ExtractField reads a single top-level field out of a rendered artifact
// document by its gjson path, used by Act's step-type schema slice to pull
// just the fields a particular step needs without re-walking Go structs.
func ExtractField(renderedArtifacts string, path string) string {
	return gjson.Get(renderedArtifacts, path).String()
}
