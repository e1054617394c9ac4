package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateArticle checks one coffee article entry, the {"sys", "fields"}
// object with locale-wrapped field values. On failure the error is a
// *ValidationError; field paths are relative to "fields".
func ValidateArticle(entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "schema: marshal article")
	}

	result, err := compiledArticle.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return eris.Wrap(err, "schema: validate article")
	}
	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		if desc.Type() == "number_all_of" {
			// allOf failures repeat the branch errors reported beside them.
			continue
		}
		violations = append(violations, classifyArticle(desc))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Check < violations[j].Check
	})
	return &ValidationError{Violations: violations}
}

func classifyArticle(desc gojsonschema.ResultError) Violation {
	field := desc.Field()
	if field == "(root)" {
		field = ""
	}
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			field = strings.TrimPrefix(field+"."+prop, ".")
		}
	}
	field = strings.TrimPrefix(field, "fields.")

	v := Violation{Check: CheckRequired, Field: field, Message: desc.Description()}
	if desc.Type() == "required" {
		v.Message = "is required"
	}
	switch top := strings.SplitN(field, ".", 2)[0]; top {
	case "articleContent":
		if field != top {
			v.Check = CheckRichText
		}
	case "articleSlug":
		if desc.Type() == "pattern" {
			v.Check = CheckSlug
		}
	}
	return v
}
