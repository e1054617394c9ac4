// Package schema validates generated cafe reviews and coffee articles against
// their versioned schemas and the invariants the schema language cannot
// express.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

// Version identifies the embedded review schema.
const Version = "cafe-review/v3"

// ArticleVersion identifies the embedded article entry schema.
const ArticleVersion = "coffee-article/v1"

// OverallTolerance is the allowed distance between overallScore and the
// rounded mean of the sub-scores.
const OverallTolerance = 0.05

//go:embed cafe_review.schema.json
var schemaJSON []byte

//go:embed coffee_article.schema.json
var articleSchemaJSON []byte

var (
	compiled        = mustCompile(Version, schemaJSON)
	compiledArticle = mustCompile(ArticleVersion, articleSchemaJSON)
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)+$`)

// SubScoreFields are averaged into overallScore.
var SubScoreFields = []string{"coffeeScore", "atmosphereScore", "serviceScore"}

var scoreFields = map[string]bool{
	"overallScore": true, "coffeeScore": true, "atmosphereScore": true,
	"serviceScore": true, "vibeScore": true,
}

// RichTextFields lists the document-valued fields.
var RichTextFields = []string{
	"vibeDescription", "theStory", "craftExpertise", "setsApart", "instagramLink", "facebookLink",
}

// Check identifies which rule a violation broke. Violations are reported in
// check order.
type Check int

const (
	CheckRequired Check = iota + 1
	CheckRichText
	CheckRange
	CheckOverall
	CheckSlug
)

func (c Check) String() string {
	switch c {
	case CheckRequired:
		return "required"
	case CheckRichText:
		return "richtext"
	case CheckRange:
		return "range"
	case CheckOverall:
		return "overall"
	case CheckSlug:
		return "slug"
	default:
		return "unknown"
	}
}

// Violation is one broken rule.
type Violation struct {
	Check   Check
	Field   string
	Message string
}

// ValidationError lists every violation found in a record.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for i, v := range e.Violations {
		sb.WriteString(fmt.Sprintf(" %d. [%s] %s: %s;", i+1, v.Check, v.Field, v.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Fields returns the distinct fields with violations, in report order.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]bool, len(e.Violations))
	var out []string
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			out = append(out, v.Field)
		}
	}
	return out
}

func mustCompile(version string, data []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("schema: compile %s: %v", version, err))
	}
	return s
}

// Validate checks raw against the review schema and returns the typed record.
// raw is not modified. On failure the error is a *ValidationError carrying
// every violation.
func Validate(raw map[string]any) (*model.EnrichedRecord, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal record")
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, eris.Wrap(err, "schema: validate")
	}

	var violations []Violation
	for _, desc := range result.Errors() {
		violations = append(violations, classify(desc))
	}

	violations = append(violations, checkOverall(raw)...)
	violations = append(violations, checkSlug(raw)...)

	if len(violations) > 0 {
		sort.SliceStable(violations, func(i, j int) bool {
			return violations[i].Check < violations[j].Check
		})
		return nil, &ValidationError{Violations: violations}
	}

	var rec model.EnrichedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "schema: decode record")
	}
	return &rec, nil
}

// ValidateRecord re-checks a typed record, for records read back from disk.
func ValidateRecord(rec *model.EnrichedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "schema: marshal record")
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "schema: decode record")
	}
	_, err = Validate(raw)
	return err
}

// OverallScore returns the mean of the sub-scores rounded to one decimal.
func OverallScore(coffee, atmosphere, service float64) float64 {
	return math.Round((coffee+atmosphere+service)/3*10) / 10
}

func classify(desc gojsonschema.ResultError) Violation {
	field := desc.Field()
	atRoot := field == "" || field == "(root)"
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if atRoot {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
		if atRoot {
			return Violation{Check: CheckRequired, Field: field, Message: "is required"}
		}
	}

	top := strings.SplitN(field, ".", 2)[0]
	v := Violation{Field: field, Message: desc.Description()}
	switch {
	case isRichText(top):
		v.Check = CheckRichText
	case scoreFields[top] && isBoundType(desc.Type()):
		v.Check = CheckRange
	default:
		v.Check = CheckRequired
	}
	return v
}

func isRichText(field string) bool {
	for _, f := range RichTextFields {
		if f == field {
			return true
		}
	}
	return false
}

func isBoundType(t string) bool {
	switch t {
	case "number_gte", "number_lte", "number_gt", "number_lt":
		return true
	}
	return false
}

func checkOverall(raw map[string]any) []Violation {
	overall, ok := number(raw["overallScore"])
	if !ok {
		return nil
	}
	var subs [3]float64
	for i, f := range SubScoreFields {
		v, ok := number(raw[f])
		if !ok {
			return nil
		}
		subs[i] = v
	}
	want := OverallScore(subs[0], subs[1], subs[2])
	if math.Abs(overall-want) > OverallTolerance {
		return []Violation{{
			Check:   CheckOverall,
			Field:   "overallScore",
			Message: fmt.Sprintf("%.2f does not match the mean of %s (%.1f)", overall, strings.Join(SubScoreFields, ", "), want),
		}}
	}
	return nil
}

func checkSlug(raw map[string]any) []Violation {
	slug, ok := raw["slug"].(string)
	if !ok || slug == "" {
		return nil
	}
	if !slugPattern.MatchString(slug) {
		return []Violation{{
			Check:   CheckSlug,
			Field:   "slug",
			Message: fmt.Sprintf("%q must be lowercase words joined by hyphens", slug),
		}}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
