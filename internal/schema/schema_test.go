package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

func doc(paragraphs ...string) map[string]any {
	var b, _ = json.Marshal(model.NewDocument(paragraphs...))
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func linkDoc(uri string) map[string]any {
	var b, _ = json.Marshal(model.LinkDocument(uri))
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func validRaw() map[string]any {
	return map[string]any{
		"cafeName":        "Bean There",
		"slug":            "bean-there-springfield",
		"authorName":      "Chris Jordan",
		"publishDate":     "2025-03-01",
		"excerpt":         "A neighborhood espresso bar.",
		"cafeAddress":     "1 Main St, Springfield",
		"placeId":         "ChIJ123",
		"cityReference":   "city-springfield",
		"cafeLatLon":      map[string]any{"lat": 39.78, "lon": -89.65},
		"overallScore":    8.3,
		"coffeeScore":     9.0,
		"atmosphereScore": 8.0,
		"serviceScore":    8.0,
		"vibeScore":       7,
		"vibeDescription": doc("Warm and busy."),
		"theStory":        doc("Opened in 2015.", "Family run."),
		"craftExpertise":  doc("Roasts in house."),
		"setsApart":       doc("Single origin flights."),
		"instagramLink":   linkDoc("https://instagram.com/beanthere"),
		"facebookLink":    linkDoc("https://facebook.com/beanthere"),
	}
}

func requireViolations(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
	return ve
}

func TestValidate_Valid(t *testing.T) {
	rec, err := Validate(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "Bean There", rec.CafeName)
	assert.Equal(t, 7, rec.VibeScore)
	assert.InDelta(t, 8.3, rec.OverallScore, 0.001)
	assert.InDelta(t, -89.65, rec.CafeLatLon.Lon, 0.0001)
	assert.Equal(t, "Opened in 2015.\n\nFamily run.", rec.TheStory.PlainText())
	assert.Equal(t, "https://instagram.com/beanthere", rec.InstagramLink.FirstURI())
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	raw := validRaw()
	raw["slug"] = "Not A Slug"
	before, _ := json.Marshal(raw)

	_, _ = Validate(raw)

	after, _ := json.Marshal(raw)
	assert.JSONEq(t, string(before), string(after))
}

func TestValidate_OverallMustMatchMean(t *testing.T) {
	raw := validRaw()
	raw["overallScore"] = 9.5

	ve := requireViolations(t, mustErr(Validate(raw)))
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, CheckOverall, ve.Violations[0].Check)
	assert.Equal(t, "overallScore", ve.Violations[0].Field)
}

func TestValidate_OverallWithinTolerance(t *testing.T) {
	raw := validRaw()
	raw["overallScore"] = 8.34

	_, err := Validate(raw)
	assert.NoError(t, err)
}

func TestValidate_VibeExcludedFromMean(t *testing.T) {
	raw := validRaw()
	raw["vibeScore"] = 1

	_, err := Validate(raw)
	assert.NoError(t, err)
}

func TestValidate_EmptyRichText(t *testing.T) {
	raw := validRaw()
	raw["theStory"] = map[string]any{"nodeType": "document", "data": map[string]any{}, "content": []any{}}
	raw["setsApart"] = map[string]any{
		"nodeType": "document",
		"data":     map[string]any{},
		"content":  []any{map[string]any{"nodeType": "paragraph", "data": map[string]any{}, "content": []any{}}},
	}

	ve := requireViolations(t, mustErr(Validate(raw)))
	assert.Contains(t, ve.Fields(), "theStory.content")
	for _, v := range ve.Violations {
		assert.Equal(t, CheckRichText, v.Check)
	}
	var setsApart bool
	for _, f := range ve.Fields() {
		if len(f) >= len("setsApart") && f[:len("setsApart")] == "setsApart" {
			setsApart = true
		}
	}
	assert.True(t, setsApart, "empty paragraph should be reported: %v", ve.Fields())
}

func TestValidate_ScoreOutOfRange(t *testing.T) {
	raw := validRaw()
	raw["coffeeScore"] = 11.0
	raw["vibeScore"] = 0

	ve := requireViolations(t, mustErr(Validate(raw)))
	var ranges []string
	for _, v := range ve.Violations {
		if v.Check == CheckRange {
			ranges = append(ranges, v.Field)
		}
	}
	assert.ElementsMatch(t, []string{"coffeeScore", "vibeScore"}, ranges)
}

func TestValidate_VibeScoreMustBeInteger(t *testing.T) {
	raw := validRaw()
	raw["vibeScore"] = 7.5

	ve := requireViolations(t, mustErr(Validate(raw)))
	assert.Equal(t, []string{"vibeScore"}, ve.Fields())
}

func TestValidate_BadSlug(t *testing.T) {
	for _, slug := range []string{"Bean-There", "bean_there", "beanthere", "bean--there", "-bean-there"} {
		raw := validRaw()
		raw["slug"] = slug

		ve := requireViolations(t, mustErr(Validate(raw)))
		require.Len(t, ve.Violations, 1, slug)
		assert.Equal(t, CheckSlug, ve.Violations[0].Check, slug)
	}
}

func TestValidate_ReportsAllViolationsInCheckOrder(t *testing.T) {
	raw := validRaw()
	delete(raw, "cafeName")
	raw["slug"] = "Bad Slug"
	raw["overallScore"] = 2.0
	raw["serviceScore"] = 0.5
	raw["vibeDescription"] = map[string]any{"nodeType": "document", "content": []any{}}

	ve := requireViolations(t, mustErr(Validate(raw)))

	var checks []Check
	for _, v := range ve.Violations {
		checks = append(checks, v.Check)
	}
	for i := 1; i < len(checks); i++ {
		assert.LessOrEqual(t, int(checks[i-1]), int(checks[i]), "violations out of check order: %v", checks)
	}
	assert.Contains(t, checks, CheckRequired)
	assert.Contains(t, checks, CheckRichText)
	assert.Contains(t, checks, CheckRange)
	assert.Contains(t, checks, CheckOverall)
	assert.Contains(t, checks, CheckSlug)
	assert.Equal(t, "cafeName", ve.Violations[0].Field)
}

func TestValidate_MissingLocation(t *testing.T) {
	raw := validRaw()
	delete(raw, "cafeLatLon")
	raw["placeId"] = ""

	ve := requireViolations(t, mustErr(Validate(raw)))
	assert.ElementsMatch(t, []string{"cafeLatLon", "placeId"}, ve.Fields())
}

func TestValidateRecord(t *testing.T) {
	rec, err := Validate(validRaw())
	require.NoError(t, err)
	assert.NoError(t, ValidateRecord(rec))

	rec.Slug = "UPPER"
	assert.Error(t, ValidateRecord(rec))
}

func TestOverallScore(t *testing.T) {
	assert.InDelta(t, 8.3, OverallScore(9, 8, 8), 0.0001)
	assert.InDelta(t, 7.0, OverallScore(7, 7, 7), 0.0001)
	assert.InDelta(t, 6.7, OverallScore(6, 7, 7), 0.0001)
}

func TestCheckString(t *testing.T) {
	assert.Equal(t, "required", CheckRequired.String())
	assert.Equal(t, "slug", CheckSlug.String())
	assert.Equal(t, "unknown", Check(99).String())
}

func mustErr(_ *model.EnrichedRecord, err error) error { return err }
