package export

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/model"
)

// ImportVersion is the Contentful import file format version.
const ImportVersion = 7

// Import is a Contentful space import file.
type Import struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Entry is one content entry in an import file.
type Entry struct {
	Metadata Metadata                  `json:"metadata"`
	Sys      EntrySys                  `json:"sys"`
	Fields   map[string]map[string]any `json:"fields"`
}

// Metadata carries entry tags.
type Metadata struct {
	Tags []Link `json:"tags"`
}

// EntrySys identifies the space, environment and content type of an entry.
type EntrySys struct {
	Space       Link   `json:"space"`
	Environment *Link  `json:"environment,omitempty"`
	Type        string `json:"type"`
	ContentType Link   `json:"contentType"`
}

// Link references another Contentful object.
type Link struct {
	Sys LinkSys `json:"sys"`
}

// LinkSys is the body of a Link.
type LinkSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

func newLink(linkType, id string) Link {
	return Link{Sys: LinkSys{Type: "Link", LinkType: linkType, ID: id}}
}

// Contentful formats records as entries of one content type.
type Contentful struct {
	spaceID     string
	environment string
	contentType string
	locale      string
}

// NewContentful creates a formatter from the export settings.
func NewContentful(cfg config.ContentfulConfig) *Contentful {
	c := &Contentful{
		spaceID:     cfg.SpaceID,
		environment: cfg.Environment,
		contentType: cfg.ContentType,
		locale:      cfg.Locale,
	}
	if c.contentType == "" {
		c.contentType = "cafeReview"
	}
	if c.locale == "" {
		c.locale = "en-US"
	}
	return c
}

// Entry formats one record.
func (c *Contentful) Entry(r model.EnrichedRecord) Entry {
	sys := EntrySys{
		Space:       newLink("Space", c.spaceID),
		Type:        "Entry",
		ContentType: newLink("ContentType", c.contentType),
	}
	if c.environment != "" {
		env := newLink("Environment", c.environment)
		sys.Environment = &env
	}

	values := map[string]any{
		"cafeName":        r.CafeName,
		"authorName":      r.AuthorName,
		"publishDate":     r.PublishDate,
		"slug":            r.Slug,
		"excerpt":         r.Excerpt,
		"instagramLink":   r.InstagramLink,
		"facebookLink":    r.FacebookLink,
		"overallScore":    r.OverallScore,
		"coffeeScore":     r.CoffeeScore,
		"atmosphereScore": r.AtmosphereScore,
		"serviceScore":    r.ServiceScore,
		"vibeScore":       r.VibeScore,
		"vibeDescription": r.VibeDescription,
		"theStory":        r.TheStory,
		"craftExpertise":  r.CraftExpertise,
		"setsApart":       r.SetsApart,
		"cafeAddress":     r.CafeAddress,
		"cityReference":   newLink("Entry", r.CityReference),
		"cafeLatLon":      r.CafeLatLon,
		"placeId":         r.PlaceID,
	}
	fields := make(map[string]map[string]any, len(values))
	for k, v := range values {
		fields[k] = map[string]any{c.locale: v}
	}

	return Entry{Metadata: Metadata{Tags: []Link{}}, Sys: sys, Fields: fields}
}

// Import formats all records as one import file.
func (c *Contentful) Import(recs []model.EnrichedRecord) Import {
	imp := Import{Version: ImportVersion, Entries: make([]Entry, 0, len(recs))}
	for _, r := range recs {
		imp.Entries = append(imp.Entries, c.Entry(r))
	}
	return imp
}

// Write formats recs and writes the import file atomically.
func (c *Contentful) Write(path string, recs []model.EnrichedRecord) error {
	if err := cache.WriteJSONAtomic(path, c.Import(recs)); err != nil {
		return eris.Wrap(err, "export: write contentful import")
	}
	return nil
}
