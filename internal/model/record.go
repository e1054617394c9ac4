package model

// LatLon is the coordinate pair stored on a review.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EnrichedRecord is a schema-valid cafe review. Field names follow the CMS
// content type.
type EnrichedRecord struct {
	CafeName      string `json:"cafeName"`
	Slug          string `json:"slug"`
	AuthorName    string `json:"authorName"`
	PublishDate   string `json:"publishDate"`
	Excerpt       string `json:"excerpt"`
	CafeAddress   string `json:"cafeAddress"`
	PlaceID       string `json:"placeId"`
	CityReference string `json:"cityReference"`
	CafeLatLon    LatLon `json:"cafeLatLon"`

	OverallScore    float64 `json:"overallScore"`
	CoffeeScore     float64 `json:"coffeeScore"`
	AtmosphereScore float64 `json:"atmosphereScore"`
	ServiceScore    float64 `json:"serviceScore"`
	VibeScore       int     `json:"vibeScore"`

	VibeDescription Document `json:"vibeDescription"`
	TheStory        Document `json:"theStory"`
	CraftExpertise  Document `json:"craftExpertise"`
	SetsApart       Document `json:"setsApart"`
	InstagramLink   Document `json:"instagramLink"`
	FacebookLink    Document `json:"facebookLink"`
}

// RichTextFields returns the record's rich-text documents keyed by field name.
func (r *EnrichedRecord) RichTextFields() map[string]Document {
	return map[string]Document{
		"vibeDescription": r.VibeDescription,
		"theStory":        r.TheStory,
		"craftExpertise":  r.CraftExpertise,
		"setsApart":       r.SetsApart,
		"instagramLink":   r.InstagramLink,
		"facebookLink":    r.FacebookLink,
	}
}
