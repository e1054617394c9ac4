package model

// ArticleContentType is the CMS content type of generated articles.
const ArticleContentType = "coffeeArticle"

// ArticleRequest describes one article to write.
type ArticleRequest struct {
	Title             string   `json:"title" validate:"required"`
	Outline           any      `json:"outline"`
	TargetLength      any      `json:"targetLength"`
	TargetKeywords    []string `json:"targetKeywords"`
	Tone              string   `json:"tone"`
	AdditionalContext string   `json:"additionalContext"`
}

// Localized maps a locale code such as en-US to a field value.
type Localized[T any] map[string]T

// Link references another CMS object.
type Link struct {
	Sys LinkSys `json:"sys"`
}

// LinkSys is the body of a Link.
type LinkSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

// NewLink returns a link of the given type.
func NewLink(linkType, id string) Link {
	return Link{Sys: LinkSys{Type: "Link", LinkType: linkType, ID: id}}
}

// ArticleFields are the locale-wrapped fields of a coffee article entry.
type ArticleFields struct {
	Title       Localized[string]   `json:"articleTitle"`
	Slug        Localized[string]   `json:"articleSlug"`
	PublishDate Localized[string]   `json:"articlePublishDate"`
	Author      Localized[string]   `json:"authorName"`
	HeroImage   Localized[Link]     `json:"articleHeroImage"`
	Excerpt     Localized[string]   `json:"articleExcerpt"`
	Content     Localized[Document] `json:"articleContent"`
	Tags        Localized[[]string] `json:"articleTags"`
	Featured    Localized[bool]     `json:"articleFeatured"`
	Gallery     Localized[[]Link]   `json:"articleGallery"`
	VideoEmbed  Localized[string]   `json:"videoEmbed"`
}

// ArticleEntrySys links an entry to its content type.
type ArticleEntrySys struct {
	ContentType Link `json:"contentType"`
}

// ArticleEntry is one generated article.
type ArticleEntry struct {
	Sys    ArticleEntrySys `json:"sys"`
	Fields ArticleFields   `json:"fields"`
}

// ArticlePayload is the file written for each article.
type ArticlePayload struct {
	Entries []ArticleEntry `json:"entries"`
}
