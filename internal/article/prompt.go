package article

const systemPrompt = `You are a coffee expert writing detailed, engaging long-form content about coffee. Favor accuracy and specific detail. Respond with a single JSON object and nothing else.`

// userPrompt takes the title, outline, target length, keywords, tone,
// additional context, author and hero image id.
const userPrompt = `Write an article from this brief.

Title: %s
Outline: %s
Target Length: %v
Keywords: %s
Tone: %s
Additional Context: %s

Return one JSON object shaped like this, every field wrapped in {"en-US": value}:
{
  "entries": [{
    "sys": {"contentType": {"sys": {"type": "Link", "linkType": "ContentType", "id": "coffeeArticle"}}},
    "fields": {
      "articleTitle": {"en-US": "The full article title"},
      "articleSlug": {"en-US": "the-full-article-title"},
      "authorName": {"en-US": %q},
      "articleHeroImage": {"en-US": {"sys": {"type": "Link", "linkType": "Asset", "id": %q}}},
      "articleExcerpt": {"en-US": "One compelling sentence summarizing the article."},
      "articleContent": {"en-US": {"nodeType": "document", "data": {}, "content": [{"nodeType": "paragraph", "data": {}, "content": [{"nodeType": "text", "value": "First paragraph.", "marks": [], "data": {}}]}]}},
      "articleTags": {"en-US": []},
      "articleFeatured": {"en-US": false},
      "articleGallery": {"en-US": []},
      "videoEmbed": {"en-US": ""}
    }
  }]
}

Field rules:
- articleSlug: the title in lowercase with hyphens between words.
- articleContent: one paragraph node per paragraph of the article.

Style:
- No headings, bold section titles, lists or bullet points inside articleContent.
- Write continuous multi-paragraph narrative, as in a magazine feature. Vary paragraph length.
- Weave the outline points together with smooth transitions.
- Go deep on each point with explanation, examples and context. Nothing rushed or superficial.
- Keep the tone consistent and work the keywords in naturally.`
