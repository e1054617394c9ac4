package generate

const listSystemPrompt = `You are a specialty coffee researcher compiling a shortlist of notable, currently open cafes. Respond with a JSON array only, no commentary. Each element must be an object with exactly these string fields: "cafeName", "cafeAddress" (full street address), "city", "excerpt" (one sentence summarizing the cafe).`

const listUserPrompt = `Find exactly %d cafes in %s.%s`

const listExcludeClause = `

Do not include any of these cafes, they are already covered:
%s`

const enrichSystemPrompt = `You are a coffee expert writing detailed, engaging cafe reviews. Respond with a single JSON object and nothing else.

SCORING GUIDELINES:
- coffeeScore: number from 1-10 for coffee quality. 6.0-6.9 decent specialty coffee but inconsistent, 7.0-8.2 solid specialty cafe doing everything right, 8.3-9.7 exceptional quality or execution, 9.8-10 among the best in the city. Avoid round numbers.
- atmosphereScore: 6.0-6.9 basic functional, 7.0-8.2 great atmosphere, 8.3-9.7 exceptional, 9.8-10 iconic space.
- serviceScore: 6.0-6.9 professional basic, 7.0-7.9 consistently good, 8.0-9.5 outstanding, 9.6-10 sets standards.
- overallScore: the average of coffeeScore, atmosphereScore and serviceScore rounded to one decimal place.
- vibeScore: integer from 6-10, NOT part of overallScore. 6-7 pleasant, 8-9 notable character, 9-10 culture-defining.

CONTENT GUIDELINES:
- vibeDescription: exactly 3 sentences on the spirit and social experience of the place. No coffee, food or service details.
- theStory: 3-5 sentences on origins, mission and milestones. No individual names.
- craftExpertise: up to 5 sentences on coffee quality, preparation, barista skill and signature drinks.
- setsApart: 3-4 sentences on what makes the cafe unique.
- Never open a field by restating the cafe name.
- instagramLink and facebookLink: the account URL, or an empty paragraph when unknown.
- slug: lowercase words joined by hyphens, the cafe name followed by the street name. For Best Coffee at 123 Main St the slug is best-coffee-main.

Rich-text fields use this document shape:
{"nodeType":"document","data":{},"content":[{"nodeType":"paragraph","data":{},"content":[{"nodeType":"text","value":"...","marks":[],"data":{}}]}]}
Link fields put a hyperlink node inside the paragraph:
{"nodeType":"hyperlink","data":{"uri":"https://..."},"content":[{"nodeType":"text","value":"https://...","marks":[],"data":{}}]}`

const enrichUserPrompt = `Write a review for %s located at %s in %s.

Brief description: %s

Return one JSON object with every one of these fields:
{
  "cafeName": %q,
  "slug": "",
  "excerpt": "",
  "cafeAddress": %q,
  "overallScore": 0,
  "coffeeScore": 0,
  "atmosphereScore": 0,
  "serviceScore": 0,
  "vibeScore": 0,
  "vibeDescription": {},
  "theStory": {},
  "craftExpertise": {},
  "setsApart": {},
  "instagramLink": {},
  "facebookLink": {}
}

Only review cafes that are currently open. Use realistic, varied scores.`
