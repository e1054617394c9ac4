package article

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/generate"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
	"github.com/sells-group/cafe-review-cli/internal/schema"
	"github.com/sells-group/cafe-review-cli/pkg/openai"
)

type reply struct {
	text string
	err  error
}

type fakeProvider struct {
	mu      sync.Mutex
	replies []reply
	prompts []generate.Prompt
}

func (f *fakeProvider) Name() string  { return "openai" }
func (f *fakeProvider) Model() string { return "test-model" }

func (f *fakeProvider) Complete(_ context.Context, p generate.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if len(f.replies) == 0 {
		return "", errors.New("fake provider: no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

func newTestWriter(t *testing.T, p *fakeProvider, withCache bool) *Writer {
	t.Helper()
	gw := resilience.NewGateway(nil, resilience.GatewayConfig{
		Retry: resilience.RetryPolicy{
			MaxAttempts: 2,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	})
	var store *cache.Store
	if withCache {
		var err error
		store, err = cache.Open(t.TempDir())
		require.NoError(t, err)
	}
	clock := func() time.Time { return time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC) }
	return New(p, gw, store, Config{Author: "Chris Jordan", ResponseTTL: time.Hour}, WithClock(clock))
}

var pourOver = model.ArticleRequest{
	Title:             "The Art of Pour Over",
	Outline:           []any{"History", "Technique", "Gear"},
	TargetLength:      1500,
	TargetKeywords:    []string{"pour over", "v60"},
	Tone:              "warm",
	AdditionalContext: "For home brewers.",
}

func paragraphDoc(text string) map[string]any {
	return map[string]any{
		"nodeType": "document",
		"data":     map[string]any{},
		"content": []any{map[string]any{
			"nodeType": "paragraph",
			"data":     map[string]any{},
			"content":  []any{map[string]any{"nodeType": "text", "value": text, "marks": []any{}, "data": map[string]any{}}},
		}},
	}
}

func enUS(v any) map[string]any {
	return map[string]any{"en-US": v}
}

func articleResponse(fields map[string]any) string {
	b, _ := json.Marshal(map[string]any{
		"entries": []any{map[string]any{
			"sys": map[string]any{"contentType": map[string]any{"sys": map[string]any{
				"type": "Link", "linkType": "ContentType", "id": "coffeeArticle",
			}}},
			"fields": fields,
		}},
	})
	return string(b)
}

func fullFields() map[string]any {
	return map[string]any{
		"articleTitle":       enUS("The Art of Pour Over"),
		"articleSlug":        enUS("the-art-of-pour-over"),
		"articlePublishDate": enUS("1999-01-01"),
		"authorName":         enUS("Someone Else"),
		"articleHeroImage":   enUS(map[string]any{"sys": map[string]any{"type": "Link", "linkType": "Asset", "id": "hero-1"}}),
		"articleExcerpt":     enUS("Slow coffee, done well."),
		"articleContent":     enUS(paragraphDoc("Pour over began as a kitchen experiment.")),
		"articleTags":        enUS([]any{"brewing"}),
		"articleFeatured":    enUS(true),
		"articleGallery":     enUS([]any{}),
		"videoEmbed":         enUS(""),
	}
}

func TestGenerate(t *testing.T) {
	p := &fakeProvider{replies: []reply{{text: "Here is your article:\n```json\n" + articleResponse(fullFields()) + "\n```"}}}
	w := newTestWriter(t, p, false)

	payload, err := w.Generate(context.Background(), pourOver)
	require.NoError(t, err)
	require.Len(t, payload.Entries, 1)

	e := payload.Entries[0]
	assert.Equal(t, model.NewLink("ContentType", model.ArticleContentType), e.Sys.ContentType)
	assert.Equal(t, "The Art of Pour Over", e.Fields.Title["en-US"])
	assert.Equal(t, "the-art-of-pour-over", e.Fields.Slug["en-US"])
	assert.Equal(t, "2025-04-02", e.Fields.PublishDate["en-US"])
	assert.Equal(t, "Chris Jordan", e.Fields.Author["en-US"])
	assert.Equal(t, "hero-1", e.Fields.HeroImage["en-US"].Sys.ID)
	assert.Equal(t, []string{"brewing"}, e.Fields.Tags["en-US"])
	assert.True(t, e.Fields.Featured["en-US"])
	assert.Equal(t, "Pour over began as a kitchen experiment.", e.Fields.Content["en-US"].PlainText())

	require.Len(t, p.prompts, 1)
	assert.Equal(t, Phase, p.prompts[0].Phase)
	assert.Contains(t, p.prompts[0].User, "Title: The Art of Pour Over")
	assert.Contains(t, p.prompts[0].User, "Target Length: 1500")
	assert.Contains(t, p.prompts[0].User, "Keywords: pour over, v60")
	assert.Contains(t, p.prompts[0].User, `"Technique"`)
}

func TestGenerate_FillsOptionalFieldsAndUnwrappedValues(t *testing.T) {
	p := &fakeProvider{replies: []reply{{text: articleResponse(map[string]any{
		"articleSlug":    "Pour Over, Explained!",
		"articleExcerpt": "Slow coffee, done well.",
		"articleContent": "First paragraph.\n\nSecond paragraph.",
	})}}}
	w := newTestWriter(t, p, false)

	payload, err := w.Generate(context.Background(), pourOver)
	require.NoError(t, err)

	f := payload.Entries[0].Fields
	assert.Equal(t, "The Art of Pour Over", f.Title["en-US"])
	assert.Equal(t, "pour-over-explained", f.Slug["en-US"])
	assert.Equal(t, DefaultHeroImageID, f.HeroImage["en-US"].Sys.ID)
	assert.Equal(t, "Asset", f.HeroImage["en-US"].Sys.LinkType)
	assert.Empty(t, f.Tags["en-US"])
	assert.False(t, f.Featured["en-US"])
	assert.Empty(t, f.Gallery["en-US"])
	assert.Empty(t, f.VideoEmbed["en-US"])
	require.Len(t, f.Content["en-US"].Content, 2)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", f.Content["en-US"].PlainText())
}

func TestGenerate_ConfiguredLocale(t *testing.T) {
	p := &fakeProvider{replies: []reply{{text: articleResponse(fullFields())}}}
	gw := resilience.NewGateway(nil, resilience.GatewayConfig{Retry: resilience.RetryPolicy{MaxAttempts: 1}})
	w := New(p, gw, nil, Config{Author: "Chris Jordan", Locale: "en-GB"})

	payload, err := w.Generate(context.Background(), pourOver)
	require.NoError(t, err)

	f := payload.Entries[0].Fields
	assert.Equal(t, "The Art of Pour Over", f.Title["en-GB"])
	assert.NotContains(t, f.Title, "en-US")
}

func TestGenerate_UnparsableResponse(t *testing.T) {
	for name, text := range map[string]string{
		"prose":          "I'd rather not.",
		"null":           "null",
		"empty entries":  `{"entries": []}`,
		"entry no field": `{"entries": [{"sys": {}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{replies: []reply{{text: text}}}
			_, err := newTestWriter(t, p, false).Generate(context.Background(), pourOver)

			var aerr *Error
			require.True(t, errors.As(err, &aerr), "got %v", err)
			assert.Equal(t, StageParse, aerr.Stage)
			assert.Equal(t, pourOver.Title, aerr.Title)
		})
	}
}

func TestGenerate_InvalidArticle(t *testing.T) {
	fields := fullFields()
	delete(fields, "articleExcerpt")
	fields["articleContent"] = enUS(map[string]any{"nodeType": "document", "data": map[string]any{}, "content": []any{}})
	p := &fakeProvider{replies: []reply{{text: articleResponse(fields)}}}

	_, err := newTestWriter(t, p, false).Generate(context.Background(), pourOver)

	var aerr *Error
	require.True(t, errors.As(err, &aerr), "got %v", err)
	assert.Equal(t, StageValidate, aerr.Stage)

	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields(), "articleExcerpt")
}

func TestGenerate_InvalidResponseIsNotCached(t *testing.T) {
	p := &fakeProvider{replies: []reply{
		{text: `{"entries": []}`},
		{text: articleResponse(fullFields())},
	}}
	w := newTestWriter(t, p, true)

	_, err := w.Generate(context.Background(), pourOver)
	require.Error(t, err)

	_, err = w.Generate(context.Background(), pourOver)
	require.NoError(t, err)
	_, err = w.Generate(context.Background(), pourOver)
	require.NoError(t, err)
	assert.Len(t, p.prompts, 2)
}

func TestGenerate_FatalTransportError(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: &openai.APIError{StatusCode: 401, Body: "bad key"}}}}

	_, err := newTestWriter(t, p, false).Generate(context.Background(), pourOver)
	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))

	var aerr *Error
	assert.False(t, errors.As(err, &aerr))
}

func TestGenerate_RequiresTitle(t *testing.T) {
	p := &fakeProvider{}
	_, err := newTestWriter(t, p, false).Generate(context.Background(), model.ArticleRequest{Tone: "dry"})
	require.Error(t, err)
	assert.Empty(t, p.prompts)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	espresso := model.ArticleRequest{Title: "Espresso/Milk Ratios"}
	broken := model.ArticleRequest{Title: "Broken"}
	p := &fakeProvider{replies: []reply{
		{text: articleResponse(fullFields())},
		{text: "no json here"},
		{text: articleResponse(fullFields())},
	}}
	w := newTestWriter(t, p, false)

	res, err := w.Run(context.Background(), []model.ArticleRequest{pourOver, broken, espresso}, dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "article_the_art_of_pour_over.json"),
		filepath.Join(dir, "article_espresso_milk_ratios.json"),
	}, res.Written)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "Broken", res.Failed[0].Title)
	assert.Equal(t, StageParse, res.Failed[0].Stage)

	data, err := os.ReadFile(res.Written[0])
	require.NoError(t, err)
	var saved model.ArticlePayload
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved.Entries, 1)
	assert.Equal(t, "2025-04-02", saved.Entries[0].Fields.PublishDate["en-US"])
	assert.NoError(t, schema.ValidateArticle(saved.Entries[0]))
}

func TestRun_StopsOnTransportError(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{replies: []reply{
		{err: &openai.APIError{StatusCode: 401, Body: "bad key"}},
	}}

	res, err := newTestWriter(t, p, false).Run(context.Background(), []model.ArticleRequest{pourOver, {Title: "Second"}}, dir)
	require.Error(t, err)
	assert.Empty(t, res.Written)
	assert.Len(t, p.prompts, 1)
	assert.NoFileExists(t, filepath.Join(dir, FileName(pourOver.Title)))
}

func TestLoadRequests(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	reqs, err := LoadRequests(write("ok.json", `{"articles": [{
		"title": "Cold Brew at Home",
		"outline": ["Ratio", "Steep time"],
		"targetLength": "1200 words",
		"targetKeywords": ["cold brew"],
		"tone": "friendly",
		"additionalContext": ""
	}]}`))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Cold Brew at Home", reqs[0].Title)
	assert.Equal(t, "1200 words", reqs[0].TargetLength)
	assert.Equal(t, []string{"cold brew"}, reqs[0].TargetKeywords)

	reqs, err = LoadRequests(write("empty.json", `{"articles": []}`))
	require.NoError(t, err)
	assert.Empty(t, reqs)

	_, err = LoadRequests(write("nokey.json", `{"posts": []}`))
	assert.ErrorContains(t, err, `no "articles" key`)

	_, err = LoadRequests(write("untitled.json", `{"articles": [{"tone": "dry"}]}`))
	assert.Error(t, err)

	_, err = LoadRequests(write("bad.json", `{"articles": [`))
	assert.Error(t, err)

	_, err = LoadRequests(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "article_the_art_of_pour_over.json", FileName("The Art of Pour Over"))
	assert.Equal(t, "article_v60_vs__chemex.json", FileName("V60 vs. Chemex"))
}
