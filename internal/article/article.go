// Package article writes standalone coffee articles from a brief: a title,
// an outline and a few style hints. Responses go through the same gateway,
// sanitizer and schema validation as cafe reviews.
package article

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/generate"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
	"github.com/sells-group/cafe-review-cli/internal/schema"
)

// Phase attributes article prompts in the cost tally.
const Phase = "article"

// DefaultHeroImageID is linked until an editor picks a real asset.
const DefaultHeroImageID = "placeholder-image-id"

// Failure stages.
const (
	StageParse    = "parse"
	StageValidate = "validate"
)

// Error reports a response that could not be turned into a valid article.
// Transport failures are never wrapped in it.
type Error struct {
	Stage string
	Title string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("article: %s failed for %q: %v", e.Stage, e.Title, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds the values stamped onto every article.
type Config struct {
	Author      string
	Locale      string
	HeroImageID string
	ResponseTTL time.Duration
}

// Writer generates, validates and saves articles.
type Writer struct {
	provider generate.Provider
	gateway  *resilience.Gateway
	cache    *cache.Store
	cfg      Config
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the clock used for publish dates.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New creates a Writer. store may be nil to disable response caching.
func New(provider generate.Provider, gateway *resilience.Gateway, store *cache.Store, cfg Config, opts ...Option) *Writer {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.HeroImageID == "" {
		cfg.HeroImageID = DefaultHeroImageID
	}
	w := &Writer{
		provider: provider,
		gateway:  gateway,
		cache:    store,
		cfg:      cfg,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// FileName is the output file for an article titled title.
func FileName(title string) string {
	return "article_" + model.FileSlug(title) + ".json"
}

// LoadRequests reads an input file of the form {"articles": [...]}.
func LoadRequests(path string) ([]model.ArticleRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "article: read %s", path)
	}
	var in struct {
		Articles *[]model.ArticleRequest `json:"articles"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "article: decode %s", path)
	}
	if in.Articles == nil {
		return nil, eris.Errorf("article: %s has no \"articles\" key", path)
	}
	v := validator.New()
	for i, req := range *in.Articles {
		if err := v.Struct(req); err != nil {
			return nil, eris.Wrapf(err, "article: entry %d in %s", i, path)
		}
	}
	return *in.Articles, nil
}

func (w *Writer) cacheKey(req model.ArticleRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return "article:" + w.provider.Model() + ":" + hex.EncodeToString(sum[:])
}

// Generate writes one article. Parse and validation failures are returned as
// *Error; transport errors are returned as-is.
func (w *Writer) Generate(ctx context.Context, req model.ArticleRequest) (*model.ArticlePayload, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, eris.Wrap(err, "article: invalid request")
	}
	log := zap.L().With(zap.String("article", req.Title))
	key := w.cacheKey(req)

	var text string
	if w.cache != nil && w.cache.Load(cache.NamespaceAPIResponses, key, &text) {
		log.Debug("article: using cached response")
	} else {
		prompt := generate.Prompt{Phase: Phase, System: systemPrompt, User: w.userPrompt(req)}
		var err error
		text, err = resilience.Send(ctx, w.gateway, w.provider.Name(), func(ctx context.Context) (string, error) {
			return w.provider.Complete(ctx, prompt)
		})
		if err != nil {
			return nil, err
		}
		if w.cache != nil {
			if err := w.cache.Save(cache.NamespaceAPIResponses, key, text, w.cfg.ResponseTTL); err != nil {
				log.Warn("article: cache save failed", zap.Error(err))
			}
		}
	}

	fields, err := decodeFields(generate.Sanitize(text, generate.ModeObject))
	if err != nil {
		w.invalidate(key)
		return nil, &Error{Stage: StageParse, Title: req.Title, Err: err}
	}
	w.normalize(fields, req)

	entry := map[string]any{
		"sys": map[string]any{
			"contentType": model.NewLink("ContentType", model.ArticleContentType),
		},
		"fields": fields,
	}
	if err := schema.ValidateArticle(entry); err != nil {
		w.invalidate(key)
		return nil, &Error{Stage: StageValidate, Title: req.Title, Err: err}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, eris.Wrap(err, "article: encode entry")
	}
	var out model.ArticleEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "article: decode entry")
	}
	return &model.ArticlePayload{Entries: []model.ArticleEntry{out}}, nil
}

func (w *Writer) userPrompt(req model.ArticleRequest) string {
	outline, err := json.MarshalIndent(req.Outline, "", "  ")
	if err != nil || req.Outline == nil {
		outline = []byte("[]")
	}
	return fmt.Sprintf(userPrompt,
		req.Title, outline, lengthHint(req.TargetLength),
		strings.Join(req.TargetKeywords, ", "), req.Tone, req.AdditionalContext,
		w.cfg.Author, w.cfg.HeroImageID,
	)
}

func lengthHint(v any) any {
	if v == nil {
		return "unspecified"
	}
	return v
}

func (w *Writer) invalidate(key string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.Invalidate(cache.NamespaceAPIResponses, key); err != nil {
		zap.L().Warn("article: cache invalidate failed", zap.Error(err))
	}
}

// decodeFields parses a response and returns the fields of its first entry.
// A bare fields object is accepted too.
func decodeFields(text string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrap(err, "article: decode response")
	}
	if raw == nil {
		return nil, eris.New("article: empty response")
	}
	if entries, ok := raw["entries"].([]any); ok {
		if len(entries) == 0 {
			return nil, eris.New("article: empty entries envelope")
		}
		first, ok := entries[0].(map[string]any)
		if !ok {
			return nil, eris.New("article: malformed entries envelope")
		}
		raw = first
	}
	if fields, ok := raw["fields"].(map[string]any); ok {
		return fields, nil
	}
	if _, ok := raw["sys"]; ok {
		return nil, eris.New("article: entry has no fields")
	}
	return raw, nil
}

var localeKey = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// unwrap returns the value of a single-locale map, or v itself.
func unwrap(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if localeKey.MatchString(k) {
			return inner
		}
	}
	return v
}

// normalize rewraps every field under the configured locale, fills the
// optional fields and overlays the values the model must not decide.
func (w *Writer) normalize(fields map[string]any, req model.ArticleRequest) {
	for k, v := range fields {
		fields[k] = unwrap(v)
	}

	if s, ok := fields["articleContent"].(string); ok {
		fields["articleContent"] = toAny(model.NewDocument(strings.Split(strings.TrimSpace(s), "\n\n")...))
	}
	if t, _ := fields["articleTitle"].(string); strings.TrimSpace(t) == "" {
		fields["articleTitle"] = req.Title
	}
	slug, _ := fields["articleSlug"].(string)
	if slug = generate.Slugify(slug); slug == "" {
		slug = generate.Slugify(req.Title)
	}
	fields["articleSlug"] = slug
	fields["articlePublishDate"] = w.now().Format("2006-01-02")
	fields["authorName"] = w.cfg.Author

	defaults := map[string]any{
		"articleHeroImage": toAny(model.NewLink("Asset", w.cfg.HeroImageID)),
		"articleTags":      []any{},
		"articleFeatured":  false,
		"articleGallery":   []any{},
		"videoEmbed":       "",
	}
	for k, v := range defaults {
		if fields[k] == nil {
			fields[k] = v
		}
	}

	for k, v := range fields {
		fields[k] = map[string]any{w.cfg.Locale: v}
	}
}

func toAny(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Failure is an article that was skipped.
type Failure struct {
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Result reports what Run wrote.
type Result struct {
	Written []string  `json:"written"`
	Failed  []Failure `json:"failed,omitempty"`
}

// Run generates every request in order and saves each article to dir.
// Articles whose response fails to parse or validate are skipped; any other
// error stops the run and is returned with the partial result.
func (w *Writer) Run(ctx context.Context, reqs []model.ArticleRequest, dir string) (*Result, error) {
	res := &Result{Written: []string{}}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := zap.L().With(zap.String("article", req.Title))
		log.Info("article: generating")

		payload, err := w.Generate(ctx, req)
		var aerr *Error
		switch {
		case errors.As(err, &aerr):
			log.Warn("article: skipped", zap.String("stage", aerr.Stage), zap.Error(aerr.Err))
			res.Failed = append(res.Failed, Failure{Title: req.Title, Stage: aerr.Stage, Reason: aerr.Err.Error()})
			continue
		case err != nil:
			return res, err
		}

		path := filepath.Join(dir, FileName(req.Title))
		if err := cache.WriteJSONAtomic(path, payload); err != nil {
			return res, eris.Wrapf(err, "article: save %q", req.Title)
		}
		log.Info("article: saved", zap.String("path", path))
		res.Written = append(res.Written, path)
	}
	return res, nil
}
