// Package generate lists and enriches cafe candidates through a text
// generation provider.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
	"github.com/sells-group/cafe-review-cli/internal/schema"
)

// Config holds the values the client stamps onto every record.
type Config struct {
	Author      string
	ResponseTTL time.Duration
}

// Client turns provider responses into candidates and validated records.
type Client struct {
	provider Provider
	gateway  *resilience.Gateway
	cache    *cache.Store
	cfg      Config
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used for publish dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client. store may be nil to disable response caching.
func New(provider Provider, gateway *resilience.Gateway, store *cache.Store, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		gateway:  gateway,
		cache:    store,
		cfg:      cfg,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// listedCafe is one element of a listing response.
type listedCafe struct {
	CafeName    string `validate:"required"`
	CafeAddress string `validate:"required"`
	City        string `validate:"required"`
	Excerpt     string `validate:"required"`
}

func (c *Client) complete(ctx context.Context, p Prompt) (string, error) {
	return resilience.Send(ctx, c.gateway, c.provider.Name(), func(ctx context.Context) (string, error) {
		return c.provider.Complete(ctx, p)
	})
}

// ListCandidates asks for count cafes in unit, skipping names in exclude.
// Unparsable responses and incomplete entries yield fewer candidates rather
// than an error; only transport failures are returned.
func (c *Client) ListCandidates(ctx context.Context, unit model.Unit, count int, exclude []string) ([]model.Candidate, error) {
	if count <= 0 {
		return nil, nil
	}
	log := zap.L().With(zap.String("unit", unit.Name), zap.String("stage", string(model.StageListing)))

	var excludeClause string
	if len(exclude) > 0 {
		excludeClause = fmt.Sprintf(listExcludeClause, "- "+strings.Join(exclude, "\n- "))
	}
	text, err := c.complete(ctx, Prompt{
		Phase:  PhaseList,
		System: listSystemPrompt,
		User:   fmt.Sprintf(listUserPrompt, count, unit.Name, excludeClause),
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeList(Sanitize(text, ModeArray))
	if err != nil {
		log.Warn("generate: unparsable candidate list", zap.Error(err), zap.Int("response_len", len(text)))
		return nil, nil
	}

	seen := make(map[string]bool, len(exclude)+len(items))
	for _, name := range exclude {
		seen[normalizeName(name)] = true
	}

	var out []model.Candidate
	for _, item := range items {
		cafe := listedCafe{
			CafeName:    stringField(item, "cafeName"),
			CafeAddress: stringField(item, "cafeAddress"),
			City:        stringField(item, "city"),
			Excerpt:     stringField(item, "excerpt"),
		}
		if cafe.Excerpt == "" {
			cafe.Excerpt = stringField(item, "briefDescription")
		}
		if err := c.validate.Struct(cafe); err != nil {
			log.Warn("generate: dropping incomplete candidate",
				zap.String("candidate", cafe.CafeName),
				zap.Error(err),
			)
			continue
		}
		key := normalizeName(cafe.CafeName)
		if seen[key] {
			log.Debug("generate: dropping duplicate candidate", zap.String("candidate", cafe.CafeName))
			continue
		}
		seen[key] = true
		out = append(out, model.Candidate{
			Name:          cafe.CafeName,
			Address:       cafe.CafeAddress,
			Excerpt:       cafe.Excerpt,
			Unit:          unit.Name,
			UnitReference: unit.ExternalReference,
		})
	}

	if len(out) > count {
		out = out[:count]
	}
	if len(out) < count {
		log.Warn("generate: fewer candidates than requested",
			zap.Int("requested", count),
			zap.Int("received", len(out)),
		)
	}
	return out, nil
}

// decodeList accepts a bare array or an object holding one.
func decodeList(text string) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, eris.Wrap(err, "generate: decode candidate list")
	}
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case map[string]any:
		for _, inner := range t {
			if a, ok := inner.([]any); ok {
				arr = a
				break
			}
		}
		if arr == nil {
			arr = []any{t}
		}
	default:
		return nil, eris.Errorf("generate: candidate list is %T", v)
	}

	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (c *Client) cacheKey(cand model.Candidate) string {
	return "enrich:" + c.provider.Model() + ":" + cand.Key()
}

// Enrich generates the full review for cand. Parse and validation failures
// are returned as *EnrichmentError; transport errors are returned as-is.
func (c *Client) Enrich(ctx context.Context, cand model.Candidate) (*model.EnrichedRecord, error) {
	log := zap.L().With(
		zap.String("unit", cand.Unit),
		zap.String("candidate", cand.Name),
		zap.String("stage", string(model.StageEnriching)),
	)
	key := c.cacheKey(cand)

	var text string
	cached := c.cache != nil && c.cache.Load(cache.NamespaceAPIResponses, key, &text)
	if cached {
		log.Debug("generate: using cached enrichment response")
	} else {
		var err error
		text, err = c.complete(ctx, Prompt{
			Phase:  PhaseEnrich,
			System: enrichSystemPrompt,
			User: fmt.Sprintf(enrichUserPrompt,
				cand.Name, cand.Address, cand.Unit, cand.Excerpt, cand.Name, cand.Address),
		})
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Save(cache.NamespaceAPIResponses, key, text, c.cfg.ResponseTTL); err != nil {
				log.Warn("generate: cache save failed", zap.Error(err))
			}
		}
	}

	raw, err := decodeRecord(Sanitize(text, ModeObject))
	if err != nil {
		c.invalidate(key)
		return nil, &EnrichmentError{Stage: StageParse, Candidate: cand.Name, Err: err}
	}

	normalizeRecord(raw)
	c.overlay(raw, cand)

	rec, err := schema.Validate(raw)
	if err != nil {
		c.invalidate(key)
		return nil, &EnrichmentError{Stage: StageValidate, Candidate: cand.Name, Err: err}
	}
	return rec, nil
}

func (c *Client) invalidate(key string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(cache.NamespaceAPIResponses, key); err != nil {
		zap.L().Warn("generate: cache invalidate failed", zap.Error(err))
	}
}

// decodeRecord parses an enrichment response and unwraps the CMS entry
// envelope when the model echoes it.
func decodeRecord(text string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrap(err, "generate: decode record")
	}
	if entries, ok := raw["entries"].([]any); ok {
		if len(entries) == 0 {
			return nil, eris.New("generate: empty entries envelope")
		}
		first, ok := entries[0].(map[string]any)
		if !ok {
			return nil, eris.New("generate: malformed entries envelope")
		}
		raw = first
	}
	if fields, ok := raw["fields"].(map[string]any); ok {
		raw = fields
	}
	return raw, nil
}

var localeKey = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

var scoreFields = []string{"overallScore", "coffeeScore", "atmosphereScore", "serviceScore", "vibeScore"}

var linkFields = map[string]bool{"instagramLink": true, "facebookLink": true}

// normalizeRecord unwraps locale maps and coerces loosely typed values
// in place.
func normalizeRecord(raw map[string]any) {
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok && len(m) == 1 {
			for lk, lv := range m {
				if localeKey.MatchString(lk) {
					raw[k] = lv
				}
			}
		}
	}

	for _, f := range scoreFields {
		if s, ok := raw[f].(string); ok {
			if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				raw[f] = n
			}
		}
	}

	for _, f := range schema.RichTextFields {
		s, ok := raw[f].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		var doc model.Document
		switch {
		case linkFields[f] && strings.HasPrefix(s, "http"):
			doc = model.LinkDocument(s)
		case linkFields[f] && s == "":
			doc = emptyParagraphDocument()
		default:
			doc = model.NewDocument(strings.Split(s, "\n\n")...)
		}
		raw[f] = toAny(doc)
	}
}

func emptyParagraphDocument() model.Document {
	return model.Document{
		NodeType: model.NodeDocument,
		Data:     map[string]any{},
		Content: []model.Paragraph{{
			NodeType: model.NodeParagraph,
			Data:     map[string]any{},
			Content:  []model.Inline{model.Text("")},
		}},
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

// overlay writes the fields the model must not decide.
func (c *Client) overlay(raw map[string]any, cand model.Candidate) {
	raw["publishDate"] = c.now().Format("2006-01-02")
	raw["authorName"] = c.cfg.Author
	raw["cafeName"] = cand.Name
	raw["cafeAddress"] = cand.Address
	raw["cityReference"] = cand.UnitReference
	if cand.Location != nil {
		raw["placeId"] = cand.Location.PlaceID
		raw["cafeLatLon"] = map[string]any{"lat": cand.Location.Lat, "lon": cand.Location.Lon}
	} else {
		delete(raw, "placeId")
		delete(raw, "cafeLatLon")
	}
	if s, ok := raw["slug"].(string); ok {
		raw["slug"] = Slugify(s)
	}
}

var slugFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with
// single hyphens.
func Slugify(s string) string {
	folded, _, err := transform.String(slugFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var sb strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(r)
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		pendingHyphen = true
	}
	return sb.String()
}
