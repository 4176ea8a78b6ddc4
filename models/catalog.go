package models

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	listTimeout = 3 * time.Second
	// retryAfter bounds how long the fallback is served after a failed
	// discovery before the endpoint is asked again.
	retryAfter = 30 * time.Second
)

// Lister returns the model identifiers a backend can serve.
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// OpenAILister lists models from an OpenAI-compatible endpoint using the
// official openai-go SDK. Ollama exposes one at http://host:11434/v1/.
type OpenAILister struct {
	Opts []option.RequestOption
}

func NewOpenAILister(baseURL, apiKey string, extra ...option.RequestOption) (*OpenAILister, error) {
	if baseURL == "" {
		return nil, errors.New("models base url is required")
	}
	if apiKey == "" {
		// Ollama ignores the key but the SDK wants one.
		apiKey = "ollama"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}
	return &OpenAILister{Opts: append(opts, extra...)}, nil
}

func (l *OpenAILister) ListModels(ctx context.Context) ([]string, error) {
	client := openai.NewClient(l.Opts...)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Catalog serves the model choices for the question form. Discovered models
// are cached for ttl; the static fallback is used when discovery is off or
// fails. The default model is always listed first.
type Catalog struct {
	lister       Lister
	fallback     []string
	defaultModel string
	ttl          time.Duration
	now          func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	cached  []string
	expires time.Time
}

func NewCatalog(lister Lister, fallback []string, defaultModel string, ttl time.Duration) *Catalog {
	return &Catalog{
		lister:       lister,
		fallback:     append([]string(nil), fallback...),
		defaultModel: defaultModel,
		ttl:          ttl,
		now:          time.Now,
	}
}

func (c *Catalog) Default() string { return c.defaultModel }

// Models never fails; errors from the lister are logged and answered with the
// fallback list. Concurrent callers share one discovery request and none of
// them holds the lock while it runs.
func (c *Catalog) Models(ctx context.Context) []string {
	if c.lister == nil {
		return c.withDefault(c.fallback)
	}

	c.mu.Lock()
	if c.cached != nil && c.now().Before(c.expires) {
		out := slices.Clone(c.cached)
		c.mu.Unlock()
		return out
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do("models", func() (any, error) {
		return c.refresh(ctx), nil
	})
	return slices.Clone(v.([]string))
}

func (c *Catalog) refresh(ctx context.Context) []string {
	listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
	defer cancel()
	ids, err := c.lister.ListModels(listCtx)

	var list []string
	ttl := c.ttl
	if err != nil || len(ids) == 0 {
		zerolog.Ctx(ctx).Warn().Err(err).Int("count", len(ids)).Msg("model discovery failed, using configured choices")
		list = c.withDefault(c.fallback)
		ttl = min(ttl, retryAfter)
	} else {
		sort.Strings(ids)
		list = c.withDefault(ids)
	}

	c.mu.Lock()
	c.cached = list
	c.expires = c.now().Add(ttl)
	c.mu.Unlock()
	return list
}

func (c *Catalog) withDefault(ids []string) []string {
	out := make([]string, 0, len(ids)+1)
	if c.defaultModel != "" {
		out = append(out, c.defaultModel)
	}
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
